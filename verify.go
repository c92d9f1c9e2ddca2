package codearc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/codearc/format"
	"github.com/hupe1980/codearc/region"
)

// VerifyReport summarizes a verification pass.
type VerifyReport struct {
	// Verified holds the indices of entries that decoded and resolved
	// cleanly, Failed the ones whose objects or symbols no longer resolve.
	// Skipped holds not-entrant entries, which lookups never see.
	Verified *roaring.Bitmap
	Failed   *roaring.Bitmap
	Skipped  *roaring.Bitmap

	// Errors carries one error per failed entry, in completion order.
	Errors []error
}

// Verify decodes every live entry the way a load would, short of handing
// anything to the runtime: sections are placed on the heap, relocations
// resolved and patched, objects re-resolved. Per-entry resolution failures
// are collected in the report; a corrupt image or an unresolvable runtime
// address aborts the pass and disables the archive.
func (a *Archive) Verify(ctx context.Context) (*VerifyReport, error) {
	if a == nil {
		return nil, ErrClosed
	}
	if err := a.beginLoad(); err != nil {
		return nil, err
	}
	defer a.endLoad()
	if err := a.ensureIndex(); err != nil {
		return nil, err
	}

	report := &VerifyReport{
		Verified: roaring.New(),
		Failed:   roaring.New(),
		Skipped:  roaring.New(),
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(int(a.opts.limiter.VerifyWorkers()))

	for i := range a.entries {
		if a.flags[i].Load() {
			report.Skipped.Add(uint32(i))
			continue
		}
		i := i // pin per-iteration value; go directive is below 1.22
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := a.verifyEntry(i)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var le *LookupError
				if errors.As(err, &le) {
					report.Failed.Add(uint32(i))
					report.Errors = append(report.Errors, fmt.Errorf("entry %d: %w", i, err))
					return nil
				}
				return err
			}
			report.Verified.Add(uint32(i))
			return nil
		})
	}

	err := g.Wait()
	a.logger.LogVerify(ctx,
		int(report.Verified.GetCardinality()),
		int(report.Failed.GetCardinality()),
		int(report.Skipped.GetCardinality()),
		err,
	)
	return report, err
}

func (a *Archive) verifyEntry(i int) error {
	e := &a.entries[i]
	rd := region.NewReader(a.r.Data())
	name, err := a.readName(rd, e)
	if err != nil {
		return err
	}

	switch e.Kind {
	case format.KindStub, format.KindBlob:
		_, err = a.readBlock(rd, e, name, heapAlloc, nil)
	case format.KindCode:
		_, _, err = a.readMethod(rd, e, name, nil)
	default:
		return a.fatal("unknown entry kind", fmt.Errorf("entry %d has kind %d", i, e.Kind))
	}
	return err
}
