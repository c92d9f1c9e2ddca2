package codearc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hupe1980/codearc/blobstore"
	"github.com/hupe1980/codearc/internal/compress"
	"github.com/hupe1980/codearc/resource"
)

// Publish uploads the archive file at path to store under name, wrapped in
// the compressed, checksummed transfer envelope. The archive must be
// finalized (closed) first. Fetch verifies the checksum, so a transfer
// interrupted midway is caught on the way back down.
func Publish(ctx context.Context, store blobstore.Store, name, path string, optFns ...Option) error {
	o := applyOptions(optFns)

	start := time.Now()
	n, err := publish(ctx, store, name, path, o)
	o.metricsCollector.RecordTransfer("publish", n, time.Since(start), err)
	o.logger.WithPath(path).LogTransfer(ctx, "publish", name, n, err)
	return err
}

func publish(ctx context.Context, store blobstore.Store, name, path string, o options) (int, error) {
	data, err := o.fsys.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read archive: %w", err)
	}
	envelope, err := compress.Encode(data, o.compression.envelope())
	if err != nil {
		return 0, err
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("create blob %s: %w", name, err)
	}
	lw := resource.NewLimitedWriter(ctx, w, o.limiter)
	n, err := io.Copy(lw, bytes.NewReader(envelope))
	if err != nil {
		w.Close()
		return int(n), fmt.Errorf("upload blob %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return int(n), fmt.Errorf("finalize blob %s: %w", name, err)
	}
	return int(n), nil
}

// Fetch downloads the archive blob stored under name and writes the decoded
// image to path, ready for a load session. The envelope checksum is
// verified before anything lands on disk.
func Fetch(ctx context.Context, store blobstore.Store, name, path string, optFns ...Option) error {
	o := applyOptions(optFns)

	start := time.Now()
	n, err := fetch(ctx, store, name, path, o)
	o.metricsCollector.RecordTransfer("fetch", n, time.Since(start), err)
	o.logger.WithPath(path).LogTransfer(ctx, "fetch", name, n, err)
	return err
}

func fetch(ctx context.Context, store blobstore.Store, name, path string, o options) (int, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("open blob %s: %w", name, err)
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return 0, fmt.Errorf("read blob %s: %w", name, err)
	}
	defer rc.Close()

	envelope, err := io.ReadAll(resource.NewLimitedReader(ctx, rc, o.limiter))
	if err != nil {
		return len(envelope), fmt.Errorf("download blob %s: %w", name, err)
	}
	data, err := compress.Decode(envelope)
	if err != nil {
		return len(envelope), fmt.Errorf("blob %s: %w", name, err)
	}

	f, err := o.fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return len(envelope), fmt.Errorf("create archive: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return len(envelope), fmt.Errorf("write archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return len(envelope), fmt.Errorf("sync archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return len(envelope), fmt.Errorf("close archive: %w", err)
	}
	return len(envelope), nil
}
