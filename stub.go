package codearc

import (
	"fmt"
	"time"

	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/format"
	"github.com/hupe1980/codearc/region"
)

// StoreStub captures a generated stub routine under its intrinsic id. The
// name is recorded alongside and checked again at load time.
func (a *Archive) StoreStub(id uint32, name string, buf *code.Buffer) error {
	if a == nil {
		return ErrClosed
	}
	if name == "" || buf == nil {
		return fmt.Errorf("codearc: stub %d needs a name and a buffer", id)
	}

	start := time.Now()
	size, err := a.storeStub(id, name, buf)
	a.metrics.RecordStore(format.KindStub, time.Since(start), err)
	a.logger.LogStore(format.KindStub, name, id, size, err)
	return err
}

func (a *Archive) storeStub(id uint32, name string, buf *code.Buffer) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.forStore(); err != nil {
		return 0, err
	}

	w := a.w
	w.SetPosition(w.Size())
	w.Align(format.Align)
	origin := w.Position()

	w.WriteCString(name)
	w.Align(format.Align)

	e := format.Entry{
		NameSize: uint32(len(name) + 1),
		Kind:     format.KindStub,
		ID:       id,
	}
	if err := a.storeBlock(origin, buf, &e); err != nil {
		return 0, err
	}
	return int(e.RelocOffset + e.RelocSize), nil
}

// LoadStub restores the stub stored under id into dest: the sections are
// placed at the range's tail, which advances by exactly the stored sizes,
// and every relocation is patched for the new placement.
//
// On a failed load the range may have advanced over partially placed
// sections; the bytes are dead but the space is not reclaimed.
func (a *Archive) LoadStub(id uint32, name string, dest *code.Range) error {
	if a == nil {
		return ErrClosed
	}
	if dest == nil {
		return fmt.Errorf("codearc: stub %q: nil destination range", name)
	}

	start := time.Now()
	err := a.loadStub(id, name, dest)
	a.metrics.RecordLoad(format.KindStub, time.Since(start), err)
	a.logger.LogLoad(format.KindStub, name, err)
	return err
}

func (a *Archive) loadStub(id uint32, name string, dest *code.Range) error {
	if err := a.beginLoad(); err != nil {
		return err
	}
	defer a.endLoad()
	if err := a.ensureIndex(); err != nil {
		return err
	}

	i, ok := a.findEntry(format.KindStub, id, 0)
	if !ok {
		return ErrNotFound
	}
	e := &a.entries[i]

	rd := region.NewReader(a.r.Data())
	got, err := a.readName(rd, e)
	if err != nil {
		return err
	}
	if got != name {
		err := &NameMismatchError{Want: name, Got: got}
		a.fail(err)
		return err
	}

	if _, err := a.readBlock(rd, e, name, rangeAlloc(dest), nil); err != nil {
		return err
	}
	a.markLoaded(i)
	return nil
}
