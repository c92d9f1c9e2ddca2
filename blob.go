package codearc

import (
	"fmt"
	"time"

	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/format"
	"github.com/hupe1980/codearc/region"
)

// reservedBlobID is the entry id shared by every code blob. Blobs have no
// intrinsic id space of their own; the embedded name is the identity.
const reservedBlobID = 999

// StoreBlob captures a shared code blob under its name. pcOffset is the
// blob's frame-complete offset, handed back verbatim on load.
func (a *Archive) StoreBlob(name string, pcOffset uint32, buf *code.Buffer) error {
	if a == nil {
		return ErrClosed
	}
	if name == "" || buf == nil {
		return fmt.Errorf("codearc: blob %q needs a name and a buffer", name)
	}

	start := time.Now()
	size, err := a.storeBlob(name, pcOffset, buf)
	a.metrics.RecordStore(format.KindBlob, time.Since(start), err)
	a.logger.LogStore(format.KindBlob, name, reservedBlobID, size, err)
	return err
}

func (a *Archive) storeBlob(name string, pcOffset uint32, buf *code.Buffer) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.forStore(); err != nil {
		return 0, err
	}

	w := a.w
	w.SetPosition(w.Size())
	w.Align(format.Align)
	origin := w.Position()

	w.WriteUint32(pcOffset)
	nameOff := w.Position() - origin
	w.WriteCString(name)
	w.Align(format.Align)

	e := format.Entry{
		NameOffset: uint32(nameOff),
		NameSize:   uint32(len(name) + 1),
		Kind:       format.KindBlob,
		ID:         reservedBlobID,
	}
	if err := a.storeBlock(origin, buf, &e); err != nil {
		return 0, err
	}
	return int(e.RelocOffset + e.RelocSize), nil
}

// LoadBlob restores the blob stored under name, returning the rebuilt
// buffer with freshly placed, fully patched sections and the recorded
// frame-complete offset.
func (a *Archive) LoadBlob(name string) (*code.Buffer, uint32, error) {
	if a == nil {
		return nil, 0, ErrClosed
	}

	start := time.Now()
	buf, pcOffset, err := a.loadBlob(name)
	a.metrics.RecordLoad(format.KindBlob, time.Since(start), err)
	a.logger.LogLoad(format.KindBlob, name, err)
	return buf, pcOffset, err
}

func (a *Archive) loadBlob(name string) (*code.Buffer, uint32, error) {
	if err := a.beginLoad(); err != nil {
		return nil, 0, err
	}
	defer a.endLoad()
	if err := a.ensureIndex(); err != nil {
		return nil, 0, err
	}

	// Blobs all share one id, so the name embedded in each candidate's
	// block is the real key.
	data := a.r.Data()
	for i := range a.entries {
		e := &a.entries[i]
		if e.Kind != format.KindBlob || e.ID != reservedBlobID || a.flags[i].Load() {
			continue
		}

		rd := region.NewReader(data)
		got, err := a.readName(rd, e)
		if err != nil {
			return nil, 0, err
		}
		if got != name {
			continue
		}

		rd.Seek(int(e.Offset))
		pcOffset := rd.ReadUint32()
		buf, err := a.readBlock(rd, e, name, heapAlloc, nil)
		if err != nil {
			return nil, 0, err
		}
		a.markLoaded(i)
		return buf, pcOffset, nil
	}
	return nil, 0, ErrNotFound
}
