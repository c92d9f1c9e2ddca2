package codearc

import (
	"errors"

	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/format"
	"github.com/hupe1980/codearc/host"
	"github.com/hupe1980/codearc/internal/conv"
	"github.com/hupe1980/codearc/region"
)

// storeBlock writes the code sections and relocations common to every
// artifact kind, fills in the block bookkeeping and appends the entry.
// origin is the aligned block start; the caller has already written the
// kind-specific prologue and aligned the cursor. Called with mu held.
func (a *Archive) storeBlock(origin int, buf *code.Buffer, e *format.Entry) error {
	w := a.w
	codeOff := w.Position() - origin
	if err := writeCode(w, buf); err != nil {
		a.fail(err)
		return err
	}
	relocOff := w.Position() - origin
	if err := a.writeRelocations(w, buf); err != nil {
		return a.rollback(origin, err)
	}
	end := w.Position() - origin

	if err := w.Err(); err != nil {
		a.fail(err)
		return err
	}
	if _, err := conv.IntToUint32(w.Size()); err != nil {
		a.fail(err)
		return err
	}

	e.Offset = uint32(origin)
	e.CodeOffset = uint32(codeOff)
	e.CodeSize = uint32(relocOff - codeOff)
	e.RelocOffset = uint32(relocOff)
	e.RelocSize = uint32(end - relocOff)
	e.Index = uint32(len(a.entries))
	a.entries = append(a.entries, *e)
	return nil
}

// rollback classifies a mid-block failure. Artifact-level lookup failures
// rewind the cursor to the block start so the next store reuses the space;
// region failures disable the archive; fatal errors have latched already.
func (a *Archive) rollback(origin int, err error) error {
	if werr := a.w.Err(); werr != nil {
		a.fail(werr)
		return werr
	}
	var le *LookupError
	if errors.As(err, &le) {
		a.w.Truncate(origin)
	}
	return err
}

// readBlock decodes an entry's code sections and relocations, placing the
// bytes through alloc.
func (a *Archive) readBlock(rd *region.Reader, e *format.Entry, name string, alloc allocFunc, within host.Method) (*code.Buffer, error) {
	rd.Seek(int(e.Offset + e.CodeOffset))
	sections, orig, err := a.readCode(rd, alloc, name)
	if err != nil {
		return nil, err
	}
	relocs, err := a.readRelocations(rd, &sections, &orig, within)
	if err != nil {
		return nil, err
	}
	if err := rd.Err(); err != nil {
		a.fail(err)
		return nil, err
	}
	return &code.Buffer{Sections: sections, Relocs: relocs}, nil
}

// readName reads and checks an entry's recorded name.
func (a *Archive) readName(rd *region.Reader, e *format.Entry) (string, error) {
	rd.Seek(int(e.Offset + e.NameOffset))
	name := rd.ReadCString(int(e.NameSize))
	if err := rd.Err(); err != nil {
		a.fail(err)
		return "", err
	}
	return name, nil
}
