package codearc

import (
	"fmt"

	"github.com/hupe1980/codearc/host"
	"github.com/hupe1980/codearc/region"
)

// writeHandle asks the runtime to describe a live handle and serializes the
// description. A handle the runtime cannot describe fails the current
// artifact only.
func (a *Archive) writeHandle(w *region.Writer, h any) error {
	desc, ok := a.rt.DescribeObject(h)
	if !ok {
		return &LookupError{Artifact: fmt.Sprintf("object %T", h)}
	}
	writeObjectDesc(w, desc)
	return nil
}

// writeObjectDesc serializes one tagged description: the tag byte, then the
// tag's payload. String fields carry a u32 length (terminator included)
// followed by the NUL-terminated bytes.
func writeObjectDesc(w *region.Writer, d host.ObjectDesc) {
	w.WriteBytes([]byte{byte(d.Tag)})
	switch d.Tag {
	case host.TagClass:
		writeStringField(w, d.Name)
	case host.TagMethod:
		writeStringField(w, d.Name)
		writeStringField(w, d.Value)
		writeStringField(w, d.Signature)
	case host.TagString:
		writeStringField(w, d.Value)
	case host.TagPrimitive:
		w.WriteBytes([]byte{byte(d.Basic)})
	}
}

func readObjectDesc(rd *region.Reader) (host.ObjectDesc, error) {
	var d host.ObjectDesc
	b := rd.ReadBytes(1)
	if b == nil {
		return d, rd.Err()
	}
	tag := host.DescTag(b[0])
	if tag > host.TagPlatformLoader {
		return d, fmt.Errorf("codearc: unknown object tag %d", b[0])
	}

	d.Tag = tag
	switch tag {
	case host.TagClass:
		d.Name = readStringField(rd)
	case host.TagMethod:
		d.Name = readStringField(rd)
		d.Value = readStringField(rd)
		d.Signature = readStringField(rd)
	case host.TagString:
		d.Value = readStringField(rd)
	case host.TagPrimitive:
		if tb := rd.ReadBytes(1); tb != nil {
			d.Basic = host.BasicType(tb[0])
		}
	}
	return d, rd.Err()
}

func writeStringField(w *region.Writer, s string) {
	w.WriteUint32(uint32(len(s) + 1))
	w.WriteCString(s)
}

func readStringField(rd *region.Reader) string {
	n := rd.ReadUint32()
	return rd.ReadCString(int(n))
}

// resolveDesc re-resolves a stored description to a live handle in this
// process. within is the method being loaded; classes are probed through
// its loader.
func (a *Archive) resolveDesc(d host.ObjectDesc, within host.Method) (any, error) {
	switch d.Tag {
	case host.TagNoData, host.TagNull:
		return nil, nil

	case host.TagClass:
		cls, ok := a.rt.FindClass(d.Name, within)
		if !ok {
			return nil, &LookupError{Artifact: "class " + d.Name}
		}
		return cls, nil

	case host.TagMethod:
		holder, ok := a.rt.FindClass(d.Name, within)
		if !ok {
			return nil, &LookupError{Artifact: "class " + d.Name}
		}
		m, ok := a.rt.FindMethod(holder, d.Value, d.Signature)
		if !ok {
			return nil, &LookupError{Artifact: fmt.Sprintf("method %s.%s%s", d.Name, d.Value, d.Signature)}
		}
		return m, nil

	case host.TagString:
		s, ok := a.rt.InternString(d.Value)
		if !ok {
			return nil, &LookupError{Artifact: fmt.Sprintf("string %q", d.Value)}
		}
		return s, nil

	case host.TagPrimitive:
		p, ok := a.rt.PrimitiveType(d.Basic)
		if !ok {
			return nil, &LookupError{Artifact: fmt.Sprintf("primitive type %d", d.Basic)}
		}
		return p, nil

	case host.TagSystemLoader:
		return a.rt.SystemLoader(), nil

	case host.TagPlatformLoader:
		return a.rt.PlatformLoader(), nil

	default:
		return nil, fmt.Errorf("codearc: unknown object tag %d", d.Tag)
	}
}

// writeObjectStream serializes a handle table: the count, then one
// description per handle in table order.
func (a *Archive) writeObjectStream(w *region.Writer, handles []any) error {
	w.WriteUint32(uint32(len(handles)))
	for _, h := range handles {
		if err := a.writeHandle(w, h); err != nil {
			return err
		}
	}
	return nil
}

// readObjectStream re-resolves a handle table. A handle that no longer
// resolves fails the current artifact only.
func (a *Archive) readObjectStream(rd *region.Reader, within host.Method) ([]any, error) {
	count := int(rd.ReadUint32())
	if count == 0 {
		return nil, rd.Err()
	}
	if count > rd.Len()-rd.Position() {
		err := fmt.Errorf("codearc: %d object descriptions exceed remaining image", count)
		a.fail(err)
		return nil, err
	}

	handles := make([]any, 0, count)
	for i := 0; i < count; i++ {
		desc, err := readObjectDesc(rd)
		if err != nil {
			a.fail(err)
			return nil, err
		}
		h, err := a.resolveDesc(desc, within)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}
