package host

import "fmt"

// DescTag discriminates the serializable object descriptions.
type DescTag uint8

const (
	// TagNoData marks a reference that is present but carries no payload.
	TagNoData DescTag = iota
	// TagNull is a nil reference.
	TagNull
	// TagClass references a class by fully qualified name.
	TagClass
	// TagMethod references a method by holder, name and signature.
	TagMethod
	// TagString references an interned string by UTF-8 payload.
	TagString
	// TagPrimitive references a primitive type mirror by type tag.
	TagPrimitive
	// TagSystemLoader and TagPlatformLoader reference the well-known class
	// loader singletons.
	TagSystemLoader
	TagPlatformLoader
)

// String implements fmt.Stringer.
func (t DescTag) String() string {
	switch t {
	case TagNoData:
		return "no-data"
	case TagNull:
		return "null"
	case TagClass:
		return "class"
	case TagMethod:
		return "method"
	case TagString:
		return "string"
	case TagPrimitive:
		return "primitive"
	case TagSystemLoader:
		return "system-loader"
	case TagPlatformLoader:
		return "platform-loader"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// BasicType tags a primitive type mirror.
type BasicType uint8

const (
	TypeBool BasicType = iota
	TypeByte
	TypeChar
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
)

// ObjectDesc is the tagged, serializable description of a managed object
// or metadata reference. Which fields are meaningful depends on Tag:
// Name for classes (and the holder name for methods), Signature for
// methods, Value for strings, Basic for primitive mirrors.
type ObjectDesc struct {
	Tag       DescTag
	Name      string
	Signature string
	Value     string
	Basic     BasicType
}

// ClassDesc describes a class reference.
func ClassDesc(name string) ObjectDesc {
	return ObjectDesc{Tag: TagClass, Name: name}
}

// MethodDesc describes a method reference. Name carries the holder's fully
// qualified name, Value the method name, Signature the signature.
func MethodDesc(holder, name, signature string) ObjectDesc {
	return ObjectDesc{Tag: TagMethod, Name: holder, Value: name, Signature: signature}
}

// StringDesc describes an interned string reference.
func StringDesc(s string) ObjectDesc {
	return ObjectDesc{Tag: TagString, Value: s}
}

// PrimitiveDesc describes a primitive type mirror.
func PrimitiveDesc(t BasicType) ObjectDesc {
	return ObjectDesc{Tag: TagPrimitive, Basic: t}
}
