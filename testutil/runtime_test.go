package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/codearc/host"
)

func TestAddressClassification(t *testing.T) {
	rt := NewRuntime(0x10000000)

	stub := rt.EntryAddress("stub_checkcast")
	assert.True(t, rt.InStubRegion(stub))
	assert.False(t, rt.FindCodeBlob(stub))

	blob := rt.EntryAddress("deopt_blob")
	assert.True(t, rt.FindCodeBlob(blob))
	assert.False(t, rt.InStubRegion(blob))

	helper := rt.EntryAddress("rt_throw_exception")
	assert.False(t, rt.InStubRegion(helper))
	assert.False(t, rt.FindCodeBlob(helper))
}

func TestEntriesAlignAcrossBases(t *testing.T) {
	a := NewRuntime(0x10000000)
	b := NewRuntime(0x74000000)

	ea, eb := a.RuntimeEntries(), b.RuntimeEntries()
	require.Equal(t, len(ea), len(eb))
	for i := range ea {
		assert.Equal(t, ea[i].Name, eb[i].Name)
		assert.NotEqual(t, ea[i].Addr, eb[i].Addr)
	}
}

func TestResolveSymbol(t *testing.T) {
	rt := NewRuntime(0x10000000)

	sym, ok := rt.ResolveSymbol(rt.DataAddress(16))
	require.True(t, ok)
	assert.Greater(t, sym.Offset, uintptr(0))

	sym, ok = rt.ResolveSymbol(rt.BaseAddress() + 4)
	require.True(t, ok)
	assert.Equal(t, uintptr(0), sym.Offset)

	_, ok = rt.ResolveSymbol(rt.BaseAddress() - 8)
	assert.False(t, ok)
}

func TestDescribeResolveRoundTrip(t *testing.T) {
	rt := NewRuntime(0x10000000)
	m := rt.RegisterMethod("com/example/Greeter", "greet", "(Ljava/lang/String;)V")

	desc, ok := rt.DescribeObject(m)
	require.True(t, ok)
	assert.Equal(t, host.TagMethod, desc.Tag)

	cls, ok := rt.FindClass(desc.Name, nil)
	require.True(t, ok)
	got, ok := rt.FindMethod(cls, desc.Value, desc.Signature)
	require.True(t, ok)
	assert.Same(t, m, got)

	rt.Unregister("com/example/Greeter")
	_, ok = rt.FindClass("com/example/Greeter", nil)
	assert.False(t, ok)
}

func TestDescribeUnknownObject(t *testing.T) {
	rt := NewRuntime(0x10000000)

	_, ok := rt.DescribeObject(struct{ x int }{1})
	assert.False(t, ok)
}

func TestInternStringIsStable(t *testing.T) {
	rt := NewRuntime(0x10000000)

	a, ok := rt.InternString("greeting")
	require.True(t, ok)
	b, ok := rt.InternString("greeting")
	require.True(t, ok)
	assert.Same(t, a.(*InternedString), b.(*InternedString))

	wa, ok := rt.WordFor(a)
	require.True(t, ok)
	wb, ok := rt.WordFor(b)
	require.True(t, ok)
	assert.Equal(t, wa, wb)
}

func TestHostStrings(t *testing.T) {
	rt := NewRuntime(0x10000000)

	addr := rt.RegisterHostString("oparg=3")
	s, ok := rt.StringAt(addr)
	require.True(t, ok)
	assert.Equal(t, "oparg=3", s)
	assert.Equal(t, "oparg=3", CString(addr))

	_, ok = rt.StringAt(addr + 1)
	assert.False(t, ok)
}
