package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/codearc"
	"github.com/hupe1980/codearc/code"
	"github.com/hupe1980/codearc/testutil"
)

func main() {
	path := "./app.carc"
	os.Remove(path)
	defer os.Remove(path)

	// Capture a stub in one "run" of the runtime.
	writer := testutil.NewRuntime(0x10000000)
	arc := codearc.Initialize(codearc.WriteConfig(path), writer)
	if arc == nil {
		log.Fatal("store session unavailable")
	}

	insts := make([]byte, 16)
	buf := &code.Buffer{}
	buf.Sections[code.SectInsts] = code.Section{Base: code.AddressOf(insts), Data: insts}
	buf.Relocs[code.SectInsts] = []code.Reloc{
		{Offset: 0, Kind: code.RelocRuntimeCall, Target: writer.EntryAddress("rt_safepoint")},
	}
	if err := arc.StoreStub(1, "safepoint_poll", buf); err != nil {
		log.Fatalf("store failed: %v", err)
	}
	if err := arc.Close(); err != nil {
		log.Fatalf("finalize failed: %v", err)
	}

	// Reinstall it in the next "run", at a different base address.
	reader := testutil.NewRuntime(0x74000000)
	arc = codearc.Initialize(codearc.ReadConfig(path), reader)
	if arc == nil {
		log.Fatal("load session unavailable")
	}
	defer arc.Close()

	dest := code.NewRange(make([]byte, 256))
	if err := arc.LoadStub(1, "safepoint_poll", dest); err != nil {
		log.Fatalf("load failed: %v", err)
	}
	fmt.Printf("stub reinstalled: %d bytes, call retargeted to %#x\n",
		dest.End(), reader.EntryAddress("rt_safepoint"))
}
