// Package codearc implements a persistent on-disk archive for JIT-compiled
// machine code.
//
// Codearc captures the artifacts a managed runtime compiles at startup
// (stub routines, shared code blobs, compiled methods) into a single
// archive file, and reinstalls them in later runs of the same runtime
// configuration, skipping recompilation. Machine code is position-patched
// on the way back in: every relocation is re-resolved against the running
// process, and every object reference is re-resolved by name through the
// embedding runtime.
//
// # Quick Start
//
// Store session (one compiling run):
//
//	arc := codearc.Initialize(codearc.WriteConfig("./app.carc"), rt)
//	arc.InitCompiler() // once the optimizing compiler is up
//	arc.StoreStub(stubID, "checkcast", buf)
//	h, _ := arc.StoreMethod(m, desc, buf)
//	arc.Invalidate(h) // if m is recompiled or deoptimized later
//	arc.Close()       // finalizes the archive file
//
// Load session (every later run):
//
//	arc := codearc.Initialize(codearc.ReadConfig("./app.carc"), rt)
//	arc.LoadStub(stubID, "checkcast", stubRange)
//	arc.LoadMethod(m, 0) // decoded, patched, handed to rt.Install
//	arc.Close()
//
// A nil *Archive is inert: every operation fails with ErrClosed, so the
// "no archive" path needs no branching in the embedder.
//
// # Fleet Distribution
//
// Archives move between machines through a blob store, wrapped in a
// compressed and checksummed envelope:
//
//	codearc.Publish(ctx, store, "app-v42.carc", "./app.carc")
//	codearc.Fetch(ctx, store, "app-v42.carc", "./app.carc")
//
// # Failure Model
//
// Failures are scoped to the smallest unit that can absorb them. A missing
// class or an object the runtime cannot describe fails one store or load
// and rolls the write cursor back; a corrupt image, a version mismatch or
// an unresolvable runtime address disables the whole archive for the rest
// of the run. The embedder keeps running either way, at worst compiling
// from scratch.
//
// # Key Features
//
//   - Single-file archive with a fixed header, entry index and interned
//     string pool
//   - Relocation patching across runs (runtime calls, external words,
//     internal and section-relative words, object and metadata references)
//   - Decompilation-generation filtering and race-safe invalidation
//   - Concurrent loads, bounded drain on Close
//   - Structural verification of whole archives (Verify)
//   - Blob-store transfer with LZ4/ZSTD compression and CRC32-C integrity
//     (local filesystem, in-memory, S3 and MinIO backends)
package codearc
