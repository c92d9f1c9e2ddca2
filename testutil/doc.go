// Package testutil provides testing utilities for codearc.
//
// This package is intended for use in tests and benchmarks only. Its
// centerpiece is Runtime, an in-memory stand-in for a managed runtime
// embedding the archive:
//
//	writer := testutil.NewRuntime(0x10000000)
//	reader := testutil.NewRuntime(0x74000000)
//
// Two Runtimes share the same well-known entry names in the same order, so
// they model the writer and reader processes of one runtime build at
// different load addresses: ids encoded against the first decode to the
// second's addresses.
package testutil
