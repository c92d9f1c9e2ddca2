package codearc

import "github.com/hupe1980/codearc/format"

// Stats is a point-in-time snapshot of an archive's contents.
type Stats struct {
	Path   string
	Mode   string // "store" or "load"
	Failed bool

	Entries    int
	Stubs      int
	Blobs      int
	Methods    int
	NotEntrant int

	ImageBytes int
	Strings    int

	// LoadedOnce counts the distinct entries served at least once during
	// this load session.
	LoadedOnce int
}

// Stats returns a snapshot of the archive. Unlike the data operations it
// works on a failed or closing archive, so final numbers can be reported at
// shutdown. In load mode the per-kind breakdown is only available once the
// entry index has been read, which the first lookup does.
func (a *Archive) Stats() Stats {
	if a == nil {
		return Stats{}
	}

	st := Stats{Path: a.cfg.Path, Failed: a.failed.Load()}

	if a.cfg.Store {
		st.Mode = "store"
		a.mu.Lock()
		st.Entries = len(a.entries)
		countKinds(&st, a.entries)
		for i := range a.entries {
			if a.entries[i].NotEntrant {
				st.NotEntrant++
			}
		}
		st.ImageBytes = a.w.Size()
		a.mu.Unlock()
		st.Strings = a.tab.StringCount()
		return st
	}

	st.Mode = "load"
	st.Entries = int(a.hdr.EntryCount)
	st.ImageBytes = int(a.hdr.ArchiveSize)
	st.Strings = int(a.hdr.StringsCount)
	if a.indexed.Load() {
		countKinds(&st, a.entries)
		for i := range a.flags {
			if a.flags[i].Load() {
				st.NotEntrant++
			}
		}
	}

	a.loadedMu.Lock()
	st.LoadedOnce = int(a.loaded.GetCardinality())
	a.loadedMu.Unlock()
	return st
}

func countKinds(st *Stats, entries []format.Entry) {
	for i := range entries {
		switch entries[i].Kind {
		case format.KindStub:
			st.Stubs++
		case format.KindBlob:
			st.Blobs++
		case format.KindCode:
			st.Methods++
		}
	}
}

// markLoaded records that entry i was served.
func (a *Archive) markLoaded(i int) {
	a.loadedMu.Lock()
	a.loaded.Add(uint32(i))
	a.loadedMu.Unlock()
}

func (a *Archive) logStats() {
	st := a.Stats()
	a.logger.Info("archive statistics",
		"mode", st.Mode,
		"entries", st.Entries,
		"stubs", st.Stubs,
		"blobs", st.Blobs,
		"methods", st.Methods,
		"not_entrant", st.NotEntrant,
		"image_bytes", st.ImageBytes,
		"strings", st.Strings,
		"loaded_once", st.LoadedOnce,
		"failed", st.Failed,
	)
}
