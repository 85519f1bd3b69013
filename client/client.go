// Package client implements the consumer side of an incremental font
// transfer encoding: given an initial font it selects the patches a
// target subset requires, fetches them, applies them, and keeps the
// embedded patch map up to date.
package client

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
)

// Fetcher resolves a patch URL to the patch bytes.
type Fetcher interface {
	Fetch(url string) ([]byte, error)
}

// MapFetcher serves patches from memory, keyed by expanded URL.
type MapFetcher map[string][]byte

// Fetch returns the patch stored under url.
func (m MapFetcher) Fetch(url string) ([]byte, error) {
	data, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("%w: no patch at %q", ift.ErrResource, url)
	}
	return data, nil
}

// DirFetcher reads patches from a directory, treating URLs as relative
// paths.
type DirFetcher struct {
	Dir string
}

// Fetch reads the patch file at url below the directory.
func (d DirFetcher) Fetch(url string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.Dir, filepath.FromSlash(url)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ift.ErrResource, err)
	}
	return data, nil
}

// Session holds a font undergoing extension.
type Session struct {
	fontBytes []byte
	font      *ot.Font
	patchMap  *ift.PatchMap
	fetcher   Fetcher
	applied   map[uint32]bool
}

// NewSession starts a session from an initial font carrying an IFT table.
func NewSession(fontBytes []byte, fetcher Fetcher) (*Session, error) {
	s := &Session{
		fontBytes: fontBytes,
		fetcher:   fetcher,
		applied:   make(map[uint32]bool),
	}
	if err := s.reload(fontBytes); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) reload(fontBytes []byte) error {
	font, err := ot.ParseFont(fontBytes, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ift.ErrFormat, err)
	}

	// A fully extended font has no IFT table left; its map is empty.
	patchMap := &ift.PatchMap{}
	if font.HasTable(ot.TagIFT) {
		iftData, _ := font.TableData(ot.TagIFT)
		var iftxData []byte
		if font.HasTable(ot.TagIFTX) {
			iftxData, _ = font.TableData(ot.TagIFTX)
		}
		patchMap, err = ift.ParsePatchMap(iftData, iftxData)
		if err != nil {
			return err
		}
	}

	s.fontBytes = fontBytes
	s.font = font
	s.patchMap = patchMap
	return nil
}

// FontBytes returns the current font binary.
func (s *Session) FontBytes() []byte {
	return s.fontBytes
}

// PatchMap returns the current patch map.
func (s *Session) PatchMap() *ift.PatchMap {
	return s.patchMap
}

// Extend fetches and applies patches until no entry matching the target
// subset definition remains unapplied.
func (s *Session) Extend(target ift.SubsetDefinition) error {
	for {
		entry, ok := s.nextEntry(target)
		if !ok {
			return nil
		}

		url := ift.ExpandURLTemplate(s.patchMap.URLTemplate, entry.PatchIndex)
		patch, err := s.fetcher.Fetch(url)
		if err != nil {
			return err
		}

		switch entry.Encoding {
		case ift.GlyphKeyed:
			err = s.applyGlyphKeyed(patch)
		case ift.TableKeyedFull, ift.TableKeyedPartial:
			err = s.applyTableKeyed(patch)
		default:
			err = fmt.Errorf("%w: unknown patch encoding %d", ift.ErrFormat, entry.Encoding)
		}
		if err != nil {
			return fmt.Errorf("applying patch %d: %w", entry.PatchIndex, err)
		}

		s.applied[entry.PatchIndex] = true
	}
}

// nextEntry picks the next matching unapplied entry. Table-keyed patches
// go first since they rewrite the patch map; ties break on patch index.
// Entries already applied still count as matched so composite conditions
// referencing them keep working.
func (s *Session) nextEntry(target ift.SubsetDefinition) (ift.Entry, bool) {
	var candidates []ift.Entry
	for _, extension := range []bool{false, true} {
		candidates = append(candidates, s.matchingEntries(extension, target)...)
	}

	candidates = filterUnapplied(candidates, s.applied)
	if len(candidates) == 0 {
		return ift.Entry{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		ti := candidates[i].Encoding != ift.GlyphKeyed
		tj := candidates[j].Encoding != ift.GlyphKeyed
		if ti != tj {
			return ti
		}
		return candidates[i].PatchIndex < candidates[j].PatchIndex
	})
	return candidates[0], true
}

// matchingEntries evaluates one table's entries, treating applied entries
// as matched.
func (s *Session) matchingEntries(extension bool, target ift.SubsetDefinition) []ift.Entry {
	entries := s.patchMap.TableEntries(extension)
	matched := make([]bool, len(entries))
	var out []ift.Entry

	for i, e := range entries {
		switch e.Mode {
		case ift.ConditionAnd:
			ok := len(e.CopiedIndices) > 0
			for _, idx := range e.CopiedIndices {
				if idx < 0 || idx >= i || !matched[idx] {
					ok = false
					break
				}
			}
			matched[i] = ok
		case ift.ConditionOr:
			for _, idx := range e.CopiedIndices {
				if idx >= 0 && idx < i && matched[idx] {
					matched[i] = true
					break
				}
			}
		default:
			matched[i] = s.applied[e.PatchIndex] || e.Coverage.Matches(target)
		}
		if matched[i] {
			out = append(out, entries[i])
		}
	}
	return out
}

func filterUnapplied(entries []ift.Entry, applied map[uint32]bool) []ift.Entry {
	out := entries[:0]
	for _, e := range entries {
		if !applied[e.PatchIndex] {
			out = append(out, e)
		}
	}
	return out
}
