// Package config loads the encoder's segmentation configuration from a
// TOML file: the base subset, the extension segments, glyph-keyed
// segments, and the output settings.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/rangetable"

	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
)

// Config is the top-level configuration file.
type Config struct {
	Font        string `toml:"font"`
	OutDir      string `toml:"out_dir"`
	URLTemplate string `toml:"url_template"`
	JumpAhead   int    `toml:"jump_ahead"`

	// Id is the compatibility id; must have length 4.
	Id []uint32 `toml:"id"`

	Base          Segment   `toml:"base"`
	Segments      []Segment `toml:"segment"`
	GlyphSegments []Segment `toml:"glyph_segment"`
}

// Segment describes one unit of addable coverage.
type Segment struct {
	// Codepoints lists single characters ("a"), character ranges
	// ("a-z"), and U+ forms ("U+0041", "U+0041-U+005A").
	Codepoints []string `toml:"codepoints"`

	// Scripts names Unicode scripts ("Latin", "Cyrillic") whose
	// codepoints are merged in.
	Scripts []string `toml:"scripts"`

	// Features lists OpenType feature tags.
	Features []string `toml:"features"`

	// Gids lists explicit glyph ids.
	Gids []uint32 `toml:"gids"`

	// DesignSpace maps axis tags to [min, max] (or [value] for a
	// point).
	DesignSpace map[string][]float64 `toml:"design_space"`
}

// Load reads and decodes a configuration file.
func Load(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ift.ErrConfig, err)
	}
	if c.URLTemplate == "" {
		c.URLTemplate = "patch{id}.br"
	}
	if c.JumpAhead < 1 {
		c.JumpAhead = 1
	}
	if c.Id != nil && len(c.Id) != 4 {
		return nil, fmt.Errorf("%w: id must have length 4, got %d", ift.ErrConfig, len(c.Id))
	}
	return &c, nil
}

// Resolve expands a segment into a subset definition.
func (s Segment) Resolve() (ift.SubsetDefinition, error) {
	def := ift.NewSubsetDefinition()

	for _, spec := range s.Codepoints {
		if err := addCodepoints(def.Codepoints, spec); err != nil {
			return def, err
		}
	}

	if len(s.Scripts) > 0 {
		tables := make([]*unicode.RangeTable, 0, len(s.Scripts))
		for _, name := range s.Scripts {
			rt, ok := unicode.Scripts[name]
			if !ok {
				return def, fmt.Errorf("%w: unknown script %q", ift.ErrConfig, name)
			}
			tables = append(tables, rt)
		}
		rangetable.Visit(rangetable.Merge(tables...), func(r rune) {
			def.Codepoints[ot.Codepoint(r)] = true
		})
	}

	for _, feature := range s.Features {
		if len(feature) == 0 || len(feature) > 4 {
			return def, fmt.Errorf("%w: bad feature tag %q", ift.ErrConfig, feature)
		}
		def.FeatureTags[ot.TagFromString(feature)] = true
	}

	for _, gid := range s.Gids {
		if gid > 0xFFFF {
			return def, fmt.Errorf("%w: glyph id %d out of range", ift.ErrConfig, gid)
		}
		def.Gids[ot.GlyphID(gid)] = true
	}

	for axis, bounds := range s.DesignSpace {
		if len(axis) == 0 || len(axis) > 4 {
			return def, fmt.Errorf("%w: bad axis tag %q", ift.ErrConfig, axis)
		}
		var r ift.AxisRange
		var err error
		switch len(bounds) {
		case 1:
			r = ift.Point(float32(bounds[0]))
		case 2:
			r, err = ift.Range(float32(bounds[0]), float32(bounds[1]))
			if err != nil {
				return def, err
			}
		default:
			return def, fmt.Errorf("%w: axis %q needs [value] or [min, max]", ift.ErrConfig, axis)
		}
		def.DesignSpace[ot.TagFromString(axis)] = r
	}

	return def, nil
}

// addCodepoints parses one codepoint spec into the set.
func addCodepoints(set map[ot.Codepoint]bool, spec string) error {
	parse := func(part string) (ot.Codepoint, error) {
		if strings.HasPrefix(part, "U+") || strings.HasPrefix(part, "u+") {
			v, err := strconv.ParseUint(part[2:], 16, 32)
			if err != nil || v > 0x10FFFF {
				return 0, fmt.Errorf("%w: bad codepoint %q", ift.ErrConfig, part)
			}
			return ot.Codepoint(v), nil
		}
		runes := []rune(part)
		if len(runes) != 1 {
			return 0, fmt.Errorf("%w: bad codepoint %q", ift.ErrConfig, part)
		}
		return ot.Codepoint(runes[0]), nil
	}

	// A range separator is a "-" that is not the spec itself.
	if idx := rangeSeparator(spec); idx >= 0 {
		lo, err := parse(spec[:idx])
		if err != nil {
			return err
		}
		hi, err := parse(spec[idx+1:])
		if err != nil {
			return err
		}
		if hi < lo {
			return fmt.Errorf("%w: inverted codepoint range %q", ift.ErrConfig, spec)
		}
		for cp := lo; cp <= hi; cp++ {
			set[cp] = true
		}
		return nil
	}

	cp, err := parse(spec)
	if err != nil {
		return err
	}
	set[cp] = true
	return nil
}

func rangeSeparator(spec string) int {
	// "a-z" and "U+0041-U+005A" are ranges; "-" alone is the hyphen
	// codepoint.
	if len(spec) < 3 {
		return -1
	}
	for i := 1; i < len(spec)-1; i++ {
		if spec[i] == '-' {
			// Don't split the middle of a U+ form.
			if spec[i-1] == '+' {
				continue
			}
			return i
		}
	}
	return -1
}
