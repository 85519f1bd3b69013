// Command font2ift converts a font into an incremental transfer
// encoding: an initial font plus a directory of patch files, driven by a
// TOML segmentation config.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/boxesandglue/ift/config"
	"github.com/boxesandglue/ift/encoder"
	"github.com/boxesandglue/ift/ot"
)

func main() {
	configPath := flag.String("config", "", "path to the segmentation config (TOML)")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *configPath == "" {
		log.Fatal("missing -config")
	}

	if err := run(*configPath, log); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string, log *logrus.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fontBytes, err := os.ReadFile(cfg.Font)
	if err != nil {
		return err
	}
	font, err := ot.ParseFont(fontBytes, 0)
	if err != nil {
		return err
	}

	enc := encoder.NewEncoder(font)
	enc.URLTemplate = cfg.URLTemplate
	enc.JumpAhead = cfg.JumpAhead
	enc.Logger = log
	if cfg.Id != nil {
		if err := enc.SetId(cfg.Id); err != nil {
			return err
		}
	}

	base, err := cfg.Base.Resolve()
	if err != nil {
		return err
	}
	if err := enc.SetBaseSubset(base); err != nil {
		return err
	}

	for _, seg := range cfg.Segments {
		def, err := seg.Resolve()
		if err != nil {
			return err
		}
		switch {
		case len(def.FeatureTags) > 0 && len(def.Codepoints) == 0 && len(def.DesignSpace) == 0:
			enc.AddOptionalFeatureGroup(def.SortedFeatureTags()...)
		case len(def.DesignSpace) > 0 && len(def.Codepoints) == 0 && len(def.FeatureTags) == 0:
			enc.AddOptionalDesignSpace(def.DesignSpace)
		default:
			if err := enc.AddExtensionSubset(def); err != nil {
				return err
			}
		}
	}

	for _, seg := range cfg.GlyphSegments {
		def, err := seg.Resolve()
		if err != nil {
			return err
		}
		if err := enc.AddGlyphSegment(def); err != nil {
			return err
		}
	}

	initialFont, err := enc.Encode()
	if err != nil {
		return err
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	fontPath := filepath.Join(outDir, "initial.ttf")
	if err := os.WriteFile(fontPath, initialFont, 0o644); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"path":  fontPath,
		"bytes": len(initialFont),
	}).Info("wrote initial font")

	for index, patch := range enc.Patches() {
		rel := filepath.FromSlash(enc.PatchURL(index))
		path := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, patch, 0o644); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"patch": index,
			"path":  path,
			"bytes": len(patch),
		}).Debug("wrote patch")
	}
	log.WithField("patches", len(enc.Patches())).Info("encoding complete")

	return nil
}
