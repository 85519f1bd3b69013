// Command iftclient extends an incremental transfer font from a local
// patch directory: it selects, fetches and applies the patches a target
// subset needs and writes the grown font.
package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/boxesandglue/ift/client"
	"github.com/boxesandglue/ift/ift"
	"github.com/boxesandglue/ift/ot"
)

func main() {
	fontPath := flag.String("font", "", "initial font file")
	patchDir := flag.String("dir", ".", "directory holding the patch files")
	outPath := flag.String("o", "extended.ttf", "output font file")
	text := flag.String("text", "", "codepoints to load, as literal text")
	features := flag.String("features", "", "comma separated feature tags")
	axes := flag.String("axes", "", "comma separated axis positions, e.g. wght=600,wdth=80")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if *fontPath == "" {
		log.Fatal("missing -font")
	}

	target, err := parseTarget(*text, *features, *axes)
	if err != nil {
		log.Fatal(err)
	}

	if err := run(*fontPath, *patchDir, *outPath, target, log); err != nil {
		log.Fatal(err)
	}
}

func parseTarget(text, features, axes string) (ift.SubsetDefinition, error) {
	target := ift.CodepointString(text)

	for _, tag := range splitList(features) {
		target.FeatureTags[ot.TagFromString(tag)] = true
	}

	for _, spec := range splitList(axes) {
		name, value, ok := strings.Cut(spec, "=")
		if !ok {
			return target, &badAxisError{spec}
		}
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return target, &badAxisError{spec}
		}
		target.DesignSpace[ot.TagFromString(name)] = ift.Point(float32(v))
	}

	return target, nil
}

type badAxisError struct{ spec string }

func (e *badAxisError) Error() string {
	return "bad axis position " + strconv.Quote(e.spec) + ", want tag=value"
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func run(fontPath, patchDir, outPath string, target ift.SubsetDefinition, log *logrus.Logger) error {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return err
	}

	session, err := client.NewSession(fontBytes, client.DirFetcher{Dir: patchDir})
	if err != nil {
		return err
	}

	if err := session.Extend(target); err != nil {
		return err
	}

	if err := os.WriteFile(outPath, session.FontBytes(), 0o644); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"path":  outPath,
		"bytes": len(session.FontBytes()),
	}).Info("wrote extended font")

	return nil
}
