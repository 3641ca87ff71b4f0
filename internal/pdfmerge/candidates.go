package pdfmerge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// HasExtension reports whether name ends in ext, ignoring case. ext
// includes the leading dot.
func HasExtension(name, ext string) bool {
	if len(name) <= len(ext) {
		return false
	}

	return strings.EqualFold(name[len(name)-len(ext):], ext)
}

// ListCandidates returns the regular files directly inside dir whose names
// match ext, in name order. Subdirectories (including archive folders) are
// never descended into.
func ListCandidates(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pdfmerge: listing %s: %w", dir, err)
	}

	var paths []string

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		if !HasExtension(entry.Name(), ext) {
			continue
		}

		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	return SortByName(paths), nil
}

// SortByName returns a copy of paths ordered by NFC-normalized base name so
// the merge order does not depend on directory enumeration order or on
// which Unicode form the filesystem hands back.
func SortByName(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := sortKey(sorted[i]), sortKey(sorted[j])
		if ki != kj {
			return ki < kj
		}

		return sorted[i] < sorted[j]
	})

	return sorted
}

func sortKey(p string) string {
	return norm.NFC.String(filepath.Base(p))
}
