package workbook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxSheetNameLength is the sheet name limit imposed by Excel.
const MaxSheetNameLength = 31

// anchorPrefix starts every defined name owned by the renderer.
const anchorPrefix = "cs_"

// SheetName turns a label into a valid sheet name: NFC-normalized, with the
// characters Excel rejects replaced and the length limited to 31 runes.
func SheetName(label string) string {
	s := norm.NFC.String(strings.TrimSpace(label))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(s, "'")
	if s == "" {
		s = "Sheet"
	}
	return truncateRunes(s, MaxSheetNameLength)
}

// UniqueSheetName returns SheetName(label), suffixed with " (n)" when the
// name is already taken. Comparison is case-insensitive, as in Excel.
func UniqueSheetName(label string, taken map[string]bool) string {
	base := SheetName(label)
	if !taken[strings.ToLower(base)] {
		return base
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name := truncateRunes(base, MaxSheetNameLength-utf8.RuneCountInString(suffix)) + suffix
		if !taken[strings.ToLower(name)] {
			return name
		}
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// AnchorName returns the defined name anchoring the region of node id.
// Characters not allowed in defined names are replaced; a digest suffix
// keeps distinct ids from colliding after replacement.
func AnchorName(id string) string {
	var b strings.Builder
	changed := false
	for _, r := range id {
		if r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
		changed = true
	}
	name := anchorPrefix + b.String()
	if changed || len(name) > 200 {
		sum := sha256.Sum256([]byte(id))
		name = truncateRunes(name, 190) + "_" + hex.EncodeToString(sum[:4])
	}
	return name
}

// quoteSheet quotes a sheet name for use in a reference.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// unquoteSheet reverses quoteSheet.
func unquoteSheet(ref string) string {
	if len(ref) >= 2 && strings.HasPrefix(ref, "'") && strings.HasSuffix(ref, "'") {
		return strings.ReplaceAll(ref[1:len(ref)-1], "''", "'")
	}
	return ref
}
