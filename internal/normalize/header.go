// Package normalize maps variable source column headers onto the pipeline's
// canonical field names and validates that every required field is
// present. Alias tables are compile-time data, not a runtime pattern
// resolver, per the redesign note that replaces the teacher's regex-based
// aliasing.Resolver with this narrower, closed-set mechanism.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrMissingColumns is returned when a required canonical column has no
// matching source header.
var ErrMissingColumns = errors.New("normalize: required columns missing")

// diacriticReplacer strips the accented Portuguese letters this dataset's
// headers commonly contain. A manual table is used instead of
// golang.org/x/text/unicode/norm so that the mapping stays a single pass
// with no intermediate allocation, mirroring the teacher's preference for
// manual string parsing over heavier text-processing layers
// (internal/canonicalization/normalize.go).
var diacriticReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// Header normalizes a single source column header: strip BOM, lowercase,
// strip diacritics, collapse non-alphanumeric runs to underscores, trim.
func Header(raw string) string {
	s := strings.TrimPrefix(raw, "\xef\xbb\xbf")
	s = strings.ToLower(strings.TrimSpace(s))
	s = diacriticReplacer.Replace(s)

	var b strings.Builder

	prevUnderscore := false

	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}

	return strings.TrimRight(b.String(), "_")
}

// AliasMap maps a canonical field name to the set of normalized header
// variants observed in source files.
type AliasMap map[string][]string

// Mapping resolves a table's header row into canonical -> column-index,
// using aliases for the given entity.
type Mapping map[string]int

// Resolve builds a Mapping from a raw header row and an entity's alias
// table, and fails if required canonical fields have no match.
func Resolve(header []string, aliases AliasMap, required []string) (Mapping, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = Header(h)
	}

	reverse := make(map[string]string, 64) // normalized variant -> canonical
	for canonical, variants := range aliases {
		reverse[canonical] = canonical // the canonical name is always an accepted variant

		for _, v := range variants {
			reverse[Header(v)] = canonical
		}
	}

	mapping := make(Mapping, len(header))

	for i, h := range normalized {
		if canonical, ok := reverse[h]; ok {
			mapping[canonical] = i
		}
	}

	var missing []string

	for _, canonical := range required {
		if _, ok := mapping[canonical]; !ok {
			missing = append(missing, canonical)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return mapping, nil
}

// Get returns the cell at the mapped canonical column, or "" if the
// canonical field was not present in the header (and therefore optional).
func (m Mapping) Get(row []string, canonical string) string {
	idx, ok := m[canonical]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
