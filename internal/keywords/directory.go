// Package keywords reduces long free-text values to the dictionary
// keywords they contain, so the index can search long descriptions
// without storing them whole.
package keywords

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPlainLength is the length below which plain strings are kept verbatim.
	MaxPlainLength = 128
	// MaxLocalizedLength is the length below which localized strings are kept verbatim.
	MaxLocalizedLength = 32
	// DefaultMaxLength bounds the size of a digest in bytes.
	DefaultMaxLength = 512
	// Separator joins keywords in a digest.
	Separator = " "
	// AnyLanguage keys keywords that apply to every language.
	AnyLanguage = "*"
)

// Directory is a language-tagged keyword dictionary. The zero value and a
// nil *Directory are usable and hold no keywords.
type Directory struct {
	byLanguage map[string][]string
	maxLength  int
}

// New builds a directory from language → keywords. Keywords are matched
// case-insensitively; duplicates are removed.
func New(entries map[string][]string, maxLength int) *Directory {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	d := &Directory{byLanguage: make(map[string][]string, len(entries)), maxLength: maxLength}
	for lang, words := range entries {
		seen := make(map[string]struct{}, len(words))
		list := make([]string, 0, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			list = append(list, w)
		}
		sort.Strings(list)
		d.byLanguage[strings.ToLower(lang)] = list
	}
	return d
}

// Load reads a JSON object of the form {"en": ["motor", ...], "*": [...]}.
func Load(r io.Reader, maxLength int) (*Directory, error) {
	var entries map[string][]string
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode keyword directory: %w", err)
	}
	return New(entries, maxLength), nil
}

// LoadFile reads a keyword directory from path.
func LoadFile(path string, maxLength int) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword directory: %w", err)
	}
	defer f.Close()
	return Load(f, maxLength)
}

// MaxLength returns the digest byte budget.
func (d *Directory) MaxLength() int {
	if d == nil || d.maxLength <= 0 {
		return DefaultMaxLength
	}
	return d.maxLength
}

// Size returns the number of keywords across all languages.
func (d *Directory) Size() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, words := range d.byLanguage {
		n += len(words)
	}
	return n
}

// Keywords returns the dictionary keywords contained in text, in sorted
// order. With a language only that language and AnyLanguage are consulted.
func (d *Directory) Keywords(text, language string) []string {
	if d == nil || len(d.byLanguage) == 0 || text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var langs []string
	if language == "" {
		for lang := range d.byLanguage {
			langs = append(langs, lang)
		}
	} else {
		langs = []string{strings.ToLower(language), AnyLanguage}
	}

	seen := make(map[string]struct{})
	var found []string
	for _, lang := range langs {
		for _, w := range d.byLanguage[lang] {
			if _, ok := seen[w]; ok {
				continue
			}
			if strings.Contains(lower, w) {
				seen[w] = struct{}{}
				found = append(found, w)
			}
		}
	}
	sort.Strings(found)
	return found
}

// Digest returns the value to index for text. Short values are returned
// verbatim; long ones are reduced to their keywords, joined with Separator
// and truncated to MaxLength bytes.
func (d *Directory) Digest(text, language string, localized bool) string {
	limit := MaxPlainLength
	if localized {
		limit = MaxLocalizedLength
	}
	if utf8.RuneCountInString(text) < limit {
		return text
	}
	return truncate(strings.Join(d.Keywords(text, language), Separator), d.MaxLength())
}

// truncate cuts s to at most n bytes, preferring a keyword boundary and
// never splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndex(cut, Separator); i > 0 && s[n:n+1] != Separator {
		return cut[:i]
	}
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
