// Package filename turns user supplied export names into safe, lower-case file names.
package filename

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultName      = "file"
	DefaultExtension = ".twinedata"
)

var (
	unsafeRun  = regexp.MustCompile(`[^a-z0-9._-]+`)
	dashRun    = regexp.MustCompile(`-{2,}`)
	dotDash    = regexp.MustCompile(`-*\.-*`)
	stripMarks = runes.Remove(runes.In(unicode.Mn))
)

// Normalizer applies a default name and extension. The zero value uses the package defaults.
type Normalizer struct {
	DefaultName string
	// With or without leading dot.
	DefaultExtension string
}

// NormalizeFileName normalizes name with the package defaults.
func NormalizeFileName(name string) string {
	return Normalizer{}.Normalize(name)
}

// Normalize returns a slug of name, adding the default extension when the slug has no dot.
// Blank names, and names that slugify to nothing, become the default name.
func (n Normalizer) Normalize(name string) string {
	slug := Slugify(strings.TrimSpace(name))
	if slug == "" {
		slug = n.defaultName()
	}
	if !strings.Contains(slug, ".") {
		slug += n.extension()
	}
	return slug
}

// Slugify lower-cases s, folds accented letters to their base letter and
// collapses every run of characters outside [a-z0-9._-] into a single dash.
// Dashes next to a dot are dropped so an extension stays attached to the name.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = unsafeRun.ReplaceAllString(s, "-")
	s = dashRun.ReplaceAllString(s, "-")
	s = dotDash.ReplaceAllString(s, ".")
	return strings.Trim(s, "-.")
}

func (n Normalizer) defaultName() string {
	if d := Slugify(n.DefaultName); d != "" {
		return d
	}
	return DefaultName
}

func (n Normalizer) extension() string {
	ext := strings.TrimSpace(n.DefaultExtension)
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
