package objectkey

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key from a display name and the name of
	// the uploaded file
	GenerateKey(name, fileName string) string
}

// TimestampGenerator produces flat keys of the form {epoch-millis}_{slug}.{ext}
type TimestampGenerator struct {
	// Now is the clock used for the prefix (default: time.Now)
	Now func() time.Time
	// DefaultExt is used when the file name has no usable extension
	DefaultExt string
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{
		Now:        time.Now,
		DefaultExt: "bin",
	}
}

func (g *TimestampGenerator) GenerateKey(name, fileName string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	slug := Slug(name)
	if slug == "" {
		slug = "file"
	}
	ext := Extension(fileName)
	if ext == "" {
		ext = g.DefaultExt
	}
	return fmt.Sprintf("%d_%s.%s", now().UnixMilli(), slug, ext)
}

// Slug lowercases s, strips diacritics, maps ñ to n and turns every run of
// characters outside [a-z0-9] into a single '-'. Leading and trailing
// dashes are trimmed.
func Slug(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ñ", "n")
	s = stripMarks(s)

	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// Extension returns the lowercased extension of fileName without the dot,
// reduced to [a-z0-9]. It returns "" when there is none.
func Extension(fileName string) string {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	ext = strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, ext)
	return ext
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
