package utils

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugDisallowed = regexp.MustCompile(`[^-a-z0-9._/]+`)

// Slugify converts a free-form name into a package-safe slug: lower-case
// ASCII, accents stripped, spaces and underscores turned into hyphens, only
// [a-z0-9-./] kept. An empty result falls back to "camtrap-package".
func Slugify(s string) string {
	s = StripAccents(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ToLower(s)
	s = slugDisallowed.ReplaceAllString(s, "")
	s = strings.Trim(s, "-./")
	if s == "" {
		return "camtrap-package"
	}
	return s
}

// StripAccents removes diacritic marks, keeping the base ASCII letters.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CleanText compacts whitespace and strips accents, for manifest metadata
// fields that downstream aggregators expect in plain ASCII.
func CleanText(s string) string {
	return StripAccents(strings.Join(strings.Fields(s), " "))
}

// mediaTypes maps file extensions to IANA media types for the export formats
// camera traps actually produce.
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
}

// MediaType returns the media type for a file path or extension, falling back
// to application/octet-stream for anything unrecognized.
func MediaType(pathOrExt string) string {
	ext := strings.ToLower(filepath.Ext(pathOrExt))
	if ext == "" && strings.HasPrefix(pathOrExt, ".") {
		ext = strings.ToLower(pathOrExt)
	}
	if mt, ok := mediaTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
