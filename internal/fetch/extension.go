package fetch

import (
	"net/url"
	"path"
	"strings"
)

// DefaultExtension is used when the URL path has no known image suffix.
const DefaultExtension = ".png"

// ImageExtensions are the suffixes recognised in URL paths.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp"}

// ExtensionFromURL picks the image extension from the URL path, ignoring the
// query and fragment.
func ExtensionFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	for _, known := range ImageExtensions {
		if ext == known {
			return known
		}
	}
	return DefaultExtension
}
