package rewrite

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/imglocal/internal/markdown"
)

// Map associates a reference, keyed by its start offset, with its new link target.
type Map map[int]string

// Set records the local path for ref.
func (m Map) Set(ref markdown.Reference, local string) {
	m[ref.Start] = local
}

// Apply replaces the exact `![alt](url)` span of every mapped reference with
// `![alt](local)`. Everything else in doc is copied byte for byte. refs must be
// in document order; overlapping or out-of-range references are left alone.
func Apply(doc string, refs []markdown.Reference, m Map) string {
	if len(m) == 0 {
		return doc
	}

	var sb strings.Builder
	sb.Grow(len(doc))
	last := 0
	for _, ref := range refs {
		local, ok := m[ref.Start]
		if !ok {
			continue
		}
		if ref.Start < last || ref.End > len(doc) || ref.Start > ref.End {
			continue
		}
		sb.WriteString(doc[last:ref.Start])
		sb.WriteString("![")
		sb.WriteString(ref.Alt)
		sb.WriteString("](")
		sb.WriteString(local)
		sb.WriteString(")")
		last = ref.End
	}
	sb.WriteString(doc[last:])
	return sb.String()
}

// LocalPath builds the relative link `./<dir>/<filename>` with forward slashes.
func LocalPath(dir, filename string) string {
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	dir = strings.TrimPrefix(dir, "./")
	if dir == "" || dir == "." {
		return "./" + filename
	}
	return "./" + path.Join(dir, filename)
}
