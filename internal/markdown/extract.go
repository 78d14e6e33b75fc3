package markdown

import (
	"iter"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

var imageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)

// ExtractOptions controls which image links are picked up.
type ExtractOptions struct {
	// Schemes lists accepted URL schemes. Empty means http and https.
	Schemes []string

	// HostPrefix restricts matches to URLs starting with it (trusted-source mode).
	HostPrefix string

	// SkipCode ignores image syntax inside code blocks and code spans.
	SkipCode bool
}

// DefaultExtractOptions accepts any http(s) image outside of code.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		Schemes:  []string{"http", "https"},
		SkipCode: true,
	}
}

// Extractor finds remote image references in Markdown text.
type Extractor struct {
	schemes    []string
	hostPrefix string
	skipCode   bool
}

func NewExtractor(opts ExtractOptions) *Extractor {
	schemes := make([]string, 0, len(opts.Schemes))
	for _, s := range opts.Schemes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			schemes = append(schemes, s)
		}
	}
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	return &Extractor{
		schemes:    schemes,
		hostPrefix: opts.HostPrefix,
		skipCode:   opts.SkipCode,
	}
}

// References yields accepted image references in document order. The sequence
// can be ranged over any number of times.
func (e *Extractor) References(doc string) iter.Seq[Reference] {
	return func(yield func(Reference) bool) {
		var code []span
		if e.skipCode {
			code = codeRanges([]byte(doc))
		}
		for _, m := range imageRe.FindAllStringSubmatchIndex(doc, -1) {
			ref := Reference{
				Alt:   doc[m[2]:m[3]],
				URL:   doc[m[4]:m[5]],
				Start: m[0],
				End:   m[1],
			}
			if !e.accepts(ref.URL) || inside(code, ref.Start) {
				continue
			}
			if !yield(ref) {
				return
			}
		}
	}
}

// Collect returns all references of doc as a slice.
func (e *Extractor) Collect(doc string) []Reference {
	return slices.Collect(e.References(doc))
}

func (e *Extractor) accepts(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	if !slices.Contains(e.schemes, strings.ToLower(u.Scheme)) {
		return false
	}
	if e.hostPrefix != "" && !strings.HasPrefix(raw, e.hostPrefix) {
		return false
	}
	return true
}
