package markdown

// Reference is one `![alt](url)` image link found in a document.
type Reference struct {
	Alt string
	URL string

	// Start and End are byte offsets of the whole image link in the source text.
	Start int
	End   int
}

// Raw returns the exact matched substring of doc.
func (r Reference) Raw(doc string) string {
	if r.Start < 0 || r.End > len(doc) || r.Start > r.End {
		return ""
	}
	return doc[r.Start:r.End]
}
