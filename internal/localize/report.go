package localize

import (
	"encoding/json"
	"io"
)

// Status is the outcome of one image reference.
type Status string

const (
	StatusLocalized   Status = "localized"
	StatusFetchFailed Status = "fetch_failed"
	StatusWriteFailed Status = "write_failed"
)

// Entry is the outcome for a single reference, in document order.
type Entry struct {
	Alt       string `json:"alt"`
	URL       string `json:"url"`
	Offset    int    `json:"offset"`
	Status    Status `json:"status"`
	LocalPath string `json:"local_path,omitempty"` // link written into the document
	File      string `json:"file,omitempty"`       // path on disk
	Bytes     int    `json:"bytes,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	Reused    bool   `json:"reused,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report enumerates per-reference outcomes of one Localize call.
type Report struct {
	ImageDir string  `json:"image_dir"`
	Entries  []Entry `json:"entries"`
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Localized returns the number of references rewritten to a local path.
func (r *Report) Localized() int {
	return r.Counts()[StatusLocalized]
}

// Downloaded returns the number of distinct assets written in this run.
func (r *Report) Downloaded() int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == StatusLocalized && !e.Reused {
			n++
		}
	}
	return n
}

// Failed returns the entries that kept their original URL.
func (r *Report) Failed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Status != StatusLocalized {
			out = append(out, e)
		}
	}
	return out
}

// Counts tallies entries by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, 3)
	for _, e := range r.Entries {
		counts[e.Status]++
	}
	return counts
}

// Changed reports whether at least one reference was localized.
func (r *Report) Changed() bool {
	return r.Localized() > 0
}

// WriteJSON encodes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	entries := r.Entries
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Report{ImageDir: r.ImageDir, Entries: entries})
}
