// Package mergeback applies finalized target text — human edits or machine
// translations reviewed by a human — into a language document.
//
// It also carries the JSON codec for the edit form exchanged with the
// operator: export writes the pending units as an editable list, apply reads
// the {id, target} edits back.
package mergeback

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xlf-tools/xlfsync/xlffile"
)

// Edit is one incoming target-text edit.
type Edit struct {
	ID     string `json:"id"`
	Target string `json:"target"`
}

// FormEntry is one pending unit as shown to the operator.
type FormEntry struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

// Apply merges edits into the document and returns the number applied.
//
// An edit with an empty target is treated as "no change", never as "clear
// the target" — declining to override keeps any prior machine translation.
// Edits for unknown ids are dropped silently; the form may be stale
// relative to the document.
func Apply(doc *xlffile.File, edits []Edit) int {
	applied := 0
	for _, e := range edits {
		if e.Target == "" {
			continue
		}
		if doc.SetTarget(e.ID, e.Target) {
			applied++
		}
	}
	return applied
}

// Form builds the editable form entries for a set of pending units. The
// operator sees plain text; Apply re-escapes edited targets on the way back.
func Form(units []*xlffile.Unit) []FormEntry {
	entries := make([]FormEntry, len(units))
	for i, u := range units {
		entries[i] = FormEntry{
			ID:          u.ID,
			Source:      xlffile.UnescapeText(u.Source),
			Target:      xlffile.UnescapeText(u.Target),
			Description: xlffile.UnescapeText(u.Description()),
		}
	}
	return entries
}

// WriteForm writes form entries as indented JSON.
func WriteForm(w io.Writer, entries []FormEntry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("writing edit form: %w", err)
	}
	return nil
}

// ReadEdits decodes an edits list. Both the full form shape and the bare
// {id, target} shape decode into edits.
func ReadEdits(r io.Reader) ([]Edit, error) {
	var edits []Edit
	if err := json.NewDecoder(r).Decode(&edits); err != nil {
		return nil, fmt.Errorf("reading edits: %w", err)
	}
	return edits, nil
}
