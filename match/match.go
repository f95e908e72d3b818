// Package match decides which units of a language document correspond to
// which units of the authoritative catalog.
//
// Matching runs in two passes: an exact id pass, then a best-effort rename
// pass that re-links units whose id changed upstream but whose content did
// not. Anything left over signals creation (catalog side) or removal
// (document side).
package match

import (
	"strings"

	"github.com/xlf-tools/xlfsync/xlffile"
)

// Pair links a catalog unit to its corresponding document unit.
type Pair struct {
	CatalogID  string
	DocumentID string
	// Renamed is true when the pair came from the rename pass, i.e. the
	// document unit must be relabeled to the catalog id.
	Renamed bool
}

// Result describes a full correspondence between catalog and document.
type Result struct {
	// Pairs are matched units, catalog order. Exact matches first is not
	// guaranteed; check Pair.Renamed.
	Pairs []Pair
	// Missing are catalog ids with no document counterpart (create), in
	// catalog order.
	Missing []string
	// Obsolete are document ids with no catalog counterpart (remove), in
	// document order. Document units consumed by the rename pass are
	// excluded.
	Obsolete []string
}

// Units computes the correspondence between catalog and document units.
// A catalog unit matches at most one document unit and vice versa, across
// both passes.
func Units(catalog, document []*xlffile.Unit) Result {
	var res Result

	docByID := make(map[string]*xlffile.Unit, len(document))
	for _, d := range document {
		docByID[d.ID] = d
	}

	matchedDoc := make(map[string]bool)

	// Pass 1: exact id.
	var pendingCatalog []*xlffile.Unit
	for _, c := range catalog {
		if _, ok := docByID[c.ID]; ok {
			res.Pairs = append(res.Pairs, Pair{CatalogID: c.ID, DocumentID: c.ID})
			matchedDoc[c.ID] = true
			continue
		}
		pendingCatalog = append(pendingCatalog, c)
	}

	// Pass 2: rename detection over what remains. Ties resolve to the
	// earliest unmatched document unit.
	for _, c := range pendingCatalog {
		found := false
		for _, d := range document {
			if matchedDoc[d.ID] {
				continue
			}
			if !sameIdentity(c.ID, d.ID) {
				continue
			}
			if c.Source != d.Source {
				continue
			}
			res.Pairs = append(res.Pairs, Pair{CatalogID: c.ID, DocumentID: d.ID, Renamed: true})
			matchedDoc[d.ID] = true
			found = true
			break
		}
		if !found {
			res.Missing = append(res.Missing, c.ID)
		}
	}

	for _, d := range document {
		if !matchedDoc[d.ID] {
			res.Obsolete = append(res.Obsolete, d.ID)
		}
	}

	return res
}

// sameIdentity reports whether two unit ids plausibly denote the same
// physical unit after an upstream rename. Both ids must split on "-" into
// the same number of segments with all segments from index 1 onward
// identical. Segment 0 (the kind token) is compared only up to its first
// space: the human-readable name that follows is exactly what authoring
// tools rewrite when a containing object is renamed.
func sameIdentity(a, b string) bool {
	as := strings.Split(a, "-")
	bs := strings.Split(b, "-")
	if len(as) != len(bs) {
		return false
	}
	for i := 1; i < len(as); i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return kindToken(as[0]) == kindToken(bs[0])
}

func kindToken(seg string) string {
	if i := strings.IndexByte(seg, ' '); i >= 0 {
		return seg[:i]
	}
	return seg
}
