// Package reconcile brings a language document's unit set into alignment
// with the authoritative catalog.
//
// For every matched unit the source and description are refreshed from the
// catalog; rename matches are additionally relabeled and relocated. Catalog
// units with no counterpart are created with an empty target; document units
// with no counterpart are removed. Target text of surviving units is never
// touched. The operation is idempotent.
package reconcile

import (
	"github.com/xlf-tools/xlfsync/match"
	"github.com/xlf-tools/xlfsync/xlffile"
)

// Stats summarizes a reconciliation run over one document.
type Stats struct {
	// Created is the number of units added from the catalog.
	Created int
	// Removed is the number of obsolete units dropped.
	Removed int
	// Renames lists the rename-pass relabels that were applied, so callers
	// can surface them for audit.
	Renames []match.Pair
}

// Renamed returns the number of applied renames.
func (s Stats) Renamed() int { return len(s.Renames) }

// Changed reports whether the document was structurally modified.
func (s Stats) Changed() bool {
	return s.Created > 0 || s.Removed > 0 || len(s.Renames) > 0
}

// Reconcile mutates doc so that its unit id set equals the catalog's.
// The catalog is read-only and safe to share across concurrent calls.
func Reconcile(catalog, doc *xlffile.File) Stats {
	var stats Stats

	catalogUnits := catalog.Units()
	catalogPos := make(map[string]int, len(catalogUnits))
	catalogByID := make(map[string]*xlffile.Unit, len(catalogUnits))
	for i, c := range catalogUnits {
		catalogPos[c.ID] = i
		catalogByID[c.ID] = c
	}

	res := match.Units(catalogUnits, doc.Units())

	// Matched units: relabel renames, then refresh source and description.
	for _, p := range res.Pairs {
		c := catalogByID[p.CatalogID]
		if p.Renamed {
			doc.SetID(p.DocumentID, p.CatalogID)
			doc.RelocateUnit(p.CatalogID, catalogPos[p.CatalogID])
			stats.Renames = append(stats.Renames, p)
		}
		doc.SetSource(p.CatalogID, c.Source)
		doc.SetDescription(p.CatalogID, c.Description())
	}

	// Missing units: create as a copy of the catalog unit with an empty
	// target element, appended to the group.
	for _, id := range res.Missing {
		nu := catalogByID[id].Clone()
		nu.Target = ""
		nu.HasTarget = true
		doc.InsertUnit(nu)
		stats.Created++
	}

	// Obsolete units: remove entirely. This is the only path that drops a
	// target value.
	for _, id := range res.Obsolete {
		if doc.RemoveUnit(id) {
			stats.Removed++
		}
	}

	return stats
}
