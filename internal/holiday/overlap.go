package holiday

import "github.com/noah-isme/holiday-tracker-api/internal/models"

// HasOverlap reports whether rng intersects any pending or approved request
// of ownerID in existing. The request identified by excludeID is skipped so an
// edit never conflicts with itself.
func HasOverlap(ownerID string, rng Range, existing []models.Holiday, excludeID string) bool {
	return FindOverlap(ownerID, rng, existing, excludeID) != nil
}

// FindOverlap returns the first conflicting request, or nil.
func FindOverlap(ownerID string, rng Range, existing []models.Holiday, excludeID string) *models.Holiday {
	for i := range existing {
		h := &existing[i]
		if h.OwnerID != ownerID || !h.Status.Active() {
			continue
		}
		if excludeID != "" && h.ID == excludeID {
			continue
		}
		if rng.Overlaps(Range{Start: h.StartDate, End: h.EndDate}) {
			return h
		}
	}
	return nil
}
