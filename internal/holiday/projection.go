package holiday

import "github.com/noah-isme/holiday-tracker-api/internal/models"

// Project shapes records for the viewer. Non-admins never see approver emails
// or the emails of other users; admins get records unchanged.
func Project(viewer models.Viewer, items []models.HolidayDetail) []models.HolidayDetail {
	projected := make([]models.HolidayDetail, len(items))
	copy(projected, items)
	if viewer.IsAdmin() {
		return projected
	}
	for i := range projected {
		if projected[i].OwnerID != viewer.ID {
			projected[i].OwnerEmail = ""
		}
		projected[i].ApproverEmail = nil
	}
	return projected
}

// ProjectOne is Project for a single record.
func ProjectOne(viewer models.Viewer, item models.HolidayDetail) models.HolidayDetail {
	return Project(viewer, []models.HolidayDetail{item})[0]
}
