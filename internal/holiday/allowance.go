package holiday

import "github.com/noah-isme/holiday-tracker-api/internal/models"

// UsedAllowance sums the working days of ownerID's pending and approved
// vacation requests starting in year, skipping excludeID.
func UsedAllowance(requests []models.Holiday, ownerID string, year int, excludeID string) int {
	used := 0
	for _, h := range requests {
		if !consumesAllowance(h, ownerID, year) {
			continue
		}
		if excludeID != "" && h.ID == excludeID {
			continue
		}
		used += h.WorkingDays
	}
	return used
}

// Balance reports how much of allowance ownerID has used in year.
func Balance(ownerID string, allowance int, requests []models.Holiday, year int) models.AllowanceBalance {
	balance := models.AllowanceBalance{UserID: ownerID, Year: year, Allowance: allowance}
	for _, h := range requests {
		if !consumesAllowance(h, ownerID, year) {
			continue
		}
		switch h.Status {
		case models.HolidayStatusApproved:
			balance.Approved += h.WorkingDays
		case models.HolidayStatusPending:
			balance.Pending += h.WorkingDays
		}
	}
	balance.Used = balance.Approved + balance.Pending
	balance.Remaining = allowance - balance.Used
	if balance.Remaining < 0 {
		balance.Remaining = 0
	}
	return balance
}

func consumesAllowance(h models.Holiday, ownerID string, year int) bool {
	return h.OwnerID == ownerID &&
		h.Type == models.HolidayTypeVacation &&
		h.Status.Active() &&
		h.StartDate.Year() == year
}
