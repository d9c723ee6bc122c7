package service

import (
	"math"

	"github.com/noah-isme/onboarding-api/internal/models"
)

// Recompute derives checklist progress from the full item snapshot.
func Recompute(items []models.ChecklistItem) models.Progress {
	progress := models.Progress{TotalItems: len(items)}
	for i := range items {
		if items[i].IsCompleted {
			progress.CompletedItems++
		}
	}
	progress.Percentage = percentage(progress.CompletedItems, progress.TotalItems)
	return progress
}

func percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}
