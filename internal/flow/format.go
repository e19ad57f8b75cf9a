package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/HabitPipe/internal/models"
)

// FormatHabit renders a single habit as a multi-line block with the creation
// date truncated to date-only.
func FormatHabit(h models.Habit) string {
	return fmt.Sprintf("📌 Habit #%d\n🎯 Name: %s\n📝 Description: %s\n📅 Created: %s\n✅ Days done: %d/%d",
		h.ID, h.Name, h.Description, h.CreatedAt.Format("2006-01-02"), h.CompletedDays, h.TotalDays)
}

// formatHabitBlocks joins full habit blocks for the /myhabits listing.
func formatHabitBlocks(habits []models.Habit) string {
	var b strings.Builder
	b.WriteString("📋 Your habits:\n")
	for _, h := range habits {
		b.WriteString("\n")
		b.WriteString(FormatHabit(h))
		b.WriteString("\n")
	}
	return b.String()
}

// formatChooser renders the "#id - name" list used when asking the user to
// pick a target habit. When markMissingDescription is set, habits without a
// description are flagged so the user can see which ones still need one.
func formatChooser(header string, habits []models.Habit, markMissingDescription bool) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	for _, h := range habits {
		if markMissingDescription && h.Description == "" {
			fmt.Fprintf(&b, "#%d - %s (no description)\n", h.ID, h.Name)
		} else {
			fmt.Fprintf(&b, "#%d - %s\n", h.ID, h.Name)
		}
	}
	b.WriteString("\nEnter the habit ID (number only):")
	return b.String()
}

// FormatStats renders the aggregate statistics block. The success rate is the
// completed/total percentage with one decimal place, 0 when no days exist.
func FormatStats(stats models.OwnerStats) string {
	return fmt.Sprintf("📊 Your statistics:\n\n📝 Habits: %d\n✅ Days completed: %d\n📅 Days total: %d\n🎯 Success rate: %.1f%%",
		stats.HabitCount, stats.TotalCompleted, stats.TotalDays, stats.SuccessRate())
}
