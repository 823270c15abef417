package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/todo/pkg/models"
)

var (
	pillStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("237")).
			Padding(0, 1)

	selectedPillStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("255")).
				Background(lipgloss.Color("30")).
				Bold(true).
				Padding(0, 1)
)

var filterLabels = map[models.Filter]string{
	models.FilterAll:       "All",
	models.FilterActive:    "Active",
	models.FilterCompleted: "Completed",
}

// FilterBar renders one pill per filter with its count.
func FilterBar(selected models.Filter, counts models.Counts) string {
	pills := make([]string, 0, len(models.Filters))
	for _, f := range models.Filters {
		label := fmt.Sprintf("%s (%d)", filterLabels[f], counts.For(f))
		if f == selected {
			pills = append(pills, selectedPillStyle.Render(label))
		} else {
			pills = append(pills, pillStyle.Render(label))
		}
	}
	return strings.Join(pills, " ")
}
