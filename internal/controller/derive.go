package controller

import (
	"strings"

	"github.com/ldi/todo/pkg/models"
)

// Derive returns the todos shown for filter and query, in collection order.
// A todo is kept when it matches the filter and, for a non-blank query, its
// title contains the trimmed query ignoring case. The result is always a new
// slice; todos is not modified.
func Derive(todos []models.Todo, filter models.Filter, query string) []models.Todo {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]models.Todo, 0, len(todos))
	for _, t := range todos {
		if !filter.Match(t) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Count totals the unfiltered collection.
func Count(todos []models.Todo) models.Counts {
	c := models.Counts{Total: len(todos)}
	for _, t := range todos {
		if t.Done {
			c.Completed++
		} else {
			c.Active++
		}
	}
	return c
}
