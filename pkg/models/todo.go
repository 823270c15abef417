package models

import (
	"fmt"
	"strings"
	"time"
)

type Todo struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Done      bool   `json:"done"`
	CreatedAt int64  `json:"created_at"` // epoch milliseconds
}

// Toggled returns a copy of t with Done inverted.
func (t Todo) Toggled() Todo {
	t.Done = !t.Done
	return t
}

// Created returns CreatedAt as a local time.
func (t Todo) Created() time.Time {
	return time.UnixMilli(t.CreatedAt)
}

type Filter int

const (
	FilterAll Filter = iota
	FilterActive
	FilterCompleted
)

var Filters = []Filter{FilterAll, FilterActive, FilterCompleted}

func (f Filter) String() string {
	switch f {
	case FilterAll:
		return "all"
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return fmt.Sprintf("filter(%d)", int(f))
	}
}

// Next cycles All -> Active -> Completed -> All.
func (f Filter) Next() Filter {
	return (f + 1) % Filter(len(Filters))
}

// Match reports whether t belongs to the filter.
func (f Filter) Match(t Todo) bool {
	switch f {
	case FilterActive:
		return !t.Done
	case FilterCompleted:
		return t.Done
	default:
		return true
	}
}

// ParseFilter parses all|active|completed. An empty string is FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "active":
		return FilterActive, nil
	case "completed":
		return FilterCompleted, nil
	}
	return FilterAll, fmt.Errorf("invalid filter %q (want all, active or completed)", s)
}

type Counts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// For returns the count that matches f.
func (c Counts) For(f Filter) int {
	switch f {
	case FilterActive:
		return c.Active
	case FilterCompleted:
		return c.Completed
	default:
		return c.Total
	}
}
