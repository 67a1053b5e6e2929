// Package todo implements the task list (C11): an ordered, mutable list of
// TodoItems with a tri-state status, and a themed terminal rendering,
// per spec.md §3/§4.9.
package todo

import (
	"fmt"
	"strings"
)

// Status is a TodoItem's tri-state progress marker.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// statusOrder fixes the stable grouping order Render uses: in-progress
// items are most actionable, so they lead; completed items trail.
var statusOrder = []Status{StatusInProgress, StatusPending, StatusCompleted}

// TodoItem is one task-list entry.
type TodoItem struct {
	Content    string
	ActiveForm string
	Status     Status
}

// List is an ordered task list. Indices are 0-based but not stable across
// removals, per spec.md §3.
type List struct {
	items []TodoItem
}

// New returns an empty task list.
func New() *List {
	return &List{}
}

// Add appends a new pending item.
func (l *List) Add(content, activeForm string) {
	l.items = append(l.items, TodoItem{Content: content, ActiveForm: activeForm, Status: StatusPending})
}

// UpdateByIndex changes the status of the item at idx. It returns false if
// idx is out of range.
func (l *List) UpdateByIndex(idx int, status Status) bool {
	if idx < 0 || idx >= len(l.items) {
		return false
	}
	l.items[idx].Status = status
	return true
}

// UpdateByContent changes the status of the first item whose Content
// matches exactly. It returns false if no item matches.
func (l *List) UpdateByContent(content string, status Status) bool {
	for i := range l.items {
		if l.items[i].Content == content {
			l.items[i].Status = status
			return true
		}
	}
	return false
}

// Remove deletes the item at idx, shifting later indices down. It returns
// false if idx is out of range.
func (l *List) Remove(idx int) bool {
	if idx < 0 || idx >= len(l.items) {
		return false
	}
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	return true
}

// Clear empties the list.
func (l *List) Clear() {
	l.items = nil
}

// CountByStatus returns how many items currently have the given status.
func (l *List) CountByStatus(status Status) int {
	n := 0
	for _, item := range l.items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Items returns a defensive copy of the current list, in insertion order.
func (l *List) Items() []TodoItem {
	return append([]TodoItem(nil), l.items...)
}

// ansi color codes for each status; empty string when color is disabled.
const (
	colorReset      = "\x1b[0m"
	colorInProgress = "\x1b[33m" // yellow
	colorCompleted  = "\x1b[32m" // green
	colorPending    = "\x1b[2m"  // dim
)

func colorFor(status Status, useColor bool) (prefix, suffix string) {
	if !useColor {
		return "", ""
	}
	switch status {
	case StatusInProgress:
		return colorInProgress, colorReset
	case StatusCompleted:
		return colorCompleted, colorReset
	default:
		return colorPending, colorReset
	}
}

func marker(status Status) string {
	switch status {
	case StatusInProgress:
		return "[~]"
	case StatusCompleted:
		return "[x]"
	default:
		return "[ ]"
	}
}

// Render renders the task list grouped by status in statusOrder, with
// stable per-group iteration order, and fixed per-status ANSI colors when
// useColor is true (callers fall back to false for non-tty output).
// In-progress items display ActiveForm (e.g. "Running tests") instead of
// Content, matching the convention that active_form is the present-
// continuous gloss of content.
func (l *List) Render(useColor bool) string {
	if len(l.items) == 0 {
		return ""
	}

	var b strings.Builder
	for _, status := range statusOrder {
		prefix, suffix := colorFor(status, useColor)
		for _, item := range l.items {
			if item.Status != status {
				continue
			}
			label := item.Content
			if item.Status == StatusInProgress && item.ActiveForm != "" {
				label = item.ActiveForm
			}
			fmt.Fprintf(&b, "%s%s %s%s\n", prefix, marker(item.Status), label, suffix)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
