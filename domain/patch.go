package domain

import "strings"

// Patch carries optional field changes for a task. Nil fields are left
// untouched. A DueDate pointing at an empty string clears the due date.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Column      *Column   `json:"column,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Column == nil && p.Priority == nil && p.DueDate == nil
}

// Normalize drops fields that would break task invariants. Titles are
// trimmed and due dates reduced to their date part.
func (p Patch) Normalize() Patch {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			p.Title = nil
		} else {
			p.Title = &title
		}
	}
	if p.Column != nil && !p.Column.Valid() {
		p.Column = nil
	}
	if p.Priority != nil && !p.Priority.Valid() {
		p.Priority = nil
	}
	if p.DueDate != nil {
		raw := strings.TrimSpace(*p.DueDate)
		d := normalizeDueDate(raw)
		switch {
		case raw == "":
			p.DueDate = &raw
		case d == nil:
			p.DueDate = nil
		default:
			p.DueDate = d
		}
	}
	return p
}

// Apply returns t with the patch merged over it. ID and CreatedAt never change.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Column != nil {
		t.Column = *p.Column
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		if *p.DueDate == "" {
			t.DueDate = nil
		} else {
			due := *p.DueDate
			t.DueDate = &due
		}
	}
	return t
}

// ColumnPatch builds the patch that moves a task to column c.
func ColumnPatch(c Column) Patch {
	return Patch{Column: &c}
}
