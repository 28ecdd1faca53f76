package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Column is one of the fixed workflow stages of the board.
type Column string

const (
	ColumnTodo       Column = "todo"
	ColumnInProgress Column = "in-progress"
	ColumnReview     Column = "review"
	ColumnDone       Column = "done"
)

// columnOrder defines left-to-right board layout.
var columnOrder = [...]Column{ColumnTodo, ColumnInProgress, ColumnReview, ColumnDone}

var columnTitles = map[Column]string{
	ColumnTodo:       "To Do",
	ColumnInProgress: "In Progress",
	ColumnReview:     "Review",
	ColumnDone:       "Done",
}

// Columns returns the board columns in display order.
func Columns() []Column {
	out := make([]Column, len(columnOrder))
	copy(out, columnOrder[:])
	return out
}

// Valid reports whether c is one of the board columns.
func (c Column) Valid() bool {
	_, ok := columnTitles[c]
	return ok
}

// Title returns the human readable column heading.
func (c Column) Title() string {
	return columnTitles[c]
}

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DateLayout is the format of Task.DueDate.
const DateLayout = "2006-01-02"

// Task represents a single card on the board.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Column      Column    `json:"column"`
	Priority    Priority  `json:"priority"`
	DueDate     *string   `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// New builds a task with a fresh id and creation time. It returns false when
// the trimmed title is empty. Unknown columns fall back to todo.
func New(title string, column Column) (Task, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, false
	}
	if !column.Valid() {
		column = ColumnTodo
	}
	return Task{
		ID:        NewID(),
		Title:     title,
		Column:    column,
		Priority:  PriorityMedium,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}, true
}

// NewID returns a task identifier that is never reused.
func NewID() string {
	return "task-" + uuid.NewString()
}

// Draft carries the fields a user fills in when adding a task.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Column      Column   `json:"column,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
}

// Task converts the draft into a new task, applying the same rules as New.
func (d Draft) Task() (Task, bool) {
	t, ok := New(d.Title, d.Column)
	if !ok {
		return Task{}, false
	}
	t.Description = d.Description
	if d.Priority.Valid() {
		t.Priority = d.Priority
	}
	t.DueDate = normalizeDueDate(d.DueDate)
	return t, true
}

// Normalize repairs fields of a task decoded from an untrusted source so the
// board invariants hold.
func (t Task) Normalize() Task {
	if !t.Column.Valid() {
		t.Column = ColumnTodo
	}
	if !t.Priority.Valid() {
		t.Priority = PriorityMedium
	}
	if t.DueDate != nil {
		t.DueDate = normalizeDueDate(*t.DueDate)
	}
	return t
}

// normalizeDueDate accepts a plain date or a full timestamp and keeps only the
// date part. Anything else means no due date.
func normalizeDueDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if d, err := time.Parse(DateLayout, s); err == nil {
		v := d.Format(DateLayout)
		return &v
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		v := ts.Format(DateLayout)
		return &v
	}
	return nil
}
