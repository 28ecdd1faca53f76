package domain

var defaultTasks = []struct {
	title  string
	column Column
}{
	{"Design new landing page", ColumnInProgress},
	{"Fix login bug", ColumnInProgress},
	{"Write API documentation", ColumnTodo},
	{"Code review for PR #42", ColumnReview},
	{"Deploy to production", ColumnDone},
	{"Update dependencies", ColumnTodo},
}

// DefaultTasks returns the sample board shown to first-time users. Each call
// generates fresh ids.
func DefaultTasks() []Task {
	tasks := make([]Task, 0, len(defaultTasks))
	for _, d := range defaultTasks {
		t, _ := New(d.title, d.column)
		tasks = append(tasks, t)
	}
	return tasks
}
