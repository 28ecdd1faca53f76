package domain

// The functions in this file never modify their input and never return a
// slice sharing the input's backing array unless they return the input
// itself as a no-op.

// Find returns the task with the given id.
func Find(tasks []Task, id string) (Task, bool) {
	if i := indexOf(tasks, id); i >= 0 {
		return tasks[i], true
	}
	return Task{}, false
}

// Update merges the patch over the task with the given id. The input is
// returned as-is when no task matches.
func Update(tasks []Task, id string, p Patch) []Task {
	i := indexOf(tasks, id)
	if i < 0 {
		return tasks
	}
	out := clone(tasks)
	out[i] = p.Apply(out[i])
	return out
}

// Delete removes the task with the given id. The input is returned as-is
// when no task matches.
func Delete(tasks []Task, id string) []Task {
	i := indexOf(tasks, id)
	if i < 0 {
		return tasks
	}
	out := make([]Task, 0, len(tasks)-1)
	out = append(out, tasks[:i]...)
	return append(out, tasks[i+1:]...)
}

// Move takes the task out of its position, assigns it to column and
// reinserts it at the absolute position *index of the whole sequence, or at
// the end when index is nil. Out of range indexes are clamped. Unknown ids
// and invalid columns leave the input as-is.
func Move(tasks []Task, id string, column Column, index *int) []Task {
	i := indexOf(tasks, id)
	if i < 0 || !column.Valid() {
		return tasks
	}
	moved := tasks[i]
	moved.Column = column

	rest := make([]Task, 0, len(tasks))
	rest = append(rest, tasks[:i]...)
	rest = append(rest, tasks[i+1:]...)

	pos := len(rest)
	if index != nil {
		pos = *index
		if pos < 0 {
			pos = 0
		}
		if pos > len(rest) {
			pos = len(rest)
		}
	}
	out := make([]Task, 0, len(tasks))
	out = append(out, rest[:pos]...)
	out = append(out, moved)
	return append(out, rest[pos:]...)
}

// GroupByColumn partitions tasks by column. Every column key is present and
// the relative order of tasks within a column is preserved.
func GroupByColumn(tasks []Task) map[Column][]Task {
	grouped := make(map[Column][]Task, len(columnOrder))
	for _, c := range columnOrder {
		grouped[c] = []Task{}
	}
	for _, t := range tasks {
		if _, ok := grouped[t.Column]; ok {
			grouped[t.Column] = append(grouped[t.Column], t)
		}
	}
	return grouped
}

// Clone returns a copy of tasks that shares nothing with the input.
func Clone(tasks []Task) []Task {
	return clone(tasks)
}

func clone(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		if t.DueDate != nil {
			due := *t.DueDate
			t.DueDate = &due
		}
		out[i] = t
	}
	return out
}

func indexOf(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
