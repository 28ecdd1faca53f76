package board

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"task-board/domain"
)

// Options tunes the background remote sync.
type Options struct {
	Workers        int
	Buffer         int
	HandoffTimeout time.Duration
}

const (
	defaultWorkers = 8
	defaultBuffer  = 256
)

// Controller owns the board. Mutations are applied to the held sequence
// first, flushed to the local store, and then mirrored to the remote store
// in the background. Remote failures never undo a local change.
type Controller struct {
	remote Remote
	local  Local
	log    *log.Logger
	pool   *pool

	startMu sync.Mutex

	mu     sync.RWMutex
	tasks  []domain.Task
	source Source
}

// New returns a controller in the uninitialized state.
func New(remote Remote, local Local, opts Options, logger *log.Logger) *Controller {
	if remote == nil || local == nil {
		panic("board.New: remote and local stores are required")
	}
	if logger == nil {
		panic("board.New: logger is nil")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.HandoffTimeout < 0 {
		opts.HandoffTimeout = 0
	}
	return &Controller{
		remote: remote,
		local:  local,
		log:    logger,
		pool:   newPool(opts.Workers, opts.Buffer, opts.HandoffTimeout, logger),
		tasks:  []domain.Task{},
	}
}

// Start picks the authoritative board. It always leaves the uninitialized
// state, whatever the backends do; later calls return the adopted source.
func (c *Controller) Start(ctx context.Context) Source {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if s := c.Source(); s != SourceUninitialized {
		return s
	}

	listed, err := c.remote.List(ctx)
	outcome := classifyList(listed, err)
	entry := c.log.WithField("remote", outcome.String())
	if err != nil {
		entry = entry.WithError(err)
	}

	var localTasks []domain.Task
	if outcome != remoteTasks {
		if loaded, ok := c.local.Load(); ok {
			localTasks = loaded
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch decide(outcome, len(localTasks) > 0) {
	case adoptRemote:
		c.tasks = domain.Clone(listed)
		c.source = SourceRemote
		c.local.Save(domain.Clone(c.tasks))
	case adoptLocal:
		c.tasks = domain.Clone(localTasks)
		c.source = SourceLocal
	default:
		c.tasks = domain.DefaultTasks()
		c.source = SourceLocal
		c.local.Save(domain.Clone(c.tasks))
		entry = entry.WithField("seeded", true)
	}
	entry.WithFields(log.Fields{
		"source": c.source.String(),
		"tasks":  len(c.tasks),
	}).Info("board started")
	return c.source
}

// Create adds a task built from the draft. It reports false when the title
// is blank or the board has not started.
func (c *Controller) Create(d domain.Draft) (domain.Task, bool) {
	t, ok := d.Task()
	if !ok {
		return domain.Task{}, false
	}
	if !c.mutate(func(tasks []domain.Task) ([]domain.Task, bool) {
		return append(domain.Clone(tasks), t), true
	}) {
		return domain.Task{}, false
	}
	c.sync(syncJob{op: "create", task: t.ID, call: func(ctx context.Context) error {
		storedID, err := c.remote.Create(ctx, t)
		if err == nil && storedID != t.ID {
			c.log.WithFields(log.Fields{"task": t.ID, "stored": storedID}).Debug("remote stored task under a different id")
		}
		return err
	}})
	return t, true
}

// Update merges the patch into the task. An empty patch changes nothing but
// still reports the task.
func (c *Controller) Update(id string, p domain.Patch) (domain.Task, bool) {
	p = p.Normalize()
	if p.IsEmpty() {
		return c.Task(id)
	}
	var updated domain.Task
	if !c.mutate(func(tasks []domain.Task) ([]domain.Task, bool) {
		if _, ok := domain.Find(tasks, id); !ok {
			return tasks, false
		}
		next := domain.Update(tasks, id, p)
		updated, _ = domain.Find(next, id)
		return next, true
	}) {
		return domain.Task{}, false
	}
	c.sync(syncJob{op: "update", task: id, call: func(ctx context.Context) error {
		return c.remote.Update(ctx, id, p)
	}})
	return updated, true
}

// Delete removes the task. It reports false for unknown ids.
func (c *Controller) Delete(id string) bool {
	if !c.mutate(func(tasks []domain.Task) ([]domain.Task, bool) {
		if _, ok := domain.Find(tasks, id); !ok {
			return tasks, false
		}
		return domain.Delete(tasks, id), true
	}) {
		return false
	}
	c.sync(syncJob{op: "delete", task: id, call: func(ctx context.Context) error {
		return c.remote.Delete(ctx, id)
	}})
	return true
}

// Move puts the task into column at the absolute position *index of the
// board, or at the end when index is nil.
func (c *Controller) Move(id string, column domain.Column, index *int) (domain.Task, bool) {
	if !column.Valid() {
		return domain.Task{}, false
	}
	var moved domain.Task
	if !c.mutate(func(tasks []domain.Task) ([]domain.Task, bool) {
		if _, ok := domain.Find(tasks, id); !ok {
			return tasks, false
		}
		next := domain.Move(tasks, id, column, index)
		moved, _ = domain.Find(next, id)
		return next, true
	}) {
		return domain.Task{}, false
	}
	c.sync(syncJob{op: "move", task: id, call: func(ctx context.Context) error {
		return c.remote.Update(ctx, id, domain.ColumnPatch(column))
	}})
	return moved, true
}

// MoveToColumn drops the task onto a column; it lands last.
func (c *Controller) MoveToColumn(id string, column domain.Column) (domain.Task, bool) {
	return c.Move(id, column, nil)
}

// ClearAll empties the board. The remote store is left untouched.
func (c *Controller) ClearAll() bool {
	return c.mutate(func([]domain.Task) ([]domain.Task, bool) {
		return []domain.Task{}, true
	})
}

// ResetToDefaults replaces the board with fresh seed tasks. The remote store
// is left untouched.
func (c *Controller) ResetToDefaults() bool {
	return c.mutate(func([]domain.Task) ([]domain.Task, bool) {
		return domain.DefaultTasks(), true
	})
}

// mutate swaps in the sequence computed by fn and flushes it. Nothing
// happens before startup or when fn reports no change.
func (c *Controller) mutate(fn func([]domain.Task) ([]domain.Task, bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == SourceUninitialized {
		c.log.Warn("board not started; mutation ignored")
		return false
	}
	next, changed := fn(c.tasks)
	if !changed {
		return false
	}
	c.tasks = next
	c.local.Save(domain.Clone(next))
	return true
}

func (c *Controller) sync(j syncJob) {
	if !c.pool.submit(j) {
		c.log.WithFields(log.Fields{"op": j.op, "task": j.task}).Debug("remote sync closed; change kept locally")
	}
}

// Source returns where the board was adopted from.
func (c *Controller) Source() Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Tasks returns a copy of the board in order.
func (c *Controller) Tasks() []domain.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.Clone(c.tasks)
}

// Task returns a copy of one task.
func (c *Controller) Task(id string) (domain.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := domain.Find(c.tasks, id)
	if !ok {
		return domain.Task{}, false
	}
	return domain.Clone([]domain.Task{t})[0], true
}

// Groups returns copies of the tasks keyed by column.
func (c *Controller) Groups() map[domain.Column][]domain.Task {
	return domain.GroupByColumn(c.Tasks())
}

// ColumnView is one board column with its tasks.
type ColumnView struct {
	ID    domain.Column `json:"id"`
	Title string        `json:"title"`
	Tasks []domain.Task `json:"tasks"`
}

// Snapshot is a consistent view of the whole board.
type Snapshot struct {
	Source  Source       `json:"source"`
	Total   int          `json:"total"`
	Columns []ColumnView `json:"columns"`
}

// Snapshot returns the board laid out in column order.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	tasks := domain.Clone(c.tasks)
	source := c.source
	c.mu.RUnlock()

	grouped := domain.GroupByColumn(tasks)
	snap := Snapshot{Source: source, Total: len(tasks)}
	for _, col := range domain.Columns() {
		snap.Columns = append(snap.Columns, ColumnView{ID: col, Title: col.Title(), Tasks: grouped[col]})
	}
	return snap
}

// Close waits for in-flight remote calls. Later mutations stay local.
func (c *Controller) Close() {
	c.pool.close()
}
