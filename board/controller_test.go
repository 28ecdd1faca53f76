package board

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"task-board/domain"
	"task-board/local"
	"task-board/storage"
)

type stubRemote struct {
	mu        sync.Mutex
	listTasks []domain.Task
	listErr   error
	writeErr  error
	lists     int
	calls     []string
	patches   map[string][]domain.Patch
	gate      chan struct{}
	entered   chan string
}

func (s *stubRemote) List(ctx context.Context) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return domain.Clone(s.listTasks), s.listErr
}

func (s *stubRemote) record(call string) error {
	if s.entered != nil {
		s.entered <- call
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.writeErr
}

func (s *stubRemote) Create(ctx context.Context, t domain.Task) (string, error) {
	if err := s.record("create:" + t.ID); err != nil {
		return "", err
	}
	return t.ID, nil
}

func (s *stubRemote) Update(ctx context.Context, id string, p domain.Patch) error {
	s.mu.Lock()
	if s.patches == nil {
		s.patches = map[string][]domain.Patch{}
	}
	s.patches[id] = append(s.patches[id], p)
	s.mu.Unlock()
	return s.record("update:" + id)
}

func (s *stubRemote) Delete(ctx context.Context, id string) error {
	return s.record("delete:" + id)
}

func (s *stubRemote) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type stubLocal struct {
	mu     sync.Mutex
	stored []domain.Task
	has    bool
	loads  int
	saves  [][]domain.Task
}

func (s *stubLocal) Save(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, tasks)
	s.stored = tasks
	s.has = true
}

func (s *stubLocal) Load() ([]domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return domain.Clone(s.stored), s.has
}

func (s *stubLocal) Saves() [][]domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]domain.Task(nil), s.saves...)
}

func fixture(n int) []domain.Task {
	out := make([]domain.Task, 0, n)
	for i := 0; i < n; i++ {
		t, _ := domain.New("task", domain.Columns()[i%4])
		out = append(out, t)
	}
	return out
}

func newTestController(t *testing.T, remote *stubRemote, local *stubLocal) (*Controller, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	c := New(remote, local, Options{}, logger)
	t.Cleanup(c.Close)
	return c, hook
}

func startedController(t *testing.T) (*Controller, *stubRemote, *stubLocal, *test.Hook) {
	t.Helper()
	remote := &stubRemote{listTasks: fixture(2)}
	local := &stubLocal{}
	c, hook := newTestController(t, remote, local)
	c.Start(context.Background())
	local.mu.Lock()
	local.saves = nil
	local.mu.Unlock()
	return c, remote, local, hook
}

func TestStartAdoptsRemoteTasks(t *testing.T) {
	remote := &stubRemote{listTasks: fixture(2)}
	local := &stubLocal{stored: fixture(5), has: true}
	c, _ := newTestController(t, remote, local)

	if got := c.Start(context.Background()); got != SourceRemote {
		t.Fatalf("expected remote source, got %s", got)
	}
	if !reflect.DeepEqual(c.Tasks(), remote.listTasks) {
		t.Fatalf("expected remote tasks, got %#v", c.Tasks())
	}
	if local.loads != 0 {
		t.Fatalf("local store should not be read, loads=%d", local.loads)
	}
	saves := local.Saves()
	if len(saves) != 1 || !reflect.DeepEqual(saves[0], remote.listTasks) {
		t.Fatalf("expected the adopted board to be flushed once, got %d saves", len(saves))
	}
}

func TestAdoptedRemoteBoardSurvivesRemoteOutage(t *testing.T) {
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	remote := &stubRemote{listTasks: fixture(2)}

	c := New(remote, local.New(dir, logger), Options{}, logger)
	if got := c.Start(context.Background()); got != SourceRemote {
		t.Fatalf("expected remote source, got %s", got)
	}
	c.Close()

	restarted := New(&stubRemote{listErr: storage.ErrUnavailable}, local.New(dir, logger), Options{}, logger)
	t.Cleanup(restarted.Close)
	if got := restarted.Start(context.Background()); got != SourceLocal {
		t.Fatalf("expected local source, got %s", got)
	}
	got := restarted.Tasks()
	if len(got) != len(remote.listTasks) {
		t.Fatalf("expected %d tasks after restart, got %d", len(remote.listTasks), len(got))
	}
	for i, task := range remote.listTasks {
		if got[i].ID != task.ID || got[i].Column != task.Column {
			t.Fatalf("task %d: expected %s in %s, got %s in %s", i, task.ID, task.Column, got[i].ID, got[i].Column)
		}
	}
}

func TestStartFallsBackToLocalWhenUnconfigured(t *testing.T) {
	remote := &stubRemote{listErr: storage.ErrUnconfigured}
	stored := fixture(3)
	local := &stubLocal{stored: stored, has: true}
	c, _ := newTestController(t, remote, local)

	if got := c.Start(context.Background()); got != SourceLocal {
		t.Fatalf("expected local source, got %s", got)
	}
	if !reflect.DeepEqual(c.Tasks(), stored) {
		t.Fatalf("expected local tasks, got %#v", c.Tasks())
	}
	if len(local.Saves()) != 0 {
		t.Fatal("adopting local tasks must not use seed data")
	}
}

func TestStartSeedsWhenNothingStored(t *testing.T) {
	cases := map[string]struct {
		remote *stubRemote
		local  *stubLocal
	}{
		"remote unavailable, local absent": {
			remote: &stubRemote{listErr: storage.ErrUnavailable},
			local:  &stubLocal{},
		},
		"remote empty, local empty": {
			remote: &stubRemote{},
			local:  &stubLocal{stored: []domain.Task{}, has: true},
		},
		"remote not found, local absent": {
			remote: &stubRemote{listErr: storage.ErrNotFound},
			local:  &stubLocal{},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestController(t, tc.remote, tc.local)
			if got := c.Start(context.Background()); got != SourceLocal {
				t.Fatalf("expected local source, got %s", got)
			}
			tasks := c.Tasks()
			if len(tasks) != 6 {
				t.Fatalf("expected 6 seed tasks, got %d", len(tasks))
			}
			for col, group := range domain.GroupByColumn(tasks) {
				if len(group) == 0 {
					t.Fatalf("seed set misses column %s", col)
				}
			}
			saves := tc.local.Saves()
			if len(saves) != 1 || !reflect.DeepEqual(saves[0], tasks) {
				t.Fatalf("expected seed set flushed once, got %d saves", len(saves))
			}
		})
	}
}

func TestStartIsIdempotent(t *testing.T) {
	remote := &stubRemote{listTasks: fixture(1)}
	c, _ := newTestController(t, remote, &stubLocal{})
	c.Start(context.Background())
	remote.listTasks = nil
	if got := c.Start(context.Background()); got != SourceRemote {
		t.Fatalf("expected source unchanged, got %s", got)
	}
	if remote.lists != 1 {
		t.Fatalf("expected a single list call, got %d", remote.lists)
	}
}

func TestStartHonoursContext(t *testing.T) {
	remote := &stubRemote{listErr: context.DeadlineExceeded}
	c, _ := newTestController(t, remote, &stubLocal{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := c.Start(ctx); got != SourceLocal {
		t.Fatalf("expected startup to complete locally, got %s", got)
	}
}

func TestMutationsBeforeStartAreRefused(t *testing.T) {
	remote := &stubRemote{}
	local := &stubLocal{}
	c, _ := newTestController(t, remote, local)
	if _, ok := c.Create(domain.Draft{Title: "early"}); ok {
		t.Fatal("expected create to be refused before start")
	}
	if c.ClearAll() {
		t.Fatal("expected clear to be refused before start")
	}
	c.Close()
	if len(local.Saves()) != 0 || len(remote.Calls()) != 0 {
		t.Fatal("refused mutations must not touch storage")
	}
}

func TestCreateKeepsTaskWhenRemoteUnavailable(t *testing.T) {
	c, remote, local, hook := startedController(t)
	remote.writeErr = storage.ErrUnavailable

	task, ok := c.Create(domain.Draft{Title: "Write spec", Column: domain.ColumnTodo})
	if !ok {
		t.Fatal("expected task to be created")
	}
	c.Close()

	if _, ok := domain.Find(c.Tasks(), task.ID); !ok {
		t.Fatal("task missing from board after remote failure")
	}
	saves := local.Saves()
	if _, ok := domain.Find(saves[len(saves)-1], task.ID); !ok {
		t.Fatal("task missing from local flush")
	}
	if calls := remote.Calls(); len(calls) != 1 || calls[0] != "create:"+task.ID {
		t.Fatalf("unexpected remote calls: %v", calls)
	}

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && e.Data["task"] == task.ID && e.Data["op"] == "create" {
			logged = true
		}
	}
	if !logged {
		t.Fatal("expected remote failure to be logged with the task id")
	}
}

func TestCreateBlankTitleIsNoop(t *testing.T) {
	c, remote, local, _ := startedController(t)
	before := c.Tasks()
	if _, ok := c.Create(domain.Draft{Title: "   "}); ok {
		t.Fatal("expected blank title to be rejected")
	}
	c.Close()
	if !reflect.DeepEqual(c.Tasks(), before) {
		t.Fatal("board changed")
	}
	if len(local.Saves()) != 0 || len(remote.Calls()) != 0 {
		t.Fatal("no-op create must not flush or call the remote")
	}
}

func TestUpdate(t *testing.T) {
	c, remote, local, _ := startedController(t)
	id := c.Tasks()[0].ID

	title := "  Renamed "
	task, ok := c.Update(id, domain.Patch{Title: &title})
	if !ok || task.Title != "Renamed" {
		t.Fatalf("unexpected update result: %#v %v", task, ok)
	}

	if _, ok := c.Update("missing", domain.Patch{Title: &title}); ok {
		t.Fatal("expected unknown id to be reported")
	}
	if got, ok := c.Update(id, domain.Patch{}); !ok || got.Title != "Renamed" {
		t.Fatalf("empty patch should report the task unchanged: %#v", got)
	}
	c.Close()

	if len(local.Saves()) != 1 {
		t.Fatalf("expected one flush, got %d", len(local.Saves()))
	}
	if calls := remote.Calls(); len(calls) != 1 || calls[0] != "update:"+id {
		t.Fatalf("unexpected remote calls: %v", calls)
	}
	if p := remote.patches[id][0]; p.Title == nil || *p.Title != "Renamed" {
		t.Fatalf("remote got un-normalised patch: %#v", p)
	}
}

func TestDeleteSurvivesRemoteNotFound(t *testing.T) {
	c, remote, local, _ := startedController(t)
	remote.writeErr = storage.ErrNotFound
	id := c.Tasks()[0].ID

	if !c.Delete(id) {
		t.Fatal("expected delete")
	}
	if c.Delete(id) {
		t.Fatal("second delete should be a no-op")
	}
	c.Close()
	if _, ok := domain.Find(c.Tasks(), id); ok {
		t.Fatal("task still on the board")
	}
	if len(local.Saves()) != 1 || len(remote.Calls()) != 1 {
		t.Fatalf("unexpected side effects: saves=%d calls=%v", len(local.Saves()), remote.Calls())
	}
}

func TestMovePropagatesColumn(t *testing.T) {
	c, remote, _, _ := startedController(t)
	id := c.Tasks()[0].ID

	task, ok := c.MoveToColumn(id, domain.ColumnDone)
	if !ok || task.Column != domain.ColumnDone {
		t.Fatalf("unexpected move result: %#v %v", task, ok)
	}
	tasks := c.Tasks()
	if tasks[len(tasks)-1].ID != id {
		t.Fatal("moved task should be last")
	}
	if _, ok := c.Move(id, domain.Column("archive"), nil); ok {
		t.Fatal("expected invalid column to be rejected")
	}
	zero := 0
	if _, ok := c.Move(id, domain.ColumnReview, &zero); !ok || c.Tasks()[0].ID != id {
		t.Fatal("expected task moved to the front")
	}
	c.Close()

	if calls := remote.Calls(); len(calls) != 2 {
		t.Fatalf("expected two remote updates, got %v", calls)
	}
	columns := map[domain.Column]bool{}
	for _, p := range remote.patches[id] {
		if p.Column == nil || p.Title != nil {
			t.Fatalf("unexpected patch: %#v", p)
		}
		columns[*p.Column] = true
	}
	if !columns[domain.ColumnDone] || !columns[domain.ColumnReview] {
		t.Fatalf("unexpected columns sent: %v", columns)
	}
}

func TestBulkActionsStayLocal(t *testing.T) {
	c, remote, local, _ := startedController(t)

	if !c.ClearAll() || len(c.Tasks()) != 0 {
		t.Fatal("expected empty board")
	}
	if !c.ResetToDefaults() || len(c.Tasks()) != 6 {
		t.Fatal("expected seed board")
	}
	c.Close()

	saves := local.Saves()
	if len(saves) != 2 || len(saves[0]) != 0 || len(saves[1]) != 6 {
		t.Fatalf("unexpected flushes: %d", len(saves))
	}
	if len(remote.Calls()) != 0 {
		t.Fatalf("bulk actions must not reach the remote: %v", remote.Calls())
	}
}

func TestMutationsAfterCloseStayLocal(t *testing.T) {
	c, remote, local, _ := startedController(t)
	c.Close()

	task, ok := c.Create(domain.Draft{Title: "late"})
	if !ok {
		t.Fatal("expected local create after close")
	}
	if _, ok := domain.Find(c.Tasks(), task.ID); !ok {
		t.Fatal("task missing")
	}
	if len(local.Saves()) != 1 {
		t.Fatal("expected flush after close")
	}
	if len(remote.Calls()) != 0 {
		t.Fatal("expected no remote call after close")
	}
}

func TestRemoteCallsRunConcurrently(t *testing.T) {
	c, remote, _, _ := startedController(t)
	remote.gate = make(chan struct{})
	remote.entered = make(chan string, 2)

	c.Create(domain.Draft{Title: "one"})
	c.Create(domain.Draft{Title: "two"})

	for i := 0; i < 2; i++ {
		select {
		case <-remote.entered:
		case <-time.After(time.Second):
			t.Fatal("remote calls were serialised")
		}
	}
	close(remote.gate)
	c.Close()
	if len(remote.Calls()) != 2 {
		t.Fatalf("expected two calls, got %v", remote.Calls())
	}
}

func TestSnapshot(t *testing.T) {
	c, _, _, _ := startedController(t)
	snap := c.Snapshot()
	if snap.Source != SourceRemote || snap.Total != 2 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
	if len(snap.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(snap.Columns))
	}
	for i, col := range domain.Columns() {
		if snap.Columns[i].ID != col || snap.Columns[i].Title != col.Title() {
			t.Fatalf("column %d out of order: %#v", i, snap.Columns[i])
		}
	}
	snap.Columns[0].Tasks = append(snap.Columns[0].Tasks, domain.Task{ID: "x"})
	if _, ok := domain.Find(c.Tasks(), "x"); ok {
		t.Fatal("snapshot aliases board state")
	}
}

func TestDecisionTable(t *testing.T) {
	tests := []struct {
		err   error
		tasks int
		local bool
		want  plan
	}{
		{tasks: 2, local: true, want: adoptRemote},
		{tasks: 0, local: true, want: adoptLocal},
		{tasks: 0, local: false, want: adoptSeed},
		{err: storage.ErrUnconfigured, local: true, want: adoptLocal},
		{err: storage.ErrUnavailable, local: false, want: adoptSeed},
		{err: errors.New("boom"), local: true, want: adoptLocal},
	}
	for _, tt := range tests {
		outcome := classifyList(fixture(tt.tasks), tt.err)
		if got := decide(outcome, tt.local); got != tt.want {
			t.Fatalf("decide(%s, %v) = %d, want %d", outcome, tt.local, got, tt.want)
		}
	}
}

func TestSourceString(t *testing.T) {
	for s, want := range map[Source]string{SourceUninitialized: "uninitialized", SourceRemote: "remote", SourceLocal: "local"} {
		if s.String() != want {
			t.Fatalf("%d: got %s want %s", s, s.String(), want)
		}
	}
}
