package storage

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"task-board/domain"
)

type tableClient interface {
	NewListEntitiesPager(o *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
	AddEntity(ctx context.Context, entity []byte, o *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, o *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, o *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
}

// Options configures a TableStore.
type Options struct {
	ConnectionString string
	Table            string
	Board            string
	ChangeQueue      string
	TryTimeout       time.Duration
}

// TableStore keeps the board's tasks in an Azure Storage table, one
// partition per board and the task id as row key.
type TableStore struct {
	table tableClient
	board string
	feed  *Feed
	log   *log.Logger
}

// New creates a TableStore. An empty connection string yields a store whose
// operations all fail with ErrUnconfigured.
func New(opts Options, logger *log.Logger) (*TableStore, error) {
	if logger == nil {
		panic("storage.New: logger is nil")
	}
	s := &TableStore{board: opts.Board, log: logger}
	if strings.TrimSpace(opts.ConnectionString) == "" {
		return s, nil
	}

	// Retries are the caller's business; the SDK makes a single attempt.
	retry := policy.RetryOptions{
		MaxRetries: -1,
		TryTimeout: opts.TryTimeout,
	}
	svc, err := aztables.NewServiceClientFromConnectionString(opts.ConnectionString, &aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{Retry: retry},
	})
	if err != nil {
		return nil, err
	}
	s.table = svc.NewClient(opts.Table)

	if opts.ChangeQueue != "" {
		q, err := azqueue.NewQueueClientFromConnectionString(opts.ConnectionString, opts.ChangeQueue, &azqueue.ClientOptions{
			ClientOptions: azcore.ClientOptions{Retry: retry},
		})
		if err != nil {
			return nil, err
		}
		s.feed = NewFeed(q, logger)
	}
	return s, nil
}

// Configured reports whether the store talks to a real table.
func (s *TableStore) Configured() bool {
	return s.table != nil
}

// List returns every task of the board ordered by creation time.
func (s *TableStore) List(ctx context.Context) ([]domain.Task, error) {
	if !s.Configured() {
		return nil, ErrUnconfigured
	}
	filter := "PartitionKey eq '" + strings.ReplaceAll(s.board, "'", "''") + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify("list tasks", err)
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				s.log.WithError(err).Warn("storage: skipping undecodable task entity")
				continue
			}
			tasks = append(tasks, t)
		}
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return tasks, nil
}

// Create inserts the task and returns the row key it was stored under. A
// row that already exists counts as success.
func (s *TableStore) Create(ctx context.Context, t domain.Task) (string, error) {
	if !s.Configured() {
		return "", ErrUnconfigured
	}
	payload, err := sonic.Marshal(newTaskEntity(s.board, t))
	if err != nil {
		return "", err
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		if statusCode(err) != http.StatusConflict {
			return "", classify("create task", err)
		}
		s.log.WithField("task", t.ID).Debug("storage: task already exists")
	}
	s.publish(ctx, domain.ChangeTaskCreated, t.ID, t)
	return t.ID, nil
}

// Update merges the patch into the stored task.
func (s *TableStore) Update(ctx context.Context, id string, p domain.Patch) error {
	if !s.Configured() {
		return ErrUnconfigured
	}
	payload, err := sonic.Marshal(newTaskUpdate(s.board, id, p))
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	if _, err := s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge}); err != nil {
		return classify("update task", err)
	}
	s.publish(ctx, domain.ChangeTaskUpdated, id, p)
	return nil
}

// Delete removes the stored task.
func (s *TableStore) Delete(ctx context.Context, id string) error {
	if !s.Configured() {
		return ErrUnconfigured
	}
	if _, err := s.table.DeleteEntity(ctx, s.board, id, nil); err != nil {
		return classify("delete task", err)
	}
	s.publish(ctx, domain.ChangeTaskDeleted, id, nil)
	return nil
}

func (s *TableStore) publish(ctx context.Context, typ, id string, payload any) {
	if s.feed == nil {
		return
	}
	var data []byte
	if payload != nil {
		var err error
		if data, err = sonic.Marshal(payload); err != nil {
			s.log.WithError(err).WithField("task", id).Error("storage: encode change")
			return
		}
	}
	s.feed.Publish(ctx, domain.NewChange(typ, id, data))
}
