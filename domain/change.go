package domain

import (
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Change types published after a successful remote write.
const (
	ChangeTaskCreated = "task-created"
	ChangeTaskUpdated = "task-updated"
	ChangeTaskDeleted = "task-deleted"
)

// Change records a write applied to the remote collection.
type Change struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entityType"`
	Type       string                 `json:"type"`
	TaskID     string                 `json:"taskId"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// NewChange stamps a change for the given task with a fresh id and a
// timestamp that is strictly greater than any previously issued one.
func NewChange(typ, taskID string, data []byte) Change {
	return Change{
		ID:         uuid.NewString(),
		EntityType: "task",
		Type:       typ,
		TaskID:     taskID,
		Data:       data,
		Timestamp:  nextTimestamp(),
	}
}

var lastTimestamp int64

func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}
