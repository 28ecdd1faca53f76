package storage

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"task-board/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Feed publishes change records to a storage queue.
type Feed struct {
	queue queueClient
	log   *log.Logger
}

// NewFeed returns a feed writing to q.
func NewFeed(q queueClient, logger *log.Logger) *Feed {
	return &Feed{queue: q, log: logger}
}

// Publish enqueues ch. Failures are logged and otherwise ignored.
func (f *Feed) Publish(ctx context.Context, ch domain.Change) {
	data, err := sonic.Marshal(ch)
	if err != nil {
		f.log.WithError(err).WithField("task", ch.TaskID).Error("feed: encode change")
		return
	}
	if _, err := f.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
		f.log.WithError(err).WithFields(log.Fields{
			"task": ch.TaskID,
			"type": ch.Type,
		}).Warn("feed: publish change failed")
	}
}
