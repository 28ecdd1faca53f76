package storage

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

const queueAlreadyExists = "QueueAlreadyExists"

// Provision creates the table and, when named, the change queue. Existing
// resources are left alone.
func Provision(ctx context.Context, connStr, table, queue string, logger *log.Logger) error {
	if connStr == "" {
		return ErrUnconfigured
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	if table != "" {
		if err := createTable(ctx, svc.NewClient(table)); err != nil {
			return err
		}
		logger.WithField("table", table).Info("storage: table ready")
	}
	if queue != "" {
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, nil)
		if err != nil {
			return err
		}
		if err := createQueue(ctx, q); err != nil {
			return err
		}
		logger.WithField("queue", queue).Info("storage: queue ready")
	}
	return nil
}

type tableCreator interface {
	CreateTable(ctx context.Context, o *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
}

type queueCreator interface {
	Create(ctx context.Context, o *azqueue.CreateOptions) (azqueue.CreateQueueResponse, error)
}

func createTable(ctx context.Context, c tableCreator) error {
	if _, err := c.CreateTable(ctx, nil); err != nil && errorCode(err) != string(aztables.TableAlreadyExists) {
		return err
	}
	return nil
}

func createQueue(ctx context.Context, q queueCreator) error {
	if _, err := q.Create(ctx, nil); err != nil && errorCode(err) != queueAlreadyExists {
		return err
	}
	return nil
}
