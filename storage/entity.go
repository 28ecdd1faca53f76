package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"task-board/domain"
)

const edmDateTime = "Edm.DateTime"

var (
	errMissingRowKey = errors.New("entity has no row key")
	errBlankTitle    = errors.New("entity has a blank title")
)

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type taskEntity struct {
	entityKeys
	Title         string `json:"Title"`
	Description   string `json:"Description"`
	Column        string `json:"Column"`
	Priority      string `json:"Priority"`
	DueDate       string `json:"DueDate"`
	CreatedAt     string `json:"CreatedAt"`
	CreatedAtType string `json:"CreatedAt@odata.type,omitempty"`
}

// taskUpdate is the merge payload for a patch. An empty DueDate clears the
// stored date.
type taskUpdate struct {
	entityKeys
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	Column      *string `json:"Column,omitempty"`
	Priority    *string `json:"Priority,omitempty"`
	DueDate     *string `json:"DueDate,omitempty"`
}

func newTaskEntity(board string, t domain.Task) taskEntity {
	ent := taskEntity{
		entityKeys:    entityKeys{PartitionKey: board, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		Column:        string(t.Column),
		Priority:      string(t.Priority),
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339Nano),
		CreatedAtType: edmDateTime,
	}
	if t.DueDate != nil {
		ent.DueDate = *t.DueDate
	}
	return ent
}

func newTaskUpdate(board, id string, p domain.Patch) taskUpdate {
	upd := taskUpdate{
		entityKeys:  entityKeys{PartitionKey: board, RowKey: id},
		Title:       p.Title,
		Description: p.Description,
		DueDate:     p.DueDate,
	}
	if p.Column != nil {
		c := string(*p.Column)
		upd.Column = &c
	}
	if p.Priority != nil {
		pr := string(*p.Priority)
		upd.Priority = &pr
	}
	return upd
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	switch {
	case ent.RowKey == "":
		return domain.Task{}, errMissingRowKey
	case strings.TrimSpace(ent.Title) == "":
		return domain.Task{}, errBlankTitle
	}
	t := domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Column:      domain.Column(ent.Column),
		Priority:    domain.Priority(ent.Priority),
	}
	if ent.DueDate != "" {
		due := ent.DueDate
		t.DueDate = &due
	}
	if ent.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.CreatedAt = created.UTC()
	}
	return t.Normalize(), nil
}
