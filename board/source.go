package board

import (
	"context"
	"errors"

	"task-board/domain"
	"task-board/storage"
)

// Source tells which backend the board was adopted from at startup.
type Source int

const (
	SourceUninitialized Source = iota
	SourceRemote
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceLocal:
		return "local"
	default:
		return "uninitialized"
	}
}

// MarshalText renders the source by name in JSON documents.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Remote is the best-effort mirror of the board.
type Remote interface {
	List(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, t domain.Task) (string, error)
	Update(ctx context.Context, id string, p domain.Patch) error
	Delete(ctx context.Context, id string) error
}

// Local is the durable on-device copy of the board.
type Local interface {
	Save(tasks []domain.Task)
	Load() ([]domain.Task, bool)
}

// remoteOutcome tags the result of the startup list call.
type remoteOutcome int

const (
	remoteTasks remoteOutcome = iota
	remoteEmpty
	remoteUnconfigured
	remoteUnavailable
)

func (o remoteOutcome) String() string {
	switch o {
	case remoteTasks:
		return "tasks"
	case remoteEmpty:
		return "empty"
	case remoteUnconfigured:
		return "unconfigured"
	default:
		return "unavailable"
	}
}

func classifyList(tasks []domain.Task, err error) remoteOutcome {
	switch {
	case err == nil && len(tasks) > 0:
		return remoteTasks
	case err == nil:
		return remoteEmpty
	case errors.Is(err, storage.ErrUnconfigured):
		return remoteUnconfigured
	default:
		// NotFound on a collection read means nothing usable remotely.
		return remoteUnavailable
	}
}

// plan is what startup adopts.
type plan int

const (
	adoptRemote plan = iota
	adoptLocal
	adoptSeed
)

// decide is the startup decision table.
//
//	remote            local       result
//	tasks             any         remote
//	anything else     has tasks   local
//	anything else     nothing     seed, flushed
func decide(remote remoteOutcome, localHasTasks bool) plan {
	switch {
	case remote == remoteTasks:
		return adoptRemote
	case localHasTasks:
		return adoptLocal
	default:
		return adoptSeed
	}
}
