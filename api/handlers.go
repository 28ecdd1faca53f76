package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"task-board/board"
	"task-board/domain"
)

const maxBodySize = 64 << 10

// Board is the controller surface the handlers drive.
type Board interface {
	Source() board.Source
	Tasks() []domain.Task
	Snapshot() board.Snapshot
	Create(d domain.Draft) (domain.Task, bool)
	Update(id string, p domain.Patch) (domain.Task, bool)
	Delete(id string) bool
	Move(id string, column domain.Column, index *int) (domain.Task, bool)
	ClearAll() bool
	ResetToDefaults() bool
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, b Board, logger *log.Logger) {
	e.JSONSerializer = sonicSerializer{}
	e.Use(RequestMetricsMiddleware(logger))
	e.Use(BodyMiddleware(maxBodySize))

	e.GET("/api/board", getBoard(b))
	e.POST("/api/board/clear", clearBoard(b))
	e.POST("/api/board/reset", resetBoard(b))
	e.GET("/api/tasks", getTasks(b))
	e.POST("/api/tasks", createTask(b))
	e.PUT("/api/tasks/:id", updateTask(b))
	e.DELETE("/api/tasks/:id", deleteTask(b))
	e.POST("/api/tasks/:id/move", moveTask(b))
	e.GET("/healthz", healthz(b))
}

type moveRequest struct {
	Column domain.Column `json:"column"`
	Index  *int          `json:"index,omitempty"`
}

func healthz(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		if b.Source() == board.SourceUninitialized {
			return c.String(http.StatusServiceUnavailable, "starting")
		}
		return c.NoContent(http.StatusOK)
	}
}

func getBoard(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap := b.Snapshot()
		metricsFrom(c).SetTasksReturned(snap.Total)
		return c.JSON(http.StatusOK, snap)
	}
}

func getTasks(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks := b.Tasks()
		metricsFrom(c).SetTasksReturned(len(tasks))
		return c.JSON(http.StatusOK, tasks)
	}
}

func createTask(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !ready(b) {
			return notReady(c)
		}
		var d domain.Draft
		if err := decodeBody(c, &d); err != nil {
			return badBody(c, err)
		}
		if strings.TrimSpace(d.Title) == "" {
			metricsFrom(c).SetErrorStage("validate")
			return c.String(http.StatusBadRequest, "title is required")
		}
		if d.Column != "" && !d.Column.Valid() {
			metricsFrom(c).SetErrorStage("validate")
			return c.String(http.StatusBadRequest, "unknown column")
		}
		if d.Priority != "" && !d.Priority.Valid() {
			metricsFrom(c).SetErrorStage("validate")
			return c.String(http.StatusBadRequest, "unknown priority")
		}
		t, ok := b.Create(d)
		if !ok {
			return notReady(c)
		}
		metricsFrom(c).SetTaskID(t.ID)
		return c.JSON(http.StatusCreated, t)
	}
}

func updateTask(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !ready(b) {
			return notReady(c)
		}
		id := c.Param("id")
		metricsFrom(c).SetTaskID(id)
		var p domain.Patch
		if err := decodeBody(c, &p); err != nil {
			return badBody(c, err)
		}
		if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
			metricsFrom(c).SetErrorStage("validate")
			return c.String(http.StatusBadRequest, "title is required")
		}
		if p.Column != nil && !p.Column.Valid() {
			metricsFrom(c).SetErrorStage("validate")
			return c.String(http.StatusBadRequest, "unknown column")
		}
		if p.Priority != nil && !p.Priority.Valid() {
			metricsFrom(c).SetErrorStage("validate")
			return c.String(http.StatusBadRequest, "unknown priority")
		}
		t, ok := b.Update(id, p)
		if !ok {
			return taskNotFound(c)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func deleteTask(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !ready(b) {
			return notReady(c)
		}
		id := c.Param("id")
		metricsFrom(c).SetTaskID(id)
		if !b.Delete(id) {
			return taskNotFound(c)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func moveTask(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !ready(b) {
			return notReady(c)
		}
		id := c.Param("id")
		metricsFrom(c).SetTaskID(id)
		var req moveRequest
		if err := decodeBody(c, &req); err != nil {
			return badBody(c, err)
		}
		if !req.Column.Valid() {
			metricsFrom(c).SetErrorStage("validate")
			return c.String(http.StatusBadRequest, "unknown column")
		}
		t, ok := b.Move(id, req.Column, req.Index)
		if !ok {
			return taskNotFound(c)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func clearBoard(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !b.ClearAll() {
			return notReady(c)
		}
		return c.JSON(http.StatusOK, b.Snapshot())
	}
}

func resetBoard(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !b.ResetToDefaults() {
			return notReady(c)
		}
		return c.JSON(http.StatusOK, b.Snapshot())
	}
}

func ready(b Board) bool {
	return b.Source() != board.SourceUninitialized
}

func notReady(c echo.Context) error {
	metricsFrom(c).SetErrorStage("not_started")
	return c.String(http.StatusServiceUnavailable, "board is starting")
}

func taskNotFound(c echo.Context) error {
	metricsFrom(c).SetErrorStage("not_found")
	return c.String(http.StatusNotFound, "task not found")
}

// decodeBody reads a JSON body, rejecting unknown fields.
func decodeBody(c echo.Context, v any) error {
	start := time.Now()
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		metricsFrom(c).SetErrorStage("read")
		return err
	}
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err = dec.Decode(v)
	metricsFrom(c).ObserveDecode(time.Since(start))
	if err != nil {
		metricsFrom(c).SetErrorStage("decode")
	}
	return err
}

func badBody(c echo.Context, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return c.String(http.StatusRequestEntityTooLarge, "body too large")
	}
	return c.String(http.StatusBadRequest, "invalid body")
}
