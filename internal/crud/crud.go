// Package crud implements parameterized create, read, update and delete
// primitives over a PostgreSQL pool. Every operation returns a Result
// envelope instead of an error so callers can hand it straight to a model.
package crud

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Result is the envelope returned by every operation.
type Result struct {
	Status       string   `json:"status"`
	Operation    string   `json:"operation"`
	RowsAffected int64    `json:"rows_affected"`
	DurationMs   float64  `json:"duration_ms"`
	Result       any      `json:"result"`
	Message      string   `json:"message"`
	Warnings     []string `json:"warnings"`
}

// DB is the subset of *pgxpool.Pool used by Manager.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Filter is an optional WHERE clause with its parameters. Placeholders may be
// written as %s or $n.
type Filter struct {
	Where  string
	Params []any
}

// Manager runs CRUD operations against a database.
type Manager struct {
	db     DB
	logger *slog.Logger
}

// NewManager returns a manager for db.
func NewManager(db DB, logger *slog.Logger) *Manager {
	return &Manager{db: db, logger: logger}
}

// run times fn and fills in the envelope fields common to all operations.
func (m *Manager) run(ctx context.Context, operation string, fn func(ctx context.Context) (*Result, error)) *Result {
	start := time.Now()

	res, err := fn(ctx)
	if err != nil {
		res = &Result{Status: StatusError, Message: err.Error()}

		var verr *ValidationError
		if errors.As(err, &verr) {
			m.logger.Info("crud input rejected", "operation", operation, "reason", verr.Message)
		} else {
			m.logger.Warn("crud operation failed", "operation", operation, "error", err)
		}
	}

	res.Operation = operation
	res.DurationMs = math.Round(float64(time.Since(start).Microseconds())/10) / 100
	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	m.logger.Debug("crud operation", "operation", operation, "status", res.Status,
		"rows_affected", res.RowsAffected, "duration_ms", res.DurationMs)
	return res
}

func success(rows int64, message string, result any) *Result {
	return &Result{Status: StatusSuccess, RowsAffected: rows, Message: message, Result: result}
}
