package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/invocation-gateway/pkg/provider"
)

const (
	Name    = "postgres"
	Version = "1.0.0"

	providerLogPrefix = "postgres:provider"
)

// Client holds one pooled connection for the duration of an invocation.
type Client struct {
	conn *pgxpool.Conn
}

// Close releases the connection back to the pool.
func (c *Client) Close() error {
	c.conn.Release()
	return nil
}

// New returns the postgres provider backed by pool.
func New(pool *pgxpool.Pool) *provider.Provider {
	return &provider.Provider{
		Name:        Name,
		Version:     Version,
		Description: "PostgreSQL queries and statements over a pgx pool",
		New: func(ctx context.Context, _ provider.Config) (provider.Client, error) {
			if pool == nil {
				return nil, errors.New("postgres: pool not configured")
			}
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, fmt.Errorf("%s - acquire connection: %w", providerLogPrefix, err)
			}
			return &Client{conn: conn}, nil
		},
		Operations: map[string]provider.Operation{
			"query": provider.Bind(query),
			"exec":  provider.Bind(exec),
			"ping":  provider.Bind(ping),
		},
	}
}

// StatementInput is a SQL statement with positional arguments ($1, $2, ...).
type StatementInput struct {
	SQL  string        `json:"sql"`
	Args []interface{} `json:"args,omitempty"`
}

// QueryOutput is the query response.
type QueryOutput struct {
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	RowCount int                      `json:"rowCount"`
}

// ExecOutput is the exec response.
type ExecOutput struct {
	RowsAffected int64  `json:"rowsAffected"`
	Command      string `json:"command"`
}

func query(ctx context.Context, c *Client, in StatementInput) (interface{}, error) {
	if in.SQL == "" {
		return nil, errors.New("postgres: sql is required")
	}
	slog.Debug(fmt.Sprintf("%s - query args=%d", providerLogPrefix, len(in.Args)))

	rows, err := c.conn.Query(ctx, in.SQL, normalizeArgs(in.Args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := QueryOutput{Columns: make([]string, len(fields)), Rows: []map[string]interface{}{}}
	for i, f := range fields {
		out.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(values))
		for i, v := range values {
			row[out.Columns[i]] = v
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out.RowCount = len(out.Rows)
	return out, nil
}

func exec(ctx context.Context, c *Client, in StatementInput) (interface{}, error) {
	if in.SQL == "" {
		return nil, errors.New("postgres: sql is required")
	}
	tag, err := c.conn.Exec(ctx, in.SQL, normalizeArgs(in.Args)...)
	if err != nil {
		return nil, err
	}
	return ExecOutput{RowsAffected: tag.RowsAffected(), Command: commandName(tag)}, nil
}

func ping(ctx context.Context, c *Client, _ struct{}) (interface{}, error) {
	if err := c.conn.Ping(ctx); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// normalizeArgs turns decoded JSON numbers into int64 or float64 so pgx can encode them.
func normalizeArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		n, ok := a.(json.Number)
		if !ok {
			out[i] = a
			continue
		}
		if v, err := n.Int64(); err == nil {
			out[i] = v
		} else if f, err := n.Float64(); err == nil {
			out[i] = f
		} else {
			out[i] = n.String()
		}
	}
	return out
}

func commandName(tag interface{ String() string }) string {
	s := tag.String()
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i]
		}
	}
	return s
}
