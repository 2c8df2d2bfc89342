package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"beatrice-server-go/internal/domain/orchestrator"
)

// Querier is the slice of *pgxpool.Pool the adapter needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DialPostgres opens a pool for dsn and pings it once.
func DialPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: dsn required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Postgres runs raw SQL over a pooled connection. Both the hosted (Neon) and
// self-hosted variants use it under different names.
type Postgres struct {
	orchestrator.Descriptor
	pool Querier
}

// NewPostgresNeon expects cfg.Client to hold a connected pool.
func NewPostgresNeon(cfg orchestrator.ProviderConfig) *Postgres {
	return newPostgres("postgres-neon", false, cfg)
}

// NewPostgresLocal expects cfg.Client to hold a connected pool.
func NewPostgresLocal(cfg orchestrator.ProviderConfig) *Postgres {
	return newPostgres("postgres-local", true, cfg)
}

func newPostgres(name string, openSource bool, cfg orchestrator.ProviderConfig) *Postgres {
	pool, _ := cfg.Client.(Querier)
	return &Postgres{
		Descriptor: orchestrator.NewDescriptor(name, openSource, execOps),
		pool:       pool,
	}
}

func (p *Postgres) Exec(ctx context.Context, in orchestrator.DBQueryIn) (*orchestrator.DBQueryOut, error) {
	if strings.TrimSpace(in.SQL) == "" {
		return emptyResult(), nil
	}
	if p.pool == nil {
		return nil, fmt.Errorf("%s: no connection pool", p.Name())
	}

	rows, err := p.pool.Query(ctx, in.SQL, in.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			if i < len(values) {
				row[fd.Name] = normalizePG(values[i])
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tag := rows.CommandTag()
	count := tag.RowsAffected()
	return &orchestrator.DBQueryOut{
		Rows:     out,
		RowCount: &count,
		Meta:     orchestrator.Meta{"command": tag.String()},
	}, nil
}

// normalizePG maps driver values with no natural JSON form.
func normalizePG(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case []byte:
		return string(t)
	default:
		return v
	}
}
