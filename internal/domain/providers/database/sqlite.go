package database

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"beatrice-server-go/internal/domain/orchestrator"
)

// SQLite 通过 gorm 连接执行原生 SQL
type SQLite struct {
	orchestrator.Descriptor
	db *gorm.DB
}

// NewSQLite expects cfg.Client to hold a *gorm.DB.
func NewSQLite(cfg orchestrator.ProviderConfig) *SQLite {
	db, _ := cfg.Client.(*gorm.DB)
	return &SQLite{
		Descriptor: orchestrator.NewDescriptor("sqlite", true, execOps),
		db:         db,
	}
}

func isQuery(sql string) bool {
	head := strings.ToLower(strings.TrimSpace(sql))
	for _, prefix := range []string{"select", "with", "pragma"} {
		if strings.HasPrefix(head, prefix) {
			return true
		}
	}
	return false
}

func (s *SQLite) Exec(ctx context.Context, in orchestrator.DBQueryIn) (*orchestrator.DBQueryOut, error) {
	if strings.TrimSpace(in.SQL) == "" {
		return emptyResult(), nil
	}
	if s.db == nil {
		return nil, errors.New("sqlite: no database handle")
	}
	db := s.db.WithContext(ctx)

	if !isQuery(in.SQL) {
		res := db.Exec(in.SQL, in.Params...)
		if res.Error != nil {
			return nil, res.Error
		}
		affected := res.RowsAffected
		return &orchestrator.DBQueryOut{Ack: true, RowCount: &affected}, nil
	}

	rows, err := db.Raw(in.SQL, in.Params...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	count := int64(len(out))
	return &orchestrator.DBQueryOut{Rows: out, RowCount: &count}, nil
}
