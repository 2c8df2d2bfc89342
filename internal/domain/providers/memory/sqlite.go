package memory

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/storage"
)

// SQLiteMemory 使用本地 SQLite 的 memory_records 表
type SQLiteMemory struct {
	orchestrator.Descriptor
	repo *storage.MemoryRepository
}

// NewSQLiteMemory takes the *gorm.DB from cfg.Client.
func NewSQLiteMemory(cfg orchestrator.ProviderConfig) *SQLiteMemory {
	m := &SQLiteMemory{Descriptor: orchestrator.NewDescriptor("sqlite-memory", true, memoryOps)}
	if db, ok := cfg.Client.(*gorm.DB); ok && db != nil {
		m.repo = storage.NewMemoryRepository(db)
	}
	return m
}

func (s *SQLiteMemory) Note(ctx context.Context, in orchestrator.MemoryNoteIn) (*orchestrator.MemoryNoteOut, error) {
	if s.repo == nil {
		return nil, errors.New("sqlite-memory: database not configured")
	}
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	value, err := encode(in.Value)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Put(ctx, string(in.Scope), in.Key, value, time.Duration(in.TTLSec)*time.Second); err != nil {
		return nil, err
	}
	return &orchestrator.MemoryNoteOut{OK: true}, nil
}

func (s *SQLiteMemory) Read(ctx context.Context, in orchestrator.MemoryReadIn) (*orchestrator.MemoryReadOut, error) {
	if s.repo == nil {
		return nil, errors.New("sqlite-memory: database not configured")
	}
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	raw, found, err := s.repo.Get(ctx, string(in.Scope), in.Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return &orchestrator.MemoryReadOut{Found: false}, nil
	}
	value, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return &orchestrator.MemoryReadOut{Value: value, Found: true}, nil
}
