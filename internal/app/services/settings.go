package services

import (
	"context"
	"sync"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/config"
	"beatrice-server-go/internal/platform/errors"
	"beatrice-server-go/internal/platform/logging"
)

// SettingsKey is the settings_records key holding the provider document.
const SettingsKey = "providers"

// ProviderDocument 可在线修改的提供者配置。缺省的部分保持原值
type ProviderDocument struct {
	Providers   map[string]config.ProviderSettings `json:"providers,omitempty"`
	Preferences *config.PreferencesConfig          `json:"preferences,omitempty"`
}

// SettingsStore persists JSON documents.
type SettingsStore interface {
	Load(ctx context.Context, key string, out any) (bool, error)
	Save(ctx context.Context, key string, value any) error
}

// Rebuilder repopulates a registry from a config.
type Rebuilder interface {
	Rebuild(reg *orchestrator.Registry, cfg *config.Config, reason string) []orchestrator.Warning
}

// Settings 持有运行时配置；保存后立即重建注册表
type Settings struct {
	mu       sync.RWMutex
	cfg      *config.Config
	warnings []orchestrator.Warning

	store    SettingsStore
	builder  Rebuilder
	registry *orchestrator.Registry
	logger   logging.Interface
}

// NewSettings wraps the file config. store may be nil, in which case updates
// only live in memory.
func NewSettings(cfg *config.Config, store SettingsStore, builder Rebuilder, registry *orchestrator.Registry, logger logging.Interface) *Settings {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Settings{
		cfg:      cfg.Clone(),
		store:    store,
		builder:  builder,
		registry: registry,
		logger:   logger,
	}
}

// Init overlays the persisted document on the file config and performs the
// first registry build.
func (s *Settings) Init(ctx context.Context) ([]orchestrator.Warning, error) {
	if s.store != nil {
		var doc ProviderDocument
		found, err := s.store.Load(ctx, SettingsKey, &doc)
		if err != nil {
			return nil, err
		}
		if found {
			s.mu.Lock()
			s.apply(doc)
			s.mu.Unlock()
			s.logger.InfoTag(logTag, "已加载持久化的提供者配置 (%d 项)", len(doc.Providers))
		}
	}
	return s.rebuild("startup"), nil
}

// apply replaces the mutable parts of the config; caller holds mu.
func (s *Settings) apply(doc ProviderDocument) {
	s.cfg = merge(s.cfg, doc)
}

func merge(cfg *config.Config, doc ProviderDocument) *config.Config {
	next := cfg.Clone()
	if doc.Providers != nil {
		next.Providers = doc.Providers
	}
	if doc.Preferences != nil {
		next.Preferences = doc.Preferences.Clone()
	}
	return next
}

func (s *Settings) rebuild(reason string) []orchestrator.Warning {
	s.mu.RLock()
	cfg := s.cfg.Clone()
	s.mu.RUnlock()

	warnings := s.builder.Rebuild(s.registry, cfg, reason)
	s.mu.Lock()
	s.warnings = warnings
	s.mu.Unlock()
	return warnings
}

// Config returns a copy of the live config.
func (s *Settings) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Preferences is a PreferenceSource over the live config.
func (s *Settings) Preferences() config.PreferencesConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Preferences.Clone()
}

// Document returns the editable part of the live config.
func (s *Settings) Document() ProviderDocument {
	cfg := s.Config()
	return ProviderDocument{Providers: cfg.Providers, Preferences: &cfg.Preferences}
}

// Warnings returns the result of the last validation.
func (s *Settings) Warnings() []orchestrator.Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]orchestrator.Warning(nil), s.warnings...)
}

// Update validates and persists doc, then rebuilds the registry. Nothing
// changes when validation or persistence fails.
func (s *Settings) Update(ctx context.Context, doc ProviderDocument) ([]orchestrator.Warning, error) {
	s.mu.RLock()
	next := merge(s.cfg, doc)
	s.mu.RUnlock()
	if err := config.Validate(next); err != nil {
		return nil, errors.Wrap(errors.KindConfig, "settings.update", "invalid provider settings", err)
	}

	if s.store != nil {
		saved := ProviderDocument{Providers: next.Providers, Preferences: &next.Preferences}
		if err := s.store.Save(ctx, SettingsKey, saved); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.cfg = next
	s.mu.Unlock()
	s.logger.InfoTag(logTag, "提供者配置已更新")
	return s.rebuild("settings"), nil
}
