package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatrice-server-go/internal/domain/auth"
	platformconfig "beatrice-server-go/internal/platform/config"
	platformerrors "beatrice-server-go/internal/platform/errors"
	platformtesting "beatrice-server-go/internal/platform/testing"
)

func writeConfig(t *testing.T, extra string) Options {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`server:
  ip: 127.0.0.1
  port: 18080
log:
  log_level: DEBUG
  log_dir: %s
  log_file: test.log
database:
  path: %s
web:
  static_dir: ""
%s`, filepath.Join(dir, "logs"), filepath.Join(dir, "beatrice.db"), extra)
	return Options{ConfigPath: platformtesting.WriteConfigFile(t, body), DisableDotEnv: true}
}

func TestInitGraphOrder(t *testing.T) {
	var ids []string
	for _, step := range InitGraph() {
		ids = append(ids, step.ID)
	}
	assert.Equal(t, []string{
		"config:load-runtime",
		"logging:init-provider",
		"storage:init-database",
		"eventbus:init-audit",
		"orchestrator:init-registry",
		"session:init-dispatcher",
	}, ids)
}

func TestExecuteInitStepsChecksDependencies(t *testing.T) {
	steps := []initStep{{
		ID:        "b",
		DependsOn: []string{"a"},
		Execute:   func(context.Context, *appState) error { return nil },
	}}
	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency a not satisfied")

	boom := errors.New("boom")
	steps = []initStep{{ID: "a", Kind: platformerrors.KindStorage, Execute: func(context.Context, *appState) error { return boom }}}
	err = executeInitSteps(context.Background(), steps, &appState{})
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))
	assert.ErrorIs(t, err, boom)
}

func TestExecuteInitGraphAndServe(t *testing.T) {
	state := &appState{opts: writeConfig(t, `preferences:
  memory: [in-memory]
  tts: [ghost-tts]
`)}
	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))
	defer state.close()

	require.NotNil(t, state.logger)
	require.NotNil(t, state.db)
	require.NotNil(t, state.dispatcher)
	_, ok := state.registry.Get("in-memory")
	assert.True(t, ok)

	// preference lists left out of the file keep their defaults, so only look for ours.
	var flagged []string
	for _, w := range state.settings.Warnings() {
		if w.Capability == "tts" || w.Capability == "memory" {
			flagged = append(flagged, w.Provider)
		}
	}
	assert.Equal(t, []string{"ghost-tts"}, flagged)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler, wsRouter, err := buildHandler(ctx, state)
	require.NoError(t, err)
	defer wsRouter.Shutdown()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "api not found")

	req := httptest.NewRequest(http.MethodPost, "/api/memory/note",
		strings.NewReader(`{"request":{"scope":"session","key":"k","value":"v"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/db/exec",
		strings.NewReader(`{"providers":["sqlite"],"request":{"sql":"select name from sqlite_master where name = 'settings_records'"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rowCount":0`)
}

func TestSQLiteDataStaysOffServiceDatabase(t *testing.T) {
	state := &appState{opts: writeConfig(t, "")}
	require.NoError(t, loadConfigStep(context.Background(), state))
	cfg := state.config

	assert.Equal(t, filepath.Join(filepath.Dir(cfg.Database.Path), "sqlite-data.db"), sqliteDataPath(cfg))

	cfg.Providers["sqlite"] = platformconfig.ProviderSettings{Extra: map[string]string{"path": cfg.Database.Path}}
	_, err := openSQLiteData(cfg)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))

	cfg.Providers["sqlite"] = platformconfig.ProviderSettings{Disabled: true}
	db, err := openSQLiteData(cfg)
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestIssueToken(t *testing.T) {
	opts := writeConfig(t, `  allow_origins: ["*"]
`)
	_, err := IssueToken(opts, "ops")
	assert.ErrorContains(t, err, "server.auth.secret is not set")

	path := platformtesting.WriteConfigFile(t, "server:\n  port: 18081\n  auth:\n    enabled: true\n    secret: s3cret\n    issuer: test\n")
	token, err := IssueToken(Options{ConfigPath: path, DisableDotEnv: true}, "ops")
	require.NoError(t, err)
	subject, err := auth.NewTokenIssuer("s3cret", "test").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", subject)
}
