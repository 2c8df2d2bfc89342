package memory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/config"
	"beatrice-server-go/internal/platform/storage"
)

type memoryProvider interface {
	orchestrator.MemoryNoter
	orchestrator.MemoryReader
}

// roundTrip checks the note-then-read contract every local backend shares.
func roundTrip(t *testing.T, p memoryProvider) {
	t.Helper()
	ctx := context.Background()

	missing, err := p.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeUser, Key: "fav_drink"})
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Nil(t, missing.Value)

	note, err := p.Note(ctx, orchestrator.MemoryNoteIn{Scope: orchestrator.ScopeUser, Key: "fav_drink", Value: "oat latte"})
	require.NoError(t, err)
	assert.True(t, note.OK)

	got, err := p.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeUser, Key: "fav_drink"})
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, "oat latte", got.Value)

	other, err := p.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeSession, Key: "fav_drink"})
	require.NoError(t, err)
	assert.False(t, other.Found)

	_, err = p.Note(ctx, orchestrator.MemoryNoteIn{Scope: "team", Key: "x", Value: 1})
	assert.ErrorContains(t, err, "invalid memory scope")
	_, err = p.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeUser})
	assert.ErrorContains(t, err, "memory key is required")
}

func TestInMemoryRoundTripAndTTL(t *testing.T) {
	m := NewInMemory(orchestrator.ProviderConfig{})
	t.Cleanup(func() { _ = m.Close() })
	roundTrip(t, m)

	clock := time.Now()
	m.now = func() time.Time { return clock }
	ctx := context.Background()
	_, err := m.Note(ctx, orchestrator.MemoryNoteIn{Scope: orchestrator.ScopeSession, Key: "mood", Value: map[string]any{"v": "calm"}, TTLSec: 60})
	require.NoError(t, err)

	got, err := m.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeSession, Key: "mood"})
	require.NoError(t, err)
	assert.True(t, got.Found)

	clock = clock.Add(61 * time.Second)
	got, err = m.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeSession, Key: "mood"})
	require.NoError(t, err)
	assert.False(t, got.Found)

	assert.Equal(t, 1, m.CleanupExpired())
	assert.Equal(t, 1, m.Len())
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestRedisMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := DialRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedisMemory(orchestrator.ProviderConfig{Client: client, Extra: map[string]any{"prefix": "beatrice:"}})
	roundTrip(t, r)

	raw, err := mr.Get("beatrice:user:fav_drink")
	require.NoError(t, err)
	assert.Equal(t, `"oat latte"`, raw)

	ctx := context.Background()
	_, err = r.Note(ctx, orchestrator.MemoryNoteIn{Scope: orchestrator.ScopeSession, Key: "s1", Value: []any{1, 2}, TTLSec: 30})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("beatrice:session:s1"))

	mr.FastForward(31 * time.Second)
	got, err := r.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeSession, Key: "s1"})
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestRedisMemoryWithoutClient(t *testing.T) {
	_, err := NewRedisMemory(orchestrator.ProviderConfig{}).Note(context.Background(),
		orchestrator.MemoryNoteIn{Scope: orchestrator.ScopeUser, Key: "k", Value: 1})
	assert.ErrorContains(t, err, "client not configured")

	_, err = DialRedis(context.Background(), config.RedisConfig{})
	assert.ErrorContains(t, err, "redis address required")
}

var dbCounter atomic.Int64

func TestSQLiteMemory(t *testing.T) {
	db, err := storage.OpenDSN(fmt.Sprintf("file:memory-test-%d?mode=memory&cache=shared", dbCounter.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	roundTrip(t, NewSQLiteMemory(orchestrator.ProviderConfig{Client: db}))

	_, err = NewSQLiteMemory(orchestrator.ProviderConfig{}).Read(context.Background(),
		orchestrator.MemoryReadIn{Scope: orchestrator.ScopeUser, Key: "k"})
	assert.ErrorContains(t, err, "database not configured")
}

func TestNotionMemory(t *testing.T) {
	var bodies []map[string]any
	var version string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body := map[string]any{}
		_ = sonic.Unmarshal(data, &body)
		bodies = append(bodies, body)
		version = r.Header.Get("Notion-Version")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/pages":
			_, _ = io.WriteString(w, `{"id":"page-1"}`)
		case "/v1/databases/db-1/query":
			_, _ = io.WriteString(w, `{"results":[{"properties":{"Value":{"rich_text":[{"plain_text":"{\"drink\":\"oat latte\"}"}]}}}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n := NewNotionMemory(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "nk", Extra: map[string]any{"db": "db-1"}})
	ctx := context.Background()

	note, err := n.Note(ctx, orchestrator.MemoryNoteIn{Scope: orchestrator.ScopeUser, Key: "prefs", Value: strings.Repeat("x", 3000)})
	require.NoError(t, err)
	assert.True(t, note.OK)
	assert.Equal(t, "2022-06-28", version)
	content := bodies[0]["properties"].(map[string]any)["Value"].(map[string]any)["rich_text"].([]any)[0].(map[string]any)["text"].(map[string]any)["content"].(string)
	assert.Len(t, content, notionTextLimit)

	got, err := n.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeUser, Key: "prefs"})
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, map[string]any{"drink": "oat latte"}, got.Value)
	filter := bodies[1]["filter"].(map[string]any)
	assert.Equal(t, "user:prefs", filter["title"].(map[string]any)["equals"])
}

func TestJSONMemory(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/mem/get" {
			query = r.URL.RawQuery
			_, _ = io.WriteString(w, `{"value":{"n":1},"found":true}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	j := NewJSONMemory(orchestrator.ProviderConfig{BaseURL: srv.URL})
	ctx := context.Background()
	note, err := j.Note(ctx, orchestrator.MemoryNoteIn{Scope: orchestrator.ScopeGlobal, Key: "a b", Value: 1})
	require.NoError(t, err)
	assert.True(t, note.OK)

	got, err := j.Read(ctx, orchestrator.MemoryReadIn{Scope: orchestrator.ScopeGlobal, Key: "a b"})
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, map[string]any{"n": float64(1)}, got.Value)
	assert.Contains(t, query, "key=a+b")
}
