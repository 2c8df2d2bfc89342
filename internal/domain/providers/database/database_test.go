package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"beatrice-server-go/internal/domain/orchestrator"
)

func TestFirestorePatchAndStub(t *testing.T) {
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		method, path, body = r.Method, r.URL.Path, string(data)
		_, _ = io.WriteString(w, `{"name":"doc"}`)
	}))
	defer srv.Close()

	p := NewFirestore(orchestrator.ProviderConfig{BaseURL: srv.URL, APIKey: "tok", Extra: map[string]any{"project": "proj"}})
	out, err := p.Exec(context.Background(), orchestrator.DBQueryIn{
		Collection: "sessions", DocID: "s1", Data: map[string]any{"text": map[string]any{"stringValue": "hi"}},
	})
	require.NoError(t, err)
	assert.True(t, out.Ack)
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/v1/projects/proj/databases/(default)/documents/sessions/s1", path)
	assert.JSONEq(t, `{"fields":{"text":{"stringValue":"hi"}}}`, body)

	stub, err := p.Exec(context.Background(), orchestrator.DBQueryIn{SQL: "select 1"})
	require.NoError(t, err)
	assert.Empty(t, stub.Rows)
	assert.EqualValues(t, 0, *stub.RowCount)
}

type fakeRows struct {
	fields []pgconn.FieldDescription
	values [][]any
	tag    pgconn.CommandTag
	pos    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return r.tag }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Next() bool                                   { r.pos++; return r.pos <= len(r.values) }
func (r *fakeRows) Scan(...any) error                            { return errors.New("not supported") }
func (r *fakeRows) Values() ([]any, error)                       { return r.values[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

type fakePool struct {
	rows *fakeRows
	err  error
	sql  string
	args []any
}

func (p *fakePool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.sql, p.args = sql, args
	if p.err != nil {
		return nil, p.err
	}
	return p.rows, nil
}

func TestPostgresRows(t *testing.T) {
	id := [16]byte{0x12, 0x34}
	rows := &fakeRows{
		fields: []pgconn.FieldDescription{{Name: "id"}, {Name: "text"}},
		values: [][]any{{id, "hello"}, {id, "world"}},
		tag:    pgconn.NewCommandTag("SELECT 2"),
	}
	pool := &fakePool{rows: rows}
	p := NewPostgresNeon(orchestrator.ProviderConfig{Client: pool})

	out, err := p.Exec(context.Background(), orchestrator.DBQueryIn{SQL: "select id, text from transcripts where session_id = $1", Params: []any{"s1"}})
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "hello", out.Rows[0]["text"])
	assert.Equal(t, "12340000-0000-0000-0000-000000000000", out.Rows[0]["id"])
	assert.EqualValues(t, 2, *out.RowCount)
	assert.Equal(t, []any{"s1"}, pool.args)
	assert.True(t, rows.closed)
	assert.Equal(t, "postgres-neon", p.Name())
	assert.False(t, p.IsOpenSource())
}

func TestPostgresInsertAndErrors(t *testing.T) {
	pool := &fakePool{rows: &fakeRows{tag: pgconn.NewCommandTag("INSERT 0 1")}}
	p := NewPostgresLocal(orchestrator.ProviderConfig{Client: pool})

	out, err := p.Exec(context.Background(), orchestrator.DBQueryIn{SQL: "INSERT INTO transcripts(session_id, text) VALUES ($1,$2)", Params: []any{"s", "t"}})
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
	assert.EqualValues(t, 1, *out.RowCount)

	empty, err := p.Exec(context.Background(), orchestrator.DBQueryIn{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, *empty.RowCount)

	_, err = NewPostgresLocal(orchestrator.ProviderConfig{}).Exec(context.Background(), orchestrator.DBQueryIn{SQL: "select 1"})
	assert.ErrorContains(t, err, "no connection pool")

	failing := NewPostgresLocal(orchestrator.ProviderConfig{Client: &fakePool{err: errors.New("connection refused")}})
	_, err = failing.Exec(context.Background(), orchestrator.DBQueryIn{SQL: "select 1"})
	assert.ErrorContains(t, err, "connection refused")
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbexec-%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSQLiteExecAndSelect(t *testing.T) {
	db := openSQLite(t)
	p := NewSQLite(orchestrator.ProviderConfig{Client: db})
	ctx := context.Background()

	_, err := p.Exec(ctx, orchestrator.DBQueryIn{SQL: "CREATE TABLE transcripts(session_id TEXT, text TEXT)"})
	require.NoError(t, err)

	ins, err := p.Exec(ctx, orchestrator.DBQueryIn{SQL: "INSERT INTO transcripts(session_id, text) VALUES (?, ?)", Params: []any{"s1", "hello"}})
	require.NoError(t, err)
	assert.True(t, ins.Ack)
	assert.EqualValues(t, 1, *ins.RowCount)

	sel, err := p.Exec(ctx, orchestrator.DBQueryIn{SQL: "  SELECT session_id, text FROM transcripts WHERE session_id = ?", Params: []any{"s1"}})
	require.NoError(t, err)
	require.Len(t, sel.Rows, 1)
	assert.Equal(t, "hello", sel.Rows[0]["text"])
	assert.EqualValues(t, 1, *sel.RowCount)
	assert.False(t, sel.Ack)

	_, err = p.Exec(ctx, orchestrator.DBQueryIn{SQL: "SELECT * FROM missing_table"})
	assert.Error(t, err)

	_, err = NewSQLite(orchestrator.ProviderConfig{}).Exec(ctx, orchestrator.DBQueryIn{SQL: "select 1"})
	assert.ErrorContains(t, err, "no database handle")
}

func TestDialPostgresValidatesDSN(t *testing.T) {
	_, err := DialPostgres(context.Background(), "  ")
	assert.ErrorContains(t, err, "dsn required")

	_, err = DialPostgres(context.Background(), "::not a dsn::")
	assert.ErrorContains(t, err, "postgres:")
}
