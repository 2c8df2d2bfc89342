package httpc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_JSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "1", r.URL.Query().Get("v"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"text":"hi"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc","nested":{"list":[{"n":1}]}}`))
	}))
	defer srv.Close()

	obj, err := New().JSON(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer k"},
		Query:   map[string]string{"v": "1"},
		JSON:    map[string]string{"text": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", obj["id"])
	assert.Equal(t, float64(1), Dig(obj, "nested", "list", 0, "n"))
}

func TestClient_StatusErrorTruncatesBody(t *testing.T) {
	long := strings.Repeat("x", 900)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	_, err := New().Do(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Len(t, se.Body, maxErrorBody)
	assert.True(t, strings.HasPrefix(err.Error(), "HTTP 502 Bad Gateway :: "))
}

func TestClient_FormAndBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sid", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001", r.PostForm.Get("To"))
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	obj, err := New().JSON(context.Background(), Request{
		Method:    http.MethodPost,
		URL:       srv.URL,
		Form:      map[string]string{"To": "+15550001"},
		BasicUser: "sid",
		BasicPass: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "SM1", obj["sid"])
}

func TestClient_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "my-voice", r.FormValue("name"))
		f, _, err := r.FormFile("files")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF", string(data))
		_, _ = w.Write([]byte(`{"voice_id":"v1"}`))
	}))
	defer srv.Close()

	obj, err := New().JSON(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Form:   map[string]string{"name": "my-voice"},
		Files:  []File{{Param: "files", FileName: "sample.wav", Data: []byte("RIFF")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", obj["voice_id"])
}

func TestResponse_ObjectToleratesEmptyBody(t *testing.T) {
	assert.Empty(t, (&Response{}).Object())
	assert.Empty(t, (&Response{Body: []byte("not json")}).Object())
	assert.Empty(t, (&Response{Body: []byte(`[1,2]`)}).Object())
}

func TestDigAndScalars(t *testing.T) {
	doc := map[string]any{"a": []any{map[string]any{"b": "c"}}}
	assert.Equal(t, "c", Dig(doc, "a", 0, "b"))
	assert.Nil(t, Dig(doc, "a", 3))
	assert.Nil(t, Dig(doc, "missing", "x"))

	assert.Equal(t, "1.5", String(1.5))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "x", FirstString(nil, "", "x"))

	f, ok := Float("2.5")
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
}
