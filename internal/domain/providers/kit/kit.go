// Package kit holds the small helpers shared by provider adapters.
package kit

import (
	"encoding/base64"
	"fmt"
	"strings"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/httpc"
)

// HTTP returns the client an adapter should use: cfg.Client when it is an
// *httpc.Client, the shared default otherwise.
func HTTP(cfg orchestrator.ProviderConfig) *httpc.Client {
	if c, ok := cfg.Client.(*httpc.Client); ok && c != nil {
		return c
	}
	return httpc.Default
}

// Bearer builds an Authorization header map.
func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// Headers merges header maps left to right.
func Headers(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// RequireBase returns the configured base URL or an error naming the provider.
func RequireBase(name string, cfg orchestrator.ProviderConfig) (string, error) {
	base := cfg.Base("")
	if base == "" {
		return "", fmt.Errorf("%s: base URL not configured", name)
	}
	return base, nil
}

// Base64 encodes raw bytes with the standard alphabet.
func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 accepts standard or raw (unpadded) base64 and an optional data: URI prefix.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// OptionalInt64 converts a decoded JSON number into a pointer; nil when absent.
func OptionalInt64(v any) *int64 {
	f, ok := httpc.Float(v)
	if !ok {
		return nil
	}
	return Int64(int64(f))
}

// Vectors converts decoded JSON into a vector list; nil when the shape does not match.
func Vectors(v any) [][]float64 {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([][]float64, 0, len(rows))
	for _, row := range rows {
		out = append(out, Vector(row))
	}
	return out
}

// Vector converts a decoded JSON array of numbers.
func Vector(v any) []float64 {
	items, _ := v.([]any)
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, _ := httpc.Float(item)
		out = append(out, f)
	}
	return out
}

// Matches converts a gateway match list ({id, score, metadata}) into contract matches.
func Matches(v any) []orchestrator.Match {
	items, _ := v.([]any)
	out := make([]orchestrator.Match, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		score, _ := httpc.Float(m["score"])
		match := orchestrator.Match{ID: httpc.String(m["id"]), Score: score}
		if md, ok := m["metadata"].(map[string]any); ok {
			match.Metadata = md
		}
		out = append(out, match)
	}
	return out
}

// Placeholder returns n constant vectors of width dim, used where a backend has
// no embedding endpoint of its own.
func Placeholder(n, dim int, value float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, dim)
		for j := range row {
			row[j] = value
		}
		out[i] = row
	}
	return out
}
