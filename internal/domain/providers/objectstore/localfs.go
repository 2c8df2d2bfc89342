package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

var errOutsideRoot = errors.New("path escapes storage root")

// LocalFS 以本地目录作为对象存储
type LocalFS struct {
	orchestrator.Descriptor
	root   string
	client *httpc.Client
}

// NewLocalFS roots the store at extra "root" (default data/files).
func NewLocalFS(cfg orchestrator.ProviderConfig) *LocalFS {
	root := cfg.String("root", "data/files")
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &LocalFS{
		Descriptor: orchestrator.NewDescriptor("local-fs", true, storageOps),
		root:       root,
		client:     kit.HTTP(cfg),
	}
}

// resolve maps an object path to a file under root.
func (l *LocalFS) resolve(p string) (string, error) {
	rel := strings.TrimLeft(filepath.ToSlash(strings.TrimSpace(p)), "/")
	if rel == "" {
		return "", errors.New("path is required")
	}
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%q: %w", p, errOutsideRoot)
	}
	return filepath.Join(l.root, rel), nil
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func (l *LocalFS) PutObject(ctx context.Context, in orchestrator.StoragePutIn) (*orchestrator.StoragePutOut, error) {
	target, err := l.resolve(in.Path)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch {
	case in.BytesBase64 != "":
		if data, err = kit.DecodeBase64(in.BytesBase64); err != nil {
			return nil, fmt.Errorf("decode bytes: %w", err)
		}
	case in.URLFetch != "":
		resp, err := l.client.Do(ctx, httpc.Request{Method: http.MethodGet, URL: in.URLFetch})
		if err != nil {
			return nil, err
		}
		data = resp.Body
	default:
		return nil, errors.New("bytesBase64 or urlFetch is required")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, err
	}

	sum := md5.Sum(data)
	return &orchestrator.StoragePutOut{
		Path: in.Path,
		URL:  fileURL(target),
		ETag: hex.EncodeToString(sum[:]),
		Size: kit.Int64(int64(len(data))),
		Meta: orchestrator.Meta{"provider": "local-fs"},
	}, nil
}

func (l *LocalFS) GetObject(_ context.Context, in orchestrator.StorageGetIn) (*orchestrator.StorageGetOut, error) {
	target, err := l.resolve(in.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", in.Path)
	}

	out := &orchestrator.StorageGetOut{
		Size: kit.Int64(info.Size()),
		Meta: orchestrator.Meta{"provider": "local-fs"},
	}
	if in.AsURL {
		out.URL = fileURL(target)
		out.ContentType = mime.TypeByExtension(filepath.Ext(target))
		return out, nil
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, err
	}
	out.BytesBase64 = kit.Base64(data)
	out.ContentType = mime.TypeByExtension(filepath.Ext(target))
	if out.ContentType == "" {
		out.ContentType = http.DetectContentType(data)
	}
	return out, nil
}
