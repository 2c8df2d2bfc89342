// Package objectstore contains the storage.put / storage.get adapters.
package objectstore

import (
	"context"
	"net/http"
	"strconv"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

var storageOps = orchestrator.Ops(orchestrator.OpStoragePut, orchestrator.OpStorageGet)

// gateway talks to a signing gateway in front of a bucket: the request contract
// is forwarded as JSON and the gateway answers with the normalized fields.
type gateway struct {
	orchestrator.Descriptor
	cfg      orchestrator.ProviderConfig
	client   *httpc.Client
	putPath  string
	getPath  string
	withAuth bool
}

func (g *gateway) headers() map[string]string {
	if !g.withAuth || g.cfg.APIKey == "" {
		return nil
	}
	return kit.Bearer(g.cfg.APIKey)
}

func (g *gateway) PutObject(ctx context.Context, in orchestrator.StoragePutIn) (*orchestrator.StoragePutOut, error) {
	base, err := kit.RequireBase(g.Name(), g.cfg)
	if err != nil {
		return nil, err
	}
	req := httpc.Request{Method: http.MethodPost, URL: base + g.putPath, Headers: g.headers(), JSON: in}
	if g.putPath == "/upload" {
		req.Query = map[string]string{"path": in.Path, "public": strconv.FormatBool(in.Public)}
	}
	j, err := g.client.JSON(ctx, req)
	if err != nil {
		return nil, err
	}
	return &orchestrator.StoragePutOut{
		Path: in.Path,
		URL:  httpc.String(j["url"]),
		ETag: httpc.String(j["etag"]),
		Size: kit.OptionalInt64(j["size"]),
		Meta: j,
	}, nil
}

func (g *gateway) GetObject(ctx context.Context, in orchestrator.StorageGetIn) (*orchestrator.StorageGetOut, error) {
	base, err := kit.RequireBase(g.Name(), g.cfg)
	if err != nil {
		return nil, err
	}
	j, err := g.client.JSON(ctx, httpc.Request{
		Method:  http.MethodGet,
		URL:     base + g.getPath,
		Headers: g.headers(),
		Query:   map[string]string{"path": in.Path},
	})
	if err != nil {
		return nil, err
	}
	return &orchestrator.StorageGetOut{
		BytesBase64: httpc.String(j["bytesBase64"]),
		URL:         httpc.String(j["url"]),
		ContentType: httpc.String(j["contentType"]),
		Size:        kit.OptionalInt64(j["size"]),
		Meta:        j,
	}, nil
}

// S3 经签名网关访问 S3
type S3 struct{ gateway }

func NewS3(cfg orchestrator.ProviderConfig) *S3 {
	return &S3{gateway{
		Descriptor: orchestrator.NewDescriptor("s3", false, storageOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		putPath:    "/put",
		getPath:    "/get",
		withAuth:   true,
	}}
}

// MinIO S3 兼容的自建对象存储网关
type MinIO struct{ gateway }

func NewMinIO(cfg orchestrator.ProviderConfig) *MinIO {
	return &MinIO{gateway{
		Descriptor: orchestrator.NewDescriptor("minio", true, storageOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		putPath:    "/put",
		getPath:    "/get",
	}}
}

// FirebaseStorage 经网关访问 Firebase Storage
type FirebaseStorage struct{ gateway }

func NewFirebaseStorage(cfg orchestrator.ProviderConfig) *FirebaseStorage {
	return &FirebaseStorage{gateway{
		Descriptor: orchestrator.NewDescriptor("firebase-storage", false, storageOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		putPath:    "/upload",
		getPath:    "/download",
		withAuth:   true,
	}}
}
