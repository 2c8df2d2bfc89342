// Package database contains the db.exec adapters: a document store over
// REST and SQL backends over pooled connections.
package database

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

var execOps = orchestrator.Ops(orchestrator.OpDBExec)

func emptyResult() *orchestrator.DBQueryOut {
	return &orchestrator.DBQueryOut{Rows: []map[string]any{}, RowCount: kit.Int64(0)}
}

// Firestore 写入文档；无写入参数时返回空结果集
type Firestore struct {
	orchestrator.Descriptor
	cfg     orchestrator.ProviderConfig
	client  *httpc.Client
	base    string
	project string
}

func NewFirestore(cfg orchestrator.ProviderConfig) *Firestore {
	return &Firestore{
		Descriptor: orchestrator.NewDescriptor("firestore", false, execOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://firestore.googleapis.com"),
		project:    cfg.String("project", ""),
	}
}

func (f *Firestore) Exec(ctx context.Context, in orchestrator.DBQueryIn) (*orchestrator.DBQueryOut, error) {
	if in.Collection == "" || in.DocID == "" || in.Data == nil {
		return emptyResult(), nil
	}
	if f.project == "" {
		return nil, errors.New("firestore: project not configured")
	}
	j, err := f.client.JSON(ctx, httpc.Request{
		Method: http.MethodPatch,
		URL: f.base + "/v1/projects/" + url.PathEscape(f.project) + "/databases/(default)/documents/" +
			url.PathEscape(in.Collection) + "/" + url.PathEscape(in.DocID),
		Headers: kit.Bearer(f.cfg.APIKey),
		JSON:    map[string]any{"fields": in.Data},
	})
	if err != nil {
		return nil, err
	}
	return &orchestrator.DBQueryOut{Ack: true, Meta: j}, nil
}
