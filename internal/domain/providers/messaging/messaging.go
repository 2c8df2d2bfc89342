// Package messaging contains the outbound message adapters. Every adapter
// reports status "sent" once the backend accepts the request.
package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/kit"
	"beatrice-server-go/internal/platform/httpc"
)

var sendOps = orchestrator.Ops(orchestrator.OpSend)

func sent(id any, raw map[string]any) *orchestrator.MessageOut {
	return &orchestrator.MessageOut{ID: httpc.String(id), Status: orchestrator.MessageSent, Raw: raw}
}

// WhatsAppBusiness 通过 Graph API 发送文本消息
type WhatsAppBusiness struct {
	orchestrator.Descriptor
	cfg     orchestrator.ProviderConfig
	client  *httpc.Client
	base    string
	phoneID string
}

func NewWhatsAppBusiness(cfg orchestrator.ProviderConfig) *WhatsAppBusiness {
	return &WhatsAppBusiness{
		Descriptor: orchestrator.NewDescriptor("whatsapp-business", false, sendOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://graph.facebook.com/v19.0"),
		phoneID:    cfg.String("phone_id", ""),
	}
}

func (w *WhatsAppBusiness) SendMessage(ctx context.Context, in orchestrator.MessageIn) (*orchestrator.MessageOut, error) {
	if w.phoneID == "" {
		return nil, errors.New("whatsapp-business: phone_id not configured")
	}
	j, err := w.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     w.base + "/" + url.PathEscape(w.phoneID) + "/messages",
		Headers: kit.Bearer(w.cfg.APIKey),
		JSON: map[string]any{
			"messaging_product": "whatsapp",
			"to":                in.Target,
			"type":              "text",
			"text":              map[string]any{"body": in.Body},
		},
	})
	if err != nil {
		return nil, err
	}
	return sent(httpc.Dig(j, "messages", 0, "id"), j), nil
}

// Twilio 短信，表单编码 + Basic 鉴权
type Twilio struct {
	orchestrator.Descriptor
	cfg    orchestrator.ProviderConfig
	client *httpc.Client
	base   string
	sid    string
	from   string
}

func NewTwilio(cfg orchestrator.ProviderConfig) *Twilio {
	sid := cfg.String("sid", "")
	return &Twilio{
		Descriptor: orchestrator.NewDescriptor("twilio", false, sendOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://api.twilio.com/2010-04-01/Accounts/" + url.PathEscape(sid)),
		sid:        sid,
		from:       cfg.String("from", ""),
	}
}

func (t *Twilio) SendMessage(ctx context.Context, in orchestrator.MessageIn) (*orchestrator.MessageOut, error) {
	j, err := t.client.JSON(ctx, httpc.Request{
		Method:    http.MethodPost,
		URL:       t.base + "/Messages.json",
		BasicUser: t.sid,
		BasicPass: t.cfg.APIKey,
		Form:      map[string]string{"To": in.Target, "From": t.from, "Body": in.Body},
	})
	if err != nil {
		return nil, err
	}
	return sent(j["sid"], j), nil
}

// Matrix 向房间发送 m.text 事件；事务号为 UUID，保证重放幂等
type Matrix struct {
	orchestrator.Descriptor
	cfg    orchestrator.ProviderConfig
	client *httpc.Client
	base   string
	txnID  func() string
}

func NewMatrix(cfg orchestrator.ProviderConfig) *Matrix {
	return &Matrix{
		Descriptor: orchestrator.NewDescriptor("matrix", true, sendOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("https://matrix.org"),
		txnID:      uuid.NewString,
	}
}

func (m *Matrix) SendMessage(ctx context.Context, in orchestrator.MessageIn) (*orchestrator.MessageOut, error) {
	j, err := m.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPut,
		URL:     m.base + "/_matrix/client/v3/rooms/" + url.PathEscape(in.Target) + "/send/m.room.message/" + m.txnID(),
		Headers: kit.Bearer(m.cfg.APIKey),
		JSON:    map[string]any{"msgtype": "m.text", "body": in.Body},
	})
	if err != nil {
		return nil, err
	}
	return sent(j["event_id"], j), nil
}

// Mattermost 向频道发帖
type Mattermost struct {
	orchestrator.Descriptor
	cfg    orchestrator.ProviderConfig
	client *httpc.Client
	base   string
}

func NewMattermost(cfg orchestrator.ProviderConfig) *Mattermost {
	return &Mattermost{
		Descriptor: orchestrator.NewDescriptor("mattermost", true, sendOps),
		cfg:        cfg,
		client:     kit.HTTP(cfg),
		base:       cfg.Base("http://localhost:8065"),
	}
}

func (m *Mattermost) SendMessage(ctx context.Context, in orchestrator.MessageIn) (*orchestrator.MessageOut, error) {
	j, err := m.client.JSON(ctx, httpc.Request{
		Method:  http.MethodPost,
		URL:     m.base + "/api/v4/posts",
		Headers: kit.Bearer(m.cfg.APIKey),
		JSON:    map[string]any{"channel_id": in.Target, "message": in.Body},
	})
	if err != nil {
		return nil, err
	}
	return sent(j["id"], j), nil
}
