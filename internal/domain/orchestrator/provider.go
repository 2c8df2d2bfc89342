package orchestrator

import (
	"context"
	"slices"
	"strings"
)

// Provider is one backend adapter. The declared operation set is fixed at
// construction; the facades consult it before any call.
type Provider interface {
	Name() string
	Kinds() []Kind
	IsOpenSource() bool
	Operations() OperationSet
}

type VoiceCloner interface {
	Provider
	CloneVoice(ctx context.Context, in VoiceCloneIn) (*VoiceCloneOut, error)
}

type Speaker interface {
	Provider
	Speak(ctx context.Context, in SpeakIn) (*SpeakOut, error)
}

type Transcriber interface {
	Provider
	Transcribe(ctx context.Context, in TranscribeIn) (*TranscribeOut, error)
}

type MessageSender interface {
	Provider
	SendMessage(ctx context.Context, in MessageIn) (*MessageOut, error)
}

type DBExecutor interface {
	Provider
	Exec(ctx context.Context, in DBQueryIn) (*DBQueryOut, error)
}

type ObjectPutter interface {
	Provider
	PutObject(ctx context.Context, in StoragePutIn) (*StoragePutOut, error)
}

type ObjectGetter interface {
	Provider
	GetObject(ctx context.Context, in StorageGetIn) (*StorageGetOut, error)
}

type Embedder interface {
	Provider
	Embed(ctx context.Context, in EmbedIn) (*EmbedOut, error)
}

type Upserter interface {
	Provider
	Upsert(ctx context.Context, in UpsertIn) (*UpsertOut, error)
}

type Searcher interface {
	Provider
	Search(ctx context.Context, in SearchIn) (*SearchOut, error)
}

type MemoryNoter interface {
	Provider
	Note(ctx context.Context, in MemoryNoteIn) (*MemoryNoteOut, error)
}

type MemoryReader interface {
	Provider
	Read(ctx context.Context, in MemoryReadIn) (*MemoryReadOut, error)
}

type ToolCaller interface {
	Provider
	CallTool(ctx context.Context, in ToolCallIn) (*ToolCallOut, error)
}

// Descriptor implements the identity half of Provider; adapters embed it.
type Descriptor struct {
	name       string
	openSource bool
	ops        OperationSet
	kinds      []Kind
}

// NewDescriptor declares a provider. Kinds are derived from the operation set.
func NewDescriptor(name string, openSource bool, ops OperationSet) Descriptor {
	return Descriptor{
		name:       name,
		openSource: openSource,
		ops:        ops,
		kinds:      ops.Kinds(),
	}
}

func (d Descriptor) Name() string             { return d.name }
func (d Descriptor) Kinds() []Kind            { return slices.Clone(d.kinds) }
func (d Descriptor) IsOpenSource() bool       { return d.openSource }
func (d Descriptor) Operations() OperationSet { return d.ops }

// HasKind reports whether p declares k.
func HasKind(p Provider, k Kind) bool {
	return slices.Contains(p.Kinds(), k)
}

// ProviderConfig is the construction record shared by every adapter.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Region  string
	// Client is a pre-connected backend handle (*gorm.DB, *redis.Client, *pgxpool.Pool, ...).
	Client any
	Extra  map[string]any
}

// Base returns BaseURL without a trailing slash, or def when unset.
func (c ProviderConfig) Base(def string) string {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = def
	}
	return strings.TrimRight(base, "/")
}

// String returns Extra[key] as a string, or def when unset or not a string.
func (c ProviderConfig) String(key, def string) string {
	if v, ok := c.Extra[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Value returns the raw Extra entry.
func (c ProviderConfig) Value(key string) (any, bool) {
	v, ok := c.Extra[key]
	return v, ok
}

// Info is the listing shape of a provider.
type Info struct {
	Name       string       `json:"name"`
	Kinds      []Kind       `json:"kinds"`
	OpenSource bool         `json:"open_source"`
	Operations OperationSet `json:"operations"`
}

// Describe returns the listing shape of p.
func Describe(p Provider) Info {
	return Info{
		Name:       p.Name(),
		Kinds:      p.Kinds(),
		OpenSource: p.IsOpenSource(),
		Operations: p.Operations(),
	}
}
