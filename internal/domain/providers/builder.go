package providers

import (
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"
	"gorm.io/gorm"

	"beatrice-server-go/internal/domain/eventbus"
	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers/database"
	"beatrice-server-go/internal/domain/providers/memory"
	"beatrice-server-go/internal/domain/providers/messaging"
	"beatrice-server-go/internal/domain/providers/objectstore"
	"beatrice-server-go/internal/domain/providers/rag"
	"beatrice-server-go/internal/domain/providers/tools"
	"beatrice-server-go/internal/domain/providers/voice"
	"beatrice-server-go/internal/platform/config"
	"beatrice-server-go/internal/platform/httpc"
)

// Dependencies are the pre-connected handles adapters may need. Nil fields
// simply leave the matching providers unregistered.
type Dependencies struct {
	HTTP *httpc.Client
	// DB is the service database; only sqlite-memory writes to it.
	DB *gorm.DB
	// SQLite is the user data file behind the sqlite db provider.
	SQLite         *gorm.DB
	Redis          redis.Cmdable
	PostgresNeon   database.Querier
	PostgresLocal  database.Querier
	MCP            *tools.MCPSession
	LocalFunctions map[string]tools.Func
	// FunctionTools are the declarations handed to openai-functions.
	FunctionTools []openai.Tool
}

type gate func(s config.ProviderSettings, d Dependencies) bool

func always(config.ProviderSettings, Dependencies) bool { return true }

func hasKey(s config.ProviderSettings, _ Dependencies) bool { return s.APIKey != "" }

func hasBase(s config.ProviderSettings, _ Dependencies) bool { return s.BaseURL != "" }

func hasKeyAndBase(s config.ProviderSettings, _ Dependencies) bool {
	return s.APIKey != "" && s.BaseURL != ""
}

func hasKeyAnd(extras ...string) gate {
	return func(s config.ProviderSettings, _ Dependencies) bool {
		if s.APIKey == "" {
			return false
		}
		for _, k := range extras {
			if s.Get(k, "") == "" {
				return false
			}
		}
		return true
	}
}

// factory builds one named provider when its gate passes.
type factory struct {
	name   string
	gate   gate
	client func(d Dependencies) any
	build  func(b *Builder, cfg orchestrator.ProviderConfig) orchestrator.Provider
}

func httpClient(d Dependencies) any {
	if d.HTTP == nil {
		return nil
	}
	return d.HTTP
}

func adapt[P orchestrator.Provider](fn func(orchestrator.ProviderConfig) P) func(*Builder, orchestrator.ProviderConfig) orchestrator.Provider {
	return func(_ *Builder, cfg orchestrator.ProviderConfig) orchestrator.Provider { return fn(cfg) }
}

// factories is in registration order; it mirrors config.KnownProviders.
var factories = []factory{
	{"cartesia", hasKey, httpClient, adapt(voice.NewCartesia)},
	{"elevenlabs", hasKey, httpClient, adapt(voice.NewElevenLabs)},
	{"coqui-xtts", hasBase, httpClient, adapt(voice.NewCoquiXTTS)},
	{"piper", hasBase, httpClient, adapt(voice.NewPiper)},
	{"edge-tts", always, nil, adapt(voice.NewEdgeTTS)},
	{"openai-tts", hasKey, nil, adapt(voice.NewOpenAITTS)},
	{"deepgram", hasKey, httpClient, adapt(voice.NewDeepgram)},
	{"assemblyai", hasKey, httpClient, adapt(voice.NewAssemblyAI)},
	{"vosk", hasBase, httpClient, adapt(voice.NewVosk)},
	{"faster-whisper", hasBase, httpClient, adapt(voice.NewFasterWhisper)},
	{"openai-whisper", hasKey, httpClient, adapt(voice.NewOpenAIWhisper)},

	{"whatsapp-business", hasKeyAnd("phone_id"), httpClient, adapt(messaging.NewWhatsAppBusiness)},
	{"twilio", hasKeyAnd("sid", "from"), httpClient, adapt(messaging.NewTwilio)},
	{"matrix", hasKeyAndBase, httpClient, adapt(messaging.NewMatrix)},
	{"mattermost", hasKeyAndBase, httpClient, adapt(messaging.NewMattermost)},

	{"firestore", always, httpClient, adapt(database.NewFirestore)},
	{"postgres-neon", func(_ config.ProviderSettings, d Dependencies) bool { return d.PostgresNeon != nil },
		func(d Dependencies) any { return d.PostgresNeon }, adapt(database.NewPostgresNeon)},
	{"postgres-local", func(_ config.ProviderSettings, d Dependencies) bool { return d.PostgresLocal != nil },
		func(d Dependencies) any { return d.PostgresLocal }, adapt(database.NewPostgresLocal)},
	{"sqlite", func(_ config.ProviderSettings, d Dependencies) bool { return d.SQLite != nil },
		func(d Dependencies) any { return d.SQLite }, adapt(database.NewSQLite)},

	{"s3", always, httpClient, adapt(objectstore.NewS3)},
	{"minio", always, httpClient, adapt(objectstore.NewMinIO)},
	{"firebase-storage", always, httpClient, adapt(objectstore.NewFirebaseStorage)},
	{"local-fs", always, httpClient, adapt(objectstore.NewLocalFS)},

	{"openai-embeddings", hasKey, nil, adapt(rag.NewOpenAIEmbeddings)},
	{"pinecone", hasKeyAndBase, httpClient, adapt(rag.NewPinecone)},
	{"weaviate-cloud", hasKeyAndBase, httpClient, adapt(rag.NewWeaviateCloud)},
	{"faiss", hasBase, httpClient, adapt(rag.NewFAISS)},
	{"qdrant", hasBase, httpClient, adapt(rag.NewQdrant)},
	{"embedded-vectors", always, nil, func(b *Builder, _ orchestrator.ProviderConfig) orchestrator.Provider { return b.vectors() }},

	{"notion-memory", hasKeyAnd("db"), httpClient, adapt(memory.NewNotionMemory)},
	{"redis-memory", func(_ config.ProviderSettings, d Dependencies) bool { return d.Redis != nil },
		func(d Dependencies) any { return d.Redis }, adapt(memory.NewRedisMemory)},
	{"sqlite-memory", hasDB, dbHandle, adapt(memory.NewSQLiteMemory)},
	{"json-memory", hasBase, httpClient, adapt(memory.NewJSONMemory)},
	{"in-memory", always, nil, func(b *Builder, cfg orchestrator.ProviderConfig) orchestrator.Provider { return b.memoryStore(cfg) }},

	{"openai-functions", hasKey, nil, adapt(tools.NewOpenAIFunctions)},
	{"zapier-nla", hasKey, httpClient, adapt(tools.NewZapierNLA)},
	{"http-tool", always, httpClient, adapt(tools.NewHTTPTool)},
	{"local-fn", always, nil, adapt(tools.NewLocalFunctions)},
	{"mcp-client", func(_ config.ProviderSettings, d Dependencies) bool { return d.MCP != nil },
		func(d Dependencies) any { return d.MCP }, adapt(tools.NewMCPClient)},
}

func hasDB(_ config.ProviderSettings, d Dependencies) bool { return d.DB != nil }

func dbHandle(d Dependencies) any { return d.DB }

// Builder turns provider settings into registry contents.
type Builder struct {
	deps   Dependencies
	logger orchestrator.Logger
	events orchestrator.Publisher

	// 进程内存储跨重建保留
	mu       sync.Mutex
	inMemory *memory.InMemory
	embedded *rag.EmbeddedVectors
}

// NewBuilder creates a builder; logger and events may be nil.
func NewBuilder(deps Dependencies, logger orchestrator.Logger, events orchestrator.Publisher) *Builder {
	return &Builder{deps: deps, logger: logger, events: events}
}

func (b *Builder) memoryStore(cfg orchestrator.ProviderConfig) *memory.InMemory {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inMemory == nil {
		b.inMemory = memory.NewInMemory(cfg)
	}
	return b.inMemory
}

func (b *Builder) vectors() *rag.EmbeddedVectors {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.embedded == nil {
		b.embedded = rag.NewEmbeddedVectors(orchestrator.ProviderConfig{})
	}
	return b.embedded
}

// providerConfig maps persisted settings onto the adapter config record.
func providerConfig(s config.ProviderSettings, client any) orchestrator.ProviderConfig {
	extra := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		extra[k] = v
	}
	if s.Model != "" {
		extra["model"] = s.Model
	}
	if s.Voice != "" {
		extra["voice"] = s.Voice
	}
	return orchestrator.ProviderConfig{
		BaseURL: strings.TrimSpace(s.BaseURL),
		APIKey:  strings.TrimSpace(s.APIKey),
		Region:  s.Region,
		Client:  client,
		Extra:   extra,
	}
}

// Build constructs every provider whose settings and dependencies allow it.
func (b *Builder) Build(settings map[string]config.ProviderSettings) []orchestrator.Provider {
	built := make([]orchestrator.Provider, 0, len(factories))
	byName := make(map[string]orchestrator.Provider, len(factories))
	for _, f := range factories {
		s := settings[f.name]
		if s.Disabled || !f.gate(s, b.deps) {
			continue
		}
		var client any
		if f.client != nil {
			client = f.client(b.deps)
		}
		cfg := providerConfig(s, client)
		b.wireExtras(f.name, s, cfg, byName)

		p := f.build(b, cfg)
		built = append(built, p)
		byName[f.name] = p
	}
	return built
}

// wireExtras injects the non-string extras some adapters take.
func (b *Builder) wireExtras(name string, s config.ProviderSettings, cfg orchestrator.ProviderConfig, built map[string]orchestrator.Provider) {
	switch name {
	case "pinecone", "weaviate-cloud":
		if ref := s.Get("embedder", ""); ref != "" {
			if e, ok := built[ref].(orchestrator.Embedder); ok {
				cfg.Extra["embedder"] = e
			} else if b.logger != nil {
				b.logger.WarnTag("MCP", "%s 的 embedder %q 不可用，使用占位向量", name, ref)
			}
		}
	case "local-fn":
		if len(b.deps.LocalFunctions) > 0 {
			cfg.Extra["functions"] = b.deps.LocalFunctions
		}
	case "openai-functions":
		if len(b.deps.FunctionTools) > 0 {
			cfg.Extra["tools"] = b.deps.FunctionTools
		}
	}
}

// Rebuild swaps the registry contents for a fresh build of cfg, validates the
// preference lists against it and returns the warnings.
func (b *Builder) Rebuild(reg *orchestrator.Registry, cfg *config.Config, reason string) []orchestrator.Warning {
	built := b.Build(cfg.Providers)
	reg.Replace(built...)

	warnings := orchestrator.ValidatePreferences(reg, cfg.Preferences.ByCapability())
	names := reg.Names()
	if b.logger != nil {
		b.logger.InfoTag("MCP", "注册表已重建(%s): %d 个提供者 [%s]", reason, len(names), strings.Join(names, ", "))
		orchestrator.LogWarnings(b.logger, warnings)
	}
	if b.events != nil {
		b.events.Publish(eventbus.TopicRegistryRebuilt, eventbus.RegistryRebuiltEvent{
			Providers: names,
			Warnings:  len(warnings),
			Reason:    reason,
		})
	}
	return warnings
}

// Close stops background work owned by builder-held stores.
func (b *Builder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inMemory != nil {
		return b.inMemory.Close()
	}
	return nil
}
