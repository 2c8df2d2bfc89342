package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"beatrice-server-go/internal/platform/errors"
)

const (
	// DefaultPath is read from the working directory when BEATRICE_CONFIG is unset.
	DefaultPath = ".config.yaml"
	envPrefix   = "BEATRICE_"
)

// Loader reads the YAML configuration file and applies environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader for the default config path.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the config file location.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides the environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
	// FromFile is false when no config file existed and defaults were used.
	FromFile bool
}

// Load reads defaults, then the YAML file (if present), then environment overrides.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("未找到 .env 文件，使用系统环境变量")
		}
	}

	path := l.path
	if path == "" {
		if v, ok := l.lookupEnv(envPrefix + "CONFIG"); ok && strings.TrimSpace(v) != "" {
			path = v
		} else {
			path = DefaultPath
		}
	}

	cfg := DefaultConfig()
	fromFile := false
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.parse", "failed to parse "+path, err)
		}
		fromFile = true
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(errors.KindConfig, "config.read", "failed to read "+path, err)
	}

	l.applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path, FromFile: fromFile}, nil
}

// applyEnv maps BEATRICE_<PROVIDER>_API_KEY / _BASE_URL onto provider settings,
// plus a handful of server-level overrides.
func (l *Loader) applyEnv(cfg *Config) {
	if v, ok := l.env("SERVER_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := l.env("JWT_SECRET"); ok {
		cfg.Server.Auth.Secret = v
		cfg.Server.Auth.Enabled = true
	}
	if v, ok := l.env("REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := l.env("POSTGRES_NEON_DSN"); ok {
		cfg.Postgres.NeonDSN = v
	}
	if v, ok := l.env("POSTGRES_LOCAL_DSN"); ok {
		cfg.Postgres.LocalDSN = v
	}

	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderSettings{}
	}
	for _, name := range KnownProviders {
		key := envKey(name)
		settings := cfg.Providers[name]
		changed := false
		if v, ok := l.env(key + "_API_KEY"); ok {
			settings.APIKey = v
			changed = true
		}
		if v, ok := l.env(key + "_BASE_URL"); ok {
			settings.BaseURL = v
			changed = true
		}
		if changed {
			cfg.Providers[name] = settings
		}
	}
}

func (l *Loader) env(suffix string) (string, bool) {
	v, ok := l.lookupEnv(envPrefix + suffix)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envKey(provider string) string {
	return strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
}

// Validate checks ports and preference entries.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.KindConfig, "config.validate", "config is nil")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.Newf(errors.KindConfig, "config.validate", "invalid server port %d", cfg.Server.Port)
	}
	if cfg.Server.Auth.Enabled && cfg.Server.Auth.Secret == "" {
		return errors.New(errors.KindConfig, "config.validate", "server.auth.secret is required when auth is enabled")
	}
	for capability, names := range cfg.Preferences.ByCapability() {
		for i, name := range names {
			if strings.TrimSpace(name) == "" {
				return errors.Newf(errors.KindConfig, "config.validate", "preferences.%s[%d] is empty", capability, i)
			}
		}
	}
	return nil
}

// ByCapability exposes the preference lists keyed by their YAML names.
func (p PreferencesConfig) ByCapability() map[string][]string {
	return map[string][]string{
		"tts":         p.TTS,
		"stt":         p.STT,
		"voice_clone": p.VoiceClone,
		"messaging":   p.Messaging,
		"db":          p.DB,
		"storage":     p.Storage,
		"embed":       p.Embed,
		"rag":         p.RAG,
		"memory":      p.Memory,
		"tools":       p.Tools,
	}
}

// KnownProviders lists every provider name the builder understands.
var KnownProviders = []string{
	"cartesia", "elevenlabs", "coqui-xtts", "piper", "edge-tts", "openai-tts",
	"deepgram", "assemblyai", "vosk", "faster-whisper", "openai-whisper",
	"whatsapp-business", "twilio", "matrix", "mattermost",
	"firestore", "postgres-neon", "postgres-local", "sqlite",
	"s3", "minio", "firebase-storage", "local-fs",
	"pinecone", "weaviate-cloud", "faiss", "qdrant", "openai-embeddings", "embedded-vectors",
	"notion-memory", "redis-memory", "sqlite-memory", "json-memory", "in-memory",
	"openai-functions", "zapier-nla", "http-tool", "local-fn", "mcp-client",
}
