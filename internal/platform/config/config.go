package config

import (
	"slices"
	"strings"
)

type Config struct {
	Server      ServerConfig                `yaml:"server" json:"server"`
	Log         LogConfig                   `yaml:"log" json:"log"`
	Web         WebConfig                   `yaml:"web" json:"web"`
	Database    DatabaseConfig              `yaml:"database" json:"database"`
	Redis       RedisConfig                 `yaml:"redis" json:"redis"`
	Postgres    PostgresConfig              `yaml:"postgres" json:"postgres"`
	MCP         MCPConfig                   `yaml:"mcp" json:"mcp"`
	Preferences PreferencesConfig           `yaml:"preferences" json:"preferences"`
	Providers   map[string]ProviderSettings `yaml:"providers" json:"providers"`
}

type ServerConfig struct {
	IP   string     `yaml:"ip" json:"ip"`
	Port int        `yaml:"port" json:"port"`
	Auth AuthConfig `yaml:"auth" json:"auth"`
}

// AuthConfig 控制 HTTP API 的 Bearer 鉴权
type AuthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Secret  string `yaml:"secret" json:"-"`
	Issuer  string `yaml:"issuer" json:"issuer"`
}

type LogConfig struct {
	Level string `yaml:"log_level" json:"log_level"`
	Dir   string `yaml:"log_dir" json:"log_dir"`
	File  string `yaml:"log_file" json:"log_file"`
	// Observability 打开 span / metric 调试日志
	Observability bool `yaml:"observability" json:"observability"`
}

type WebConfig struct {
	StaticDir    string   `yaml:"static_dir" json:"static_dir"`
	AllowOrigins []string `yaml:"allow_origins" json:"allow_origins"`
	SessionPath  string   `yaml:"session_path" json:"session_path"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

type PostgresConfig struct {
	NeonDSN  string `yaml:"neon_dsn" json:"-"`
	LocalDSN string `yaml:"local_dsn" json:"-"`
}

// MCPConfig 描述通过 stdio 启动的外部 MCP 工具服务
type MCPConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args" json:"args"`
	Env     []string `yaml:"env" json:"env"`
}

// PreferencesConfig 每种能力的默认候选顺序
type PreferencesConfig struct {
	TTS        []string `yaml:"tts" json:"tts"`
	STT        []string `yaml:"stt" json:"stt"`
	VoiceClone []string `yaml:"voice_clone" json:"voice_clone"`
	Messaging  []string `yaml:"messaging" json:"messaging"`
	DB         []string `yaml:"db" json:"db"`
	Storage    []string `yaml:"storage" json:"storage"`
	Embed      []string `yaml:"embed" json:"embed"`
	RAG        []string `yaml:"rag" json:"rag"`
	Memory     []string `yaml:"memory" json:"memory"`
	Tools      []string `yaml:"tools" json:"tools"`
}

// ProviderSettings 单个提供者的构造参数
type ProviderSettings struct {
	Disabled bool              `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	BaseURL  string            `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey   string            `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Region   string            `yaml:"region,omitempty" json:"region,omitempty"`
	Model    string            `yaml:"model,omitempty" json:"model,omitempty"`
	Voice    string            `yaml:"voice,omitempty" json:"voice,omitempty"`
	Extra    map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Get returns the extra value for key, or def when unset.
func (p ProviderSettings) Get(key, def string) string {
	if v := strings.TrimSpace(p.Extra[key]); v != "" {
		return v
	}
	return def
}

// Provider returns the settings registered under name; the zero value when absent.
func (c *Config) Provider(name string) ProviderSettings {
	if c == nil || c.Providers == nil {
		return ProviderSettings{}
	}
	return c.Providers[name]
}

// Clone returns a deep copy safe to mutate.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Web.AllowOrigins = slices.Clone(c.Web.AllowOrigins)
	out.MCP.Args = slices.Clone(c.MCP.Args)
	out.MCP.Env = slices.Clone(c.MCP.Env)
	out.Preferences = c.Preferences.Clone()
	out.Providers = make(map[string]ProviderSettings, len(c.Providers))
	for name, settings := range c.Providers {
		settings.Extra = cloneStrings(settings.Extra)
		out.Providers[name] = settings
	}
	return &out
}

// Clone returns a deep copy of every preference list.
func (p PreferencesConfig) Clone() PreferencesConfig {
	return PreferencesConfig{
		TTS:        slices.Clone(p.TTS),
		STT:        slices.Clone(p.STT),
		VoiceClone: slices.Clone(p.VoiceClone),
		Messaging:  slices.Clone(p.Messaging),
		DB:         slices.Clone(p.DB),
		Storage:    slices.Clone(p.Storage),
		Embed:      slices.Clone(p.Embed),
		RAG:        slices.Clone(p.RAG),
		Memory:     slices.Clone(p.Memory),
		Tools:      slices.Clone(p.Tools),
	}
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
