package config

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
			Auth: AuthConfig{
				Enabled: false,
				Issuer:  "beatrice-server",
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			StaticDir:    "./web",
			AllowOrigins: []string{"*"},
			SessionPath:  "/ws/session",
		},
		Database: DatabaseConfig{
			Path: "data/beatrice.db",
		},
		Redis: RedisConfig{
			Prefix: "beatrice:mem:",
		},
		Preferences: PreferencesConfig{
			TTS:        []string{"cartesia", "elevenlabs", "edge-tts", "piper"},
			STT:        []string{"deepgram", "openai-whisper", "faster-whisper", "vosk"},
			VoiceClone: []string{"cartesia", "elevenlabs", "coqui-xtts"},
			Messaging:  []string{"whatsapp-business", "twilio", "matrix", "mattermost"},
			DB:         []string{"postgres-neon", "sqlite"},
			Storage:    []string{"s3", "local-fs"},
			Embed:      []string{"openai-embeddings", "faiss"},
			RAG:        []string{"pinecone", "qdrant", "embedded-vectors"},
			Memory:     []string{"redis-memory", "sqlite-memory", "in-memory"},
			Tools:      []string{"local-fn", "mcp-client", "http-tool"},
		},
		Providers: map[string]ProviderSettings{
			"elevenlabs":     {Model: "eleven_multilingual_v2"},
			"coqui-xtts":     {BaseURL: "http://localhost:8020"},
			"piper":          {BaseURL: "http://localhost:5002", Voice: "en_US-amy-low"},
			"edge-tts":       {Voice: "en-US-AriaNeural"},
			"vosk":           {BaseURL: "http://localhost:8009"},
			"faster-whisper": {BaseURL: "http://localhost:8010"},
			"matrix":         {BaseURL: "https://matrix.org"},
			"mattermost":     {BaseURL: "http://localhost:8065"},
			"faiss":          {BaseURL: "http://localhost:8900"},
			"qdrant":         {BaseURL: "http://localhost:6333"},
			"json-memory":    {BaseURL: "http://localhost:8787"},
			"local-fs":       {Extra: map[string]string{"root": "data/files"}},
			"openai-functions": {
				Model: "gpt-4o-mini",
			},
			"openai-tts":        {Model: "tts-1", Voice: "alloy"},
			"openai-whisper":    {Model: "whisper-1"},
			"openai-embeddings": {Model: "text-embedding-3-small"},
		},
	}
}
