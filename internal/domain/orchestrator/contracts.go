package orchestrator

// Meta carries opaque, backend-specific diagnostics. Never part of the contract.
type Meta = map[string]any

type VoiceCloneIn struct {
	AudioURLs    []string `json:"audioUrls,omitempty"`
	AudioBase64s []string `json:"audioBase64s,omitempty"`
	VoiceName    string   `json:"voiceName,omitempty"`
}

type VoiceCloneOut struct {
	VoiceID string `json:"voice_id"`
	Meta    Meta   `json:"meta,omitempty"`
}

type SpeakIn struct {
	Text      string  `json:"text"`
	VoiceID   string  `json:"voice_id,omitempty"`
	VoiceName string  `json:"voice_name,omitempty"`
	Lang      string  `json:"lang,omitempty"`
	Style     string  `json:"style,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Format    string  `json:"format,omitempty"` // mp3 | wav | ogg
}

type SpeakOut struct {
	AudioURL         string   `json:"audioUrl,omitempty"`
	AudioBytesBase64 string   `json:"audioBytesBase64,omitempty"`
	DurationSec      *float64 `json:"durationSec,omitempty"`
	Meta             Meta     `json:"meta,omitempty"`
}

type TranscribeIn struct {
	AudioURL         string `json:"audioUrl,omitempty"`
	AudioBytesBase64 string `json:"audioBytesBase64,omitempty"`
	Lang             string `json:"lang,omitempty"`
	Diarize          bool   `json:"diarize,omitempty"`
	Timestamps       bool   `json:"timestamps,omitempty"`
}

type WordTiming struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

type TranscribeOut struct {
	Text  string       `json:"text"`
	Words []WordTiming `json:"words,omitempty"`
	Meta  Meta         `json:"meta,omitempty"`
}

// MessageStatus 消息投递状态
type MessageStatus string

const (
	MessageQueued MessageStatus = "queued"
	MessageSent   MessageStatus = "sent"
	MessageFailed MessageStatus = "failed"
)

type MessageIn struct {
	Target string `json:"target"`
	Body   string `json:"body"`
	Meta   Meta   `json:"meta,omitempty"`
}

type MessageOut struct {
	ID     string        `json:"id,omitempty"`
	Status MessageStatus `json:"status"`
	Raw    any           `json:"raw,omitempty"`
}

// DBQueryIn holds either a raw SQL statement or a document-store address.
type DBQueryIn struct {
	SQL        string         `json:"sql,omitempty"`
	Params     []any          `json:"params,omitempty"`
	Collection string         `json:"collection,omitempty"`
	DocID      string         `json:"docId,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

type DBQueryOut struct {
	Rows     []map[string]any `json:"rows,omitempty"`
	RowCount *int64           `json:"rowCount,omitempty"`
	Ack      bool             `json:"ack,omitempty"`
	Meta     Meta             `json:"meta,omitempty"`
}

type StoragePutIn struct {
	Path        string `json:"path"`
	BytesBase64 string `json:"bytesBase64,omitempty"`
	URLFetch    string `json:"urlFetch,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Public      bool   `json:"public,omitempty"`
}

type StoragePutOut struct {
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
	ETag string `json:"etag,omitempty"`
	Size *int64 `json:"size,omitempty"`
	Meta Meta   `json:"meta,omitempty"`
}

type StorageGetIn struct {
	Path  string `json:"path"`
	AsURL bool   `json:"asUrl,omitempty"`
}

type StorageGetOut struct {
	BytesBase64 string `json:"bytesBase64,omitempty"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Size        *int64 `json:"size,omitempty"`
	Meta        Meta   `json:"meta,omitempty"`
}

type EmbedIn struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type EmbedOut struct {
	Vectors [][]float64 `json:"vectors"`
	Dim     int         `json:"dim"`
	Meta    Meta        `json:"meta,omitempty"`
}

type UpsertIn struct {
	IDs       []string         `json:"ids"`
	Vectors   [][]float64      `json:"vectors"`
	Metadata  []map[string]any `json:"metadata,omitempty"`
	Namespace string           `json:"namespace,omitempty"`
}

type UpsertOut struct {
	Upserted int  `json:"upserted"`
	Meta     Meta `json:"meta,omitempty"`
}

type SearchIn struct {
	QueryVector []float64      `json:"queryVector,omitempty"`
	QueryText   string         `json:"queryText,omitempty"`
	TopK        int            `json:"topK,omitempty"`
	Filter      map[string]any `json:"filter,omitempty"`
	Namespace   string         `json:"namespace,omitempty"`
}

type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type SearchOut struct {
	Matches []Match `json:"matches"`
	Meta    Meta    `json:"meta,omitempty"`
}

// MemoryScope 记忆作用域
type MemoryScope string

const (
	ScopeUser    MemoryScope = "user"
	ScopeSession MemoryScope = "session"
	ScopeGlobal  MemoryScope = "global"
)

// Valid reports whether s is one of the three scopes.
func (s MemoryScope) Valid() bool {
	return s == ScopeUser || s == ScopeSession || s == ScopeGlobal
}

// StoreKey is the "scope:key" form used by key-value backends.
func StoreKey(scope MemoryScope, key string) string {
	return string(scope) + ":" + key
}

type MemoryNoteIn struct {
	Scope  MemoryScope `json:"scope"`
	Key    string      `json:"key"`
	Value  any         `json:"value"`
	TTLSec int         `json:"ttlSec,omitempty"`
}

type MemoryNoteOut struct {
	OK   bool `json:"ok"`
	Meta Meta `json:"meta,omitempty"`
}

type MemoryReadIn struct {
	Scope MemoryScope `json:"scope"`
	Key   string      `json:"key"`
}

type MemoryReadOut struct {
	Value any  `json:"value,omitempty"`
	Found bool `json:"found"`
	Meta  Meta `json:"meta,omitempty"`
}

type ToolCallIn struct {
	Name       string         `json:"name"`
	Args       map[string]any `json:"args,omitempty"`
	Endpoint   string         `json:"endpoint,omitempty"`
	AuthHeader string         `json:"authHeader,omitempty"`
	Method     string         `json:"method,omitempty"` // GET | POST
}

type ToolCallOut struct {
	Result any  `json:"result,omitempty"`
	Raw    any  `json:"raw,omitempty"`
	Meta   Meta `json:"meta,omitempty"`
}
