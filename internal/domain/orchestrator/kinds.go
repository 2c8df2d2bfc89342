package orchestrator

import (
	"encoding/json"
	"strings"
)

// Kind 能力类别
type Kind string

const (
	KindSTT        Kind = "stt"
	KindTTS        Kind = "tts"
	KindVoiceClone Kind = "voice-clone"
	KindMessaging  Kind = "messaging"
	KindDB         Kind = "db"
	KindStorage    Kind = "storage"
	KindRAG        Kind = "rag"
	KindMemory     Kind = "memory"
	KindTools      Kind = "tools"
)

// AllKinds lists every capability kind in display order.
var AllKinds = []Kind{
	KindSTT, KindTTS, KindVoiceClone, KindMessaging, KindDB,
	KindStorage, KindRAG, KindMemory, KindTools,
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, k := range AllKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Operation 单个门面操作
type Operation string

const (
	OpVoiceClone Operation = "voice.clone"
	OpSpeak      Operation = "voice.speak"
	OpTranscribe Operation = "voice.transcribe"
	OpSend       Operation = "messaging.send"
	OpDBExec     Operation = "db.exec"
	OpStoragePut Operation = "storage.put"
	OpStorageGet Operation = "storage.get"
	OpEmbed      Operation = "rag.embed"
	OpUpsert     Operation = "rag.upsert"
	OpSearch     Operation = "rag.search"
	OpMemoryNote Operation = "memory.note"
	OpMemoryRead Operation = "memory.read"
	OpToolCall   Operation = "tools.call"
)

type operationInfo struct {
	bit   OperationSet
	kind  Kind
	label string // used in the exhaustion message
}

// AllOperations lists every operation; index order defines OperationSet bits.
var AllOperations = []Operation{
	OpVoiceClone, OpSpeak, OpTranscribe, OpSend, OpDBExec,
	OpStoragePut, OpStorageGet, OpEmbed, OpUpsert, OpSearch,
	OpMemoryNote, OpMemoryRead, OpToolCall,
}

var operations = func() map[Operation]operationInfo {
	kinds := map[Operation]Kind{
		OpVoiceClone: KindVoiceClone, OpSpeak: KindTTS, OpTranscribe: KindSTT,
		OpSend: KindMessaging, OpDBExec: KindDB,
		OpStoragePut: KindStorage, OpStorageGet: KindStorage,
		OpEmbed: KindRAG, OpUpsert: KindRAG, OpSearch: KindRAG,
		OpMemoryNote: KindMemory, OpMemoryRead: KindMemory, OpToolCall: KindTools,
	}
	labels := map[Operation]string{
		OpVoiceClone: "voice clone", OpSpeak: "TTS", OpTranscribe: "STT",
		OpSend: "messaging", OpDBExec: "DB",
		OpStoragePut: "Storage.put", OpStorageGet: "Storage.get",
		OpEmbed: "RAG.embed", OpUpsert: "RAG.upsert", OpSearch: "RAG.search",
		OpMemoryNote: "Memory.note", OpMemoryRead: "Memory.read", OpToolCall: "Tools",
	}
	out := make(map[Operation]operationInfo, len(AllOperations))
	for i, op := range AllOperations {
		out[op] = operationInfo{bit: 1 << i, kind: kinds[op], label: labels[op]}
	}
	return out
}()

// Kind returns the capability kind an operation belongs to.
func (o Operation) Kind() Kind {
	return operations[o].kind
}

// Label is the human name used in failure messages ("TTS", "Storage.put").
func (o Operation) Label() string {
	if info, ok := operations[o]; ok {
		return info.label
	}
	return string(o)
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	_, ok := operations[o]
	return ok
}

// ParseOperation accepts "voice.speak" style names.
func ParseOperation(s string) (Operation, bool) {
	op := Operation(strings.TrimSpace(strings.ToLower(s)))
	return op, op.Valid()
}

// OperationSet is the immutable set of operations a provider declares.
type OperationSet uint32

// Ops builds a set from the given operations; unknown values are ignored.
func Ops(ops ...Operation) OperationSet {
	var s OperationSet
	for _, op := range ops {
		s |= operations[op].bit
	}
	return s
}

// Has reports whether op is in the set.
func (s OperationSet) Has(op Operation) bool {
	info, ok := operations[op]
	return ok && s&info.bit != 0
}

// List returns the members in canonical order.
func (s OperationSet) List() []Operation {
	out := make([]Operation, 0, len(AllOperations))
	for _, op := range AllOperations {
		if s.Has(op) {
			out = append(out, op)
		}
	}
	return out
}

// Kinds derives the capability kinds covered by the set.
func (s OperationSet) Kinds() []Kind {
	seen := make(map[Kind]bool)
	var out []Kind
	for _, k := range AllKinds {
		for _, op := range s.List() {
			if op.Kind() == k && !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

func (s OperationSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s OperationSet) String() string {
	names := make([]string, 0, len(AllOperations))
	for _, op := range s.List() {
		names = append(names, string(op))
	}
	return "{" + strings.Join(names, ",") + "}"
}

// CapabilityOperations maps preference-list capability names to the operations
// a provider listed there is expected to serve.
var CapabilityOperations = map[string][]Operation{
	"tts":         {OpSpeak},
	"stt":         {OpTranscribe},
	"voice_clone": {OpVoiceClone},
	"messaging":   {OpSend},
	"db":          {OpDBExec},
	"storage":     {OpStoragePut, OpStorageGet},
	"embed":       {OpEmbed},
	"rag":         {OpUpsert, OpSearch},
	"memory":      {OpMemoryNote, OpMemoryRead},
	"tools":       {OpToolCall},
}
