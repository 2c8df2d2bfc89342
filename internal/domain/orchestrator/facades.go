package orchestrator

import "context"

// VoiceFacade: clone, speak, transcribe.
type VoiceFacade struct{ o *Orchestrator }

func (f VoiceFacade) Clone(ctx context.Context, preferred []string, in VoiceCloneIn) (*VoiceCloneOut, error) {
	return invoke(ctx, f.o, OpVoiceClone, preferred, in, VoiceCloner.CloneVoice)
}

func (f VoiceFacade) Speak(ctx context.Context, preferred []string, in SpeakIn) (*SpeakOut, error) {
	return invoke(ctx, f.o, OpSpeak, preferred, in, Speaker.Speak)
}

func (f VoiceFacade) Transcribe(ctx context.Context, preferred []string, in TranscribeIn) (*TranscribeOut, error) {
	return invoke(ctx, f.o, OpTranscribe, preferred, in, Transcriber.Transcribe)
}

type MessagingFacade struct{ o *Orchestrator }

func (f MessagingFacade) Send(ctx context.Context, preferred []string, in MessageIn) (*MessageOut, error) {
	return invoke(ctx, f.o, OpSend, preferred, in, MessageSender.SendMessage)
}

type DBFacade struct{ o *Orchestrator }

func (f DBFacade) Exec(ctx context.Context, preferred []string, in DBQueryIn) (*DBQueryOut, error) {
	return invoke(ctx, f.o, OpDBExec, preferred, in, DBExecutor.Exec)
}

type StorageFacade struct{ o *Orchestrator }

func (f StorageFacade) Put(ctx context.Context, preferred []string, in StoragePutIn) (*StoragePutOut, error) {
	return invoke(ctx, f.o, OpStoragePut, preferred, in, ObjectPutter.PutObject)
}

func (f StorageFacade) Get(ctx context.Context, preferred []string, in StorageGetIn) (*StorageGetOut, error) {
	return invoke(ctx, f.o, OpStorageGet, preferred, in, ObjectGetter.GetObject)
}

type RAGFacade struct{ o *Orchestrator }

func (f RAGFacade) Embed(ctx context.Context, preferred []string, in EmbedIn) (*EmbedOut, error) {
	return invoke(ctx, f.o, OpEmbed, preferred, in, Embedder.Embed)
}

func (f RAGFacade) Upsert(ctx context.Context, preferred []string, in UpsertIn) (*UpsertOut, error) {
	return invoke(ctx, f.o, OpUpsert, preferred, in, Upserter.Upsert)
}

func (f RAGFacade) Search(ctx context.Context, preferred []string, in SearchIn) (*SearchOut, error) {
	return invoke(ctx, f.o, OpSearch, preferred, in, Searcher.Search)
}

type MemoryFacade struct{ o *Orchestrator }

func (f MemoryFacade) Note(ctx context.Context, preferred []string, in MemoryNoteIn) (*MemoryNoteOut, error) {
	return invoke(ctx, f.o, OpMemoryNote, preferred, in, MemoryNoter.Note)
}

func (f MemoryFacade) Read(ctx context.Context, preferred []string, in MemoryReadIn) (*MemoryReadOut, error) {
	return invoke(ctx, f.o, OpMemoryRead, preferred, in, MemoryReader.Read)
}

type ToolsFacade struct{ o *Orchestrator }

func (f ToolsFacade) Call(ctx context.Context, preferred []string, in ToolCallIn) (*ToolCallOut, error) {
	return invoke(ctx, f.o, OpToolCall, preferred, in, ToolCaller.CallTool)
}
