package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePreferences(t *testing.T) {
	reg := NewRegistry(
		speaker("piper", nil, nil, nil),
		&fakeMemory{Descriptor: NewDescriptor("in-memory", true, Ops(OpMemoryNote, OpMemoryRead))},
		multiKind{NewDescriptor("half-store", true, Ops(OpSpeak))},
	)

	warnings := ValidatePreferences(reg, map[string][]string{
		"tts":     {"piper", "cartesia"},
		"memory":  {"in-memory"},
		"storage": {"half-store"},
		"weather": {"x"},
	})

	assert.Equal(t, []Warning{
		{Capability: "storage", Provider: "half-store", Operation: OpStoragePut, Problem: ProblemUnsupported},
		{Capability: "storage", Provider: "half-store", Operation: OpStorageGet, Problem: ProblemUnsupported},
		{Capability: "tts", Provider: "cartesia", Problem: ProblemUnregistered},
		{Capability: "weather", Problem: ProblemUnknownCapability},
	}, warnings)

	assert.Equal(t, `tts: provider "cartesia" is not registered`, warnings[2].String())
	assert.Equal(t, `storage: provider "half-store" does not support storage.put`, warnings[0].String())
}

func TestValidatePreferencesClean(t *testing.T) {
	reg := NewRegistry(speaker("piper", nil, nil, nil))
	assert.Empty(t, ValidatePreferences(reg, map[string][]string{"tts": {"piper"}}))

	logger := &recordingLogger{}
	n := LogWarnings(logger, ValidatePreferences(reg, map[string][]string{"tts": {"ghost"}}))
	assert.Equal(t, 1, n)
	assert.Len(t, logger.warns, 1)
}
