package kit

import (
	"github.com/sashabaranov/go-openai"

	"beatrice-server-go/internal/domain/orchestrator"
)

// OpenAI builds a go-openai client. BaseURL, when set, replaces the full API
// root (including any /v1 suffix), which also covers compatible gateways.
func OpenAI(cfg orchestrator.ProviderConfig) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if base := cfg.Base(""); base != "" {
		oc.BaseURL = base
	}
	if org := cfg.String("organization", ""); org != "" {
		oc.OrgID = org
	}
	return openai.NewClientWithConfig(oc)
}
