package eventbus

// 事件主题
const (
	TopicAttemptFailed   = "orchestrator:attempt_failed"
	TopicExhausted       = "orchestrator:exhausted"
	TopicRegistryRebuilt = "orchestrator:registry_rebuilt"
	TopicToolDispatched  = "session:tool_dispatched"
)

// AuditTopics are persisted by the audit recorder.
var AuditTopics = []string{
	TopicAttemptFailed,
	TopicExhausted,
	TopicRegistryRebuilt,
	TopicToolDispatched,
}

// AttemptEvent 单个候选提供者失败或被跳过
type AttemptEvent struct {
	Provider   string `json:"provider"`
	Operation  string `json:"operation"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason"`
	DurationMS int64  `json:"duration_ms"`
}

// ExhaustedEvent 所有候选提供者均失败
type ExhaustedEvent struct {
	Operation string         `json:"operation"`
	Attempts  []AttemptEvent `json:"attempts"`
	Message   string         `json:"message"`
}

// RegistryRebuiltEvent 配置变更后注册表重建
type RegistryRebuiltEvent struct {
	Providers []string `json:"providers"`
	Warnings  int      `json:"warnings"`
	Reason    string   `json:"reason"`
}

// ToolDispatchedEvent 会话层完成一次工具调用
type ToolDispatchedEvent struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
