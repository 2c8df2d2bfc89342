// Package webapi exposes the capability facades, the registry and the provider
// settings over HTTP.
package webapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"beatrice-server-go/internal/app/services"
	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/platform/errors"
	"beatrice-server-go/internal/platform/logging"
	httptransport "beatrice-server-go/internal/transport/http"
)

// Service WebAPI服务的HTTP传输层实现
type Service struct {
	orch       *orchestrator.Orchestrator
	settings   *services.Settings
	dispatcher *services.Dispatcher
	logger     logging.Interface
	started    time.Time
	calls      map[orchestrator.Operation]capabilityCall
}

// NewService 创建新的WebAPI服务实例
func NewService(orch *orchestrator.Orchestrator, settings *services.Settings, dispatcher *services.Dispatcher, logger logging.Interface) (*Service, error) {
	if orch == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "orchestrator is required")
	}
	if settings == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "settings are required")
	}
	if dispatcher == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "dispatcher is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		orch:       orch,
		settings:   settings,
		dispatcher: dispatcher,
		logger:     logger,
		started:    time.Now(),
		calls:      capabilityCalls(orch),
	}, nil
}

// Register 注册WebAPI相关的HTTP路由；health 不经过鉴权
func (s *Service) Register(_ context.Context, router *httptransport.Router) error {
	router.API.GET("/health", s.handleHealth)

	secured := router.Secured
	secured.GET("/providers", s.handleProviders)
	secured.GET("/config/providers", s.handleSettingsGet)
	secured.PUT("/config/providers", s.handleSettingsPut)
	secured.GET("/config/preferences/warnings", s.handleWarnings)
	secured.POST("/session/tool", s.handleSessionTool)
	secured.POST("/session/transcribe", s.handleSessionTranscribe)

	for _, op := range orchestrator.AllOperations {
		secured.POST(operationPath(op), s.handleCapability(op))
	}

	s.logger.InfoTag("HTTP", "WebAPI服务路由注册完成 (%d 个能力操作)", len(orchestrator.AllOperations))
	return nil
}

// operationPath maps "voice.speak" to "/voice/speak".
func operationPath(op orchestrator.Operation) string {
	return "/" + strings.ReplaceAll(string(op), ".", "/")
}

func (s *Service) handleHealth(c *gin.Context) {
	reg := s.orch.Registry()
	data := gin.H{
		"status":     "ok",
		"uptime_sec": int64(time.Since(s.started).Seconds()),
		"providers":  reg.Len(),
		"by_kind":    reg.Stats(),
	}
	if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		data["memory"] = gin.H{
			"total":        vm.Total,
			"available":    vm.Available,
			"used_percent": vm.UsedPercent,
		}
	}
	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

func (s *Service) handleProviders(c *gin.Context) {
	var kinds []orchestrator.Kind
	if raw := c.Query("kind"); raw != "" {
		kind, ok := orchestrator.ParseKind(raw)
		if !ok {
			httptransport.RespondError(c, http.StatusBadRequest, "unknown kind: "+raw, nil)
			return
		}
		kinds = append(kinds, kind)
	}
	list := s.orch.Registry().List(kinds...)
	infos := make([]orchestrator.Info, len(list))
	for i, p := range list {
		infos[i] = orchestrator.Describe(p)
	}
	httptransport.RespondSuccess(c, http.StatusOK, infos, "")
}

type warningView struct {
	orchestrator.Warning
	Message string `json:"message"`
}

func warningViews(warnings []orchestrator.Warning) []warningView {
	out := make([]warningView, len(warnings))
	for i, w := range warnings {
		out[i] = warningView{Warning: w, Message: w.String()}
	}
	return out
}

func (s *Service) handleWarnings(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, warningViews(s.settings.Warnings()), "")
}

func (s *Service) handleSessionTool(c *gin.Context) {
	var call services.FunctionCall
	if err := c.ShouldBindJSON(&call); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid function call: "+err.Error(), nil)
		return
	}
	if call.Name == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "name is required", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.dispatcher.Dispatch(c.Request.Context(), call), "")
}

type transcribeRequest struct {
	SessionID string                    `json:"session_id"`
	Request   orchestrator.TranscribeIn `json:"request"`
}

func (s *Service) handleSessionTranscribe(c *gin.Context) {
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request: "+err.Error(), nil)
		return
	}
	out, archived, err := s.dispatcher.Transcribe(c.Request.Context(), req.SessionID, req.Request)
	if err != nil {
		respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"transcript": out, "archived": archived}, "")
}
