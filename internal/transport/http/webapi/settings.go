package webapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"beatrice-server-go/internal/app/services"
	"beatrice-server-go/internal/platform/config"
	"beatrice-server-go/internal/platform/errors"
	httptransport "beatrice-server-go/internal/transport/http"
)

const maskPrefix = "***"

// maskKey hides all but the last four characters of a secret.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return maskPrefix
	}
	return maskPrefix + key[len(key)-4:]
}

func maskDocument(doc services.ProviderDocument) services.ProviderDocument {
	masked := make(map[string]config.ProviderSettings, len(doc.Providers))
	for name, s := range doc.Providers {
		s.APIKey = maskKey(s.APIKey)
		masked[name] = s
	}
	doc.Providers = masked
	return doc
}

// unmask keeps the stored key wherever the client echoed a masked value back.
func unmask(doc services.ProviderDocument, current map[string]config.ProviderSettings) {
	for name, s := range doc.Providers {
		if strings.HasPrefix(s.APIKey, maskPrefix) {
			s.APIKey = current[name].APIKey
			doc.Providers[name] = s
		}
	}
}

func (s *Service) handleSettingsGet(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, maskDocument(s.settings.Document()), "")
}

func (s *Service) handleSettingsPut(c *gin.Context) {
	var doc services.ProviderDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid settings: "+err.Error(), nil)
		return
	}
	unmask(doc, s.settings.Config().Providers)

	warnings, err := s.settings.Update(c.Request.Context(), doc)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsKind(err, errors.KindConfig) {
			status = http.StatusBadRequest
		}
		s.logger.ErrorTag("HTTP", "保存提供者配置失败: %v", err)
		httptransport.RespondError(c, status, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"providers": s.orch.Registry().Names(),
		"warnings":  warningViews(warnings),
	}, "settings saved")
}
