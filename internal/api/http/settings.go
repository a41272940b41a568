package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// GetSettings returns the global host settings
func (h *Handlers) GetSettings(c *gin.Context) {
	s, err := h.Settings.Settings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, s)
}

// UpdateSettings persists a settings patch and applies capacity live
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var patch types.SettingsPatch
	if err := bind(c, &patch); err != nil {
		h.fail(c, err)
		return
	}

	s, err := h.Settings.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	if patch.MaxWidgets != nil {
		if err := h.Supervisor.SetCapacity(s.MaxWidgets); err != nil {
			h.fail(c, err)
			return
		}
		h.logger.Info("Capacity updated", zap.Int("max_widgets", s.MaxWidgets))
	}
	ok(c, s)
}

// RevokePermissions forgets every permission decision for a widget
func (h *Handlers) RevokePermissions(c *gin.Context) {
	widgetID := c.Param("widget")
	if err := h.Permissions.Revoke(c.Request.Context(), widgetID); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("Permissions revoked by user", logging.Widget(widgetID))
	ok(c, gin.H{"widget_id": widgetID, "revoked": true})
}
