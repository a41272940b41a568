package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
)

// ListWidgets lists installed widgets and rejected manifests
func (h *Handlers) ListWidgets(c *gin.Context) {
	ok(c, gin.H{
		"widgets":  h.Catalog.List(),
		"rejected": h.Catalog.Rejected(),
		"stats":    h.Catalog.Stats(),
	})
}

// Rescan reloads manifests from the widgets directory
func (h *Handlers) Rescan(c *gin.Context) {
	res, err := h.Catalog.Rescan(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, res)
}

// Launch starts an instance of a widget
func (h *Handlers) Launch(c *gin.Context) {
	widgetID := c.Param("id")

	instanceID, err := h.Supervisor.Launch(c.Request.Context(), widgetID)
	if err != nil {
		h.logger.Info("Launch rejected", logging.Widget(widgetID), zap.Error(err))
		h.fail(c, err)
		return
	}

	inst, err := h.Supervisor.Get(instanceID)
	if err != nil {
		// crashed between launch and lookup
		h.fail(c, err)
		return
	}
	ok(c, inst)
}

// ListCapabilities lists every capability widgets may request
func (h *Handlers) ListCapabilities(c *gin.Context) {
	ok(c, gin.H{"services": h.Broker.Services()})
}
