package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// ListInstances lists live instances
func (h *Handlers) ListInstances(c *gin.Context) {
	ok(c, gin.H{
		"instances": h.Supervisor.List(),
		"stats":     h.Supervisor.Stats(),
	})
}

// GetInstance returns one live instance
func (h *Handlers) GetInstance(c *gin.Context) {
	inst, err := h.Supervisor.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, inst)
}

// CloseInstance closes an instance
func (h *Handlers) CloseInstance(c *gin.Context) {
	instanceID := c.Param("id")
	if err := h.Supervisor.Close(c.Request.Context(), instanceID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"instance_id": instanceID, "closed": true})
}

// UpdateBounds applies move and resize hooks from the presentation layer
func (h *Handlers) UpdateBounds(c *gin.Context) {
	instanceID := c.Param("id")

	var req types.BoundsRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if req.Position == nil && req.Size == nil {
		h.fail(c, errs.New(errs.KindInvalidConfig, "position or size is required"))
		return
	}

	ctx := c.Request.Context()
	if req.Position != nil {
		if err := h.Supervisor.Move(ctx, instanceID, *req.Position); err != nil {
			h.fail(c, err)
			return
		}
	}
	if req.Size != nil {
		if err := h.Supervisor.Resize(ctx, instanceID, *req.Size); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.GetInstance(c)
}

type crashRequest struct {
	Reason string `json:"reason"`
}

// ReportCrash tears down an instance the presentation layer found unresponsive
func (h *Handlers) ReportCrash(c *gin.Context) {
	instanceID := c.Param("id")

	var req crashRequest
	if c.Request.ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			h.fail(c, err)
			return
		}
	}
	if err := h.Supervisor.ReportCrash(instanceID, req.Reason); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"instance_id": instanceID, "crashed": true})
}

// DispatchEvent delivers a host event to the widget's script
func (h *Handlers) DispatchEvent(c *gin.Context) {
	var req types.EventRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	n, err := h.Supervisor.Dispatch(c.Request.Context(), c.Param("id"), req.Event, req.Payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"event": req.Event, "handlers": n})
}

// Request runs a capability request on behalf of an instance. The broker's
// envelope is returned as is; only an unknown instance fails the HTTP call.
func (h *Handlers) Request(c *gin.Context) {
	caller, err := h.Supervisor.Caller(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var req types.Request
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Broker.Handle(c.Request.Context(), caller, req))
}
