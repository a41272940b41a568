package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// statusOf maps an error kind to an HTTP status
func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalidConfig:
		return http.StatusBadRequest
	case errs.KindPermissionDenied:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindCapacityExceeded, errs.KindInstanceCrashed:
		return http.StatusConflict
	case errs.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail renders err as an error envelope with a matching status
func (h *Handlers) fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusOf(kind)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, types.Response{
		Error: &types.ErrorBody{Kind: string(kind), Message: errs.Message(err)},
	})
}

// ok renders data in a success envelope
func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, types.Response{Success: true, Data: data})
}

const maxBodyBytes = 1 << 20

// bind decodes the JSON body, reporting malformed input as InvalidConfig
func bind(c *gin.Context, v interface{}) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(v); err != nil {
		return errs.New(errs.KindInvalidConfig, "invalid request body: %v", err)
	}
	return nil
}
