package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/middleware"
	"github.com/turtacn/RigorAudit/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeAppError maps err to its HTTP status. Server errors are logged and
// masked; client errors carry their message and detail.
func writeAppError(c *gin.Context, logger logging.Logger, err error) {
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)
	resp := ErrorResponse{Code: code.String(), RequestID: middleware.GetRequestID(c)}

	var ae *errors.AppError
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			logging.String("path", c.FullPath()),
			logging.String("request_id", resp.RequestID),
			logging.Err(err))
		if code == errors.CodeUnknown {
			resp.Code = errors.ErrCodeInternal.String()
		}
		resp.Message = errors.DefaultMessageForCode(errors.ErrorCode(resp.Code))
	} else if stderrors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	} else {
		resp.Message = err.Error()
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// badRequest writes a validation error for a malformed request.
func badRequest(c *gin.Context, logger logging.Logger, msg string, cause error) {
	e := errors.New(errors.ErrCodeBadRequest, msg)
	if cause != nil {
		e = e.WithDetail(cause.Error())
	}
	writeAppError(c, logger, e)
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Newf(errors.ErrCodeBadRequest, "query parameter %q must be an integer", name).WithDetail(v)
	}
	return n, nil
}

// queryFloat parses an optional float query parameter; nil when absent.
func queryFloat(c *gin.Context, name string) (*float64, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeBadRequest, "query parameter %q must be a number", name).WithDetail(v)
	}
	return &f, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, name string) (bool, error) {
	v := c.Query(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Newf(errors.ErrCodeBadRequest, "query parameter %q must be a boolean", name).WithDetail(v)
	}
	return b, nil
}
