// Package response provides the unified API response envelope.
// Every HTTP endpoint replies with the same shape: a success flag,
// either a data payload or an error object, and a timestamp.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finsight-io/finsight/pkg/utils/errors"
)

// Response is the unified API response envelope.
type Response struct {
	// Success indicates whether the request was handled successfully.
	Success bool `json:"success"`

	// Data contains the response payload (omitted on errors).
	Data interface{} `json:"data,omitempty"`

	// Error describes the failure (omitted on success).
	Error *ErrorBody `json:"error,omitempty"`

	// Timestamp is the response time in RFC 3339 format.
	Timestamp string `json:"timestamp"`
}

// ErrorBody carries the business error code and message.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Success:   false,
		Error:     &ErrorBody{Code: e.Code, Message: e.Msg},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// HTTPStatus returns the HTTP status code for this response.
func (r *Response) HTTPStatus() int {
	if r.Success {
		return http.StatusOK
	}
	if r.Error == nil {
		return http.StatusInternalServerError
	}
	if e, ok := errors.Lookup(r.Error.Code); ok {
		return e.HTTPStatus()
	}
	switch errors.GetCategory(r.Error.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteSuccess writes a successful envelope to the gin context.
func WriteSuccess(c *gin.Context, data interface{}) {
	r := Success(data)
	c.JSON(r.HTTPStatus(), r)
}

// WriteError writes an error envelope to the gin context. Arbitrary
// errors are normalized to Errno first.
func WriteError(c *gin.Context, err error) {
	r := Err(errors.FromError(err))
	c.JSON(r.HTTPStatus(), r)
}
