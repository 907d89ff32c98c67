package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/service"
	"github.com/blogsphere/blogapi/pkg/logging"
)

// Error is a transport level failure such as a malformed path parameter or
// an exhausted rate limit
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

const internalMessage = "Internal server error"

// ErrorHandler renders the last error attached to the context with the error
// envelope. Internal failures are logged and never shown to the client.
func ErrorHandler() gin.HandlerFunc {
	logger := logging.WithComponent("api")
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("request_id", requestID(c)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
		}
		c.JSON(status, gin.H{"success": false, "error": msg})
	}
}

// classify maps an error to a status code and a client safe message
func classify(err error) (int, string) {
	var (
		apiErr    *Error
		svcErr    *service.Error
		invalid   validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		numErr    *strconv.NumError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code, apiErr.Message
	case errors.As(err, &svcErr):
		if svcErr.Kind == service.KindInternal {
			return http.StatusInternalServerError, internalMessage
		}
		return svcErr.Kind.HTTPStatus(), svcErr.Message
	case errors.As(err, &invalid):
		return http.StatusBadRequest, validationMessage(invalid)
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, "Malformed JSON body"
	case errors.As(err, &typeErr):
		return http.StatusBadRequest, fmt.Sprintf("%s has the wrong type", typeErr.Field)
	case errors.As(err, &numErr):
		return http.StatusBadRequest, fmt.Sprintf("%q is not a valid number", numErr.Num)
	default:
		return http.StatusInternalServerError, internalMessage
	}
}

// validationMessage joins one readable message per failed field
func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, ", ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "url":
		return field + " must be a valid URL"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "alphanum":
		return field + " may only contain letters and digits"
	case "hexcolor":
		return field + " must be a hex color"
	case "dive":
		return field + " is invalid"
	default:
		return field + " is invalid"
	}
}

// abort attaches err for ErrorHandler and stops the chain
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
