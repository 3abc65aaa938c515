package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"probikes/internal/blob"
	"probikes/pkg/domain"
)

type errorBody struct {
	Error      string             `json:"error"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func statusFor(err error) int {
	var (
		violation domain.RuleViolationError
		invalid   validator.ValidationErrors
	)
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.As(err, &invalid),
		errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidBackup):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStaleRevision):
		return http.StatusConflict
	case errors.As(err, &violation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, blob.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. A stale revision reloads the store so the
// client's retry sees the persisted document.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		body.Violations = violation.Result.Violations
	}
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(status)
		s.log.Error("request failed", "path", c.FullPath(), "error", err, "request_id", c.GetString(requestIDKey))
	}
	if status == http.StatusConflict && s.reloader != nil {
		if _, rerr := s.reloader.Reload(c.Request.Context()); rerr != nil {
			s.log.Error("reload after stale revision failed", "error", rerr)
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func intParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return id, nil
}

func reminderParam(c *gin.Context) (float64, error) {
	id, err := strconv.ParseFloat(c.Param("id"), 64)
	if err != nil {
		return 0, badRequest("id must be a number")
	}
	return id, nil
}

// bind decodes the JSON body into dst and validates its struct tags.
func (s *Server) bind(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return badRequest("decode body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}
