package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examgate/examgate-backend/internal/apperr"
)

// Response is the standardized API response envelope.
type Response struct {
	Data       interface{} `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody represents a structured error response.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Detail  string            `json:"detail,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Success sends a successful JSON response with the given status code and data.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Data:     data,
		Metadata: buildMetadata(c),
	})
}

// SuccessWithPagination sends a successful response with pagination metadata.
func SuccessWithPagination(c *gin.Context, statusCode int, data interface{}, pagination *Pagination) {
	c.JSON(statusCode, Response{
		Data:       data,
		Pagination: pagination,
		Metadata:   buildMetadata(c),
	})
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, Response{
		Error:    &ErrorBody{Code: code, Message: GetMessage(code)},
		Metadata: buildMetadata(c),
	})
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, Response{
		Error:    &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields},
		Metadata: buildMetadata(c),
	})
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, Response{
		Error:    &ErrorBody{Code: code, Message: GetMessage(code)},
		Metadata: buildMetadata(c),
	})
}

// FailError maps an engine error (apperr kinds, shortfall) onto the wire.
// Unrecognized errors become opaque 500s so internals never leak.
func FailError(c *gin.Context, err error) {
	var shortfall *apperr.ShortfallError
	if errors.As(err, &shortfall) {
		c.JSON(http.StatusUnprocessableEntity, Response{
			Error: &ErrorBody{
				Code:    ErrQuestionShortfall,
				Message: GetMessage(ErrQuestionShortfall),
				Detail:  shortfall.Error(),
			},
			Metadata: buildMetadata(c),
		})
		return
	}

	var assignment *apperr.AssignmentConflictError
	if errors.As(err, &assignment) {
		c.JSON(http.StatusConflict, Response{
			Error: &ErrorBody{
				Code:    ErrProctorConflict,
				Message: GetMessage(ErrProctorConflict),
				Detail:  assignment.Error(),
				Fields:  map[string]string{"conflicting_session_id": assignment.ConflictingSessionID.String()},
			},
			Metadata: buildMetadata(c),
		})
		return
	}

	status, code := http.StatusInternalServerError, ErrInternal
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status, code = http.StatusNotFound, ErrNotFound
	case apperr.KindForbidden:
		status, code = http.StatusForbidden, ErrForbidden
	case apperr.KindConflict:
		status, code = http.StatusConflict, ErrConflict
	case apperr.KindValidation:
		status, code = http.StatusBadRequest, ErrValidation
	}

	// Lifecycle rejections carry a subcode naming the rule that fired.
	switch apperr.CodeOf(err) {
	case apperr.CodeWindowNotOpen:
		code = ErrWindowNotOpen
	case apperr.CodeWindowClosed:
		code = ErrWindowClosed
	case apperr.CodeAlreadySubmitted:
		code = ErrAlreadySubmitted
	case apperr.CodeAttemptLocked:
		code = ErrAttemptLocked
	}

	body := &ErrorBody{Code: code, Message: GetMessage(code)}
	if code != ErrInternal {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			body.Detail = ae.Msg
		} else {
			body.Detail = err.Error()
		}
	}

	c.JSON(status, Response{Error: body, Metadata: buildMetadata(c)})
}

func buildMetadata(c *gin.Context) Metadata {
	id := RequestID(c)
	if id == "" {
		id = uuid.New().String() // Fallback if middleware not applied
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
