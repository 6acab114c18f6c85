package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examgate/examgate-backend/internal/apperr"
)

func failWith(t *testing.T, err error) (int, *ErrorBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	FailError(c, err)

	var body Response
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("decode response: %v", jerr)
	}
	if body.Error == nil {
		t.Fatal("error body missing")
	}
	return rec.Code, body.Error
}

func TestFailErrorLifecycleCodes(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrCode
	}{
		{"window not open", apperr.ForbiddenCode(apperr.CodeWindowNotOpen, "session has not opened yet"), http.StatusForbidden, ErrWindowNotOpen},
		{"window closed", apperr.ForbiddenCode(apperr.CodeWindowClosed, "session window has closed"), http.StatusForbidden, ErrWindowClosed},
		{"already submitted", apperr.ForbiddenCode(apperr.CodeAlreadySubmitted, "attempt already submitted"), http.StatusForbidden, ErrAlreadySubmitted},
		{"attempt locked", apperr.ForbiddenCode(apperr.CodeAttemptLocked, "attempt is locked by a proctor"), http.StatusForbidden, ErrAttemptLocked},
		{"plain forbidden", apperr.Forbidden("nope"), http.StatusForbidden, ErrForbidden},
		{"conflict", apperr.Conflict("state clash"), http.StatusConflict, ErrConflict},
		{"not found", apperr.NotFound("gone"), http.StatusNotFound, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, errBody := failWith(t, tc.err)
			if status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}
			if errBody.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", errBody.Code, tc.wantCode)
			}
		})
	}
}

func TestFailErrorAssignmentConflictPayload(t *testing.T) {
	conflicting := uuid.New()
	status, errBody := failWith(t, &apperr.AssignmentConflictError{ConflictingSessionID: conflicting})

	if status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
	if errBody.Code != ErrProctorConflict {
		t.Errorf("code = %s, want %s", errBody.Code, ErrProctorConflict)
	}
	if got := errBody.Fields["conflicting_session_id"]; got != conflicting.String() {
		t.Errorf("conflicting_session_id = %q, want %s", got, conflicting)
	}
}

func TestFailErrorHidesInternals(t *testing.T) {
	status, errBody := failWith(t, errors.New("pq: connection reset"))

	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if errBody.Code != ErrInternal {
		t.Errorf("code = %s, want %s", errBody.Code, ErrInternal)
	}
	if errBody.Detail != "" {
		t.Errorf("internal detail leaked: %q", errBody.Detail)
	}
}
