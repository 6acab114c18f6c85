package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/examgate/examgate-backend/internal/validator"
)

// ProctorHandler serves the proctor-facing monitoring endpoints.
type ProctorHandler struct {
	proctorService *service.ProctorService
	sessionService *service.SessionService
}

func NewProctorHandler(proctorService *service.ProctorService, sessionService *service.SessionService) *ProctorHandler {
	return &ProctorHandler{
		proctorService: proctorService,
		sessionService: sessionService,
	}
}

// MySessions godoc
// GET /api/v1/proctoring/sessions
func (h *ProctorHandler) MySessions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessions, err := h.sessionService.ListByProctor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// Monitor godoc
// GET /api/v1/proctoring/sessions/:sessionId/monitor
func (h *ProctorHandler) Monitor(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	rows, err := h.proctorService.Monitor(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": rows})
}

// RecordViolation godoc
// POST /api/v1/proctoring/violations
func (h *ProctorHandler) RecordViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.RecordViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	violation, err := h.proctorService.RecordViolation(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"violation": violation})
}

// LockAttempt godoc
// POST /api/v1/proctoring/attempts/lock
func (h *ProctorHandler) LockAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.LockAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.proctorService.LockAttempt(c.Request.Context(), claims.UserID, &req); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "attempt locked"})
}

// ScoreLocked godoc
// POST /api/v1/proctoring/attempts/:attemptId/score
func (h *ProctorHandler) ScoreLocked(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.proctorService.ScoreLocked(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ViolationsByAttempt godoc
// GET /api/v1/proctoring/attempts/:attemptId/violations
func (h *ProctorHandler) ViolationsByAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	violations, err := h.proctorService.ViolationsByAttempt(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"violations": violations})
}

// ViolationsBySession godoc
// GET /api/v1/proctoring/sessions/:sessionId/violations
func (h *ProctorHandler) ViolationsBySession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	violations, err := h.proctorService.ViolationsBySession(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"violations": violations})
}
