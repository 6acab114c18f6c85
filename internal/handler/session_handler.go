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

type SessionHandler struct {
	sessionService *service.SessionService
	proctorService *service.ProctorService
}

func NewSessionHandler(sessionService *service.SessionService, proctorService *service.ProctorService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		proctorService: proctorService,
	}
}

// Create godoc
// POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// List godoc
// GET /api/v1/sessions
func (h *SessionHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessions, err := h.sessionService.ListByTeacher(c.Request.Context(), claims.UserID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// Get godoc
// GET /api/v1/sessions/:sessionId
func (h *SessionHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.GetForTeacher(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// Reschedule godoc
// PATCH /api/v1/sessions/:sessionId
func (h *SessionHandler) Reschedule(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Reschedule(c.Request.Context(), claims.UserID, sessionID, &req)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// Cancel godoc
// POST /api/v1/sessions/:sessionId/cancel
func (h *SessionHandler) Cancel(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.Cancel(c.Request.Context(), claims.UserID, sessionID); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "session cancelled"})
}

// Delete godoc
// DELETE /api/v1/sessions/:sessionId
func (h *SessionHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.Delete(c.Request.Context(), claims.UserID, sessionID); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "session deleted"})
}

// AssignProctor godoc
// PUT /api/v1/sessions/:sessionId/proctor
func (h *SessionHandler) AssignProctor(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AssignProctorRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.proctorService.Assign(c.Request.Context(), claims.UserID, sessionID, req.ProctorID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignment": assignment})
}

// UnassignProctor godoc
// DELETE /api/v1/sessions/:sessionId/proctor
func (h *SessionHandler) UnassignProctor(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.proctorService.Unassign(c.Request.Context(), claims.UserID, sessionID); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "proctor unassigned"})
}

// ListEligibleProctors godoc
// GET /api/v1/proctors
func (h *SessionHandler) ListEligibleProctors(c *gin.Context) {
	proctors, err := h.proctorService.ListEligible(c.Request.Context())
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"proctors": proctors})
}
