package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/examgate/examgate-backend/internal/validator"
)

// AttemptHandler serves the student-facing attempt endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
	proctorService *service.ProctorService
}

func NewAttemptHandler(attemptService *service.AttemptService, proctorService *service.ProctorService) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		proctorService: proctorService,
	}
}

// Start godoc
// POST /api/v1/attempts
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), claims.UserID, req.AccessCode)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// ListMine godoc
// GET /api/v1/attempts
func (h *AttemptHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attempts, err := h.attemptService.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetPaper godoc
// GET /api/v1/attempts/:attemptId/paper
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.attemptService.GetPaper(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// SetAnswer godoc
// PUT /api/v1/attempts/:attemptId/answers
func (h *AttemptHandler) SetAnswer(c *gin.Context) {
	h.saveAnswer(c, h.attemptService.SetAnswer)
}

// AddAnswer godoc
// POST /api/v1/attempts/:attemptId/answers
func (h *AttemptHandler) AddAnswer(c *gin.Context) {
	h.saveAnswer(c, h.attemptService.AddAnswer)
}

func (h *AttemptHandler) saveAnswer(c *gin.Context, save func(ctx context.Context, studentID int, attemptID uuid.UUID, req *model.SaveAnswerRequest) error) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := save(c.Request.Context(), claims.UserID, attemptID, &req); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "answer saved"})
}

// RemoveAnswer godoc
// DELETE /api/v1/attempts/:attemptId/answers/:questionId
func (h *AttemptHandler) RemoveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("questionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.RemoveAnswer(c.Request.Context(), claims.UserID, attemptID, questionID); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "answer removed"})
}

// Submit godoc
// POST /api/v1/attempts/:attemptId/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ReportViolation godoc
// POST /api/v1/attempts/:attemptId/violations
func (h *AttemptHandler) ReportViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReportViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.proctorService.ReportViolation(c.Request.Context(), claims.UserID, attemptID, model.ViolationType(req.Type)); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"message": "violation reported"})
}
