package api

import (
	"errors"
	"net/http"

	reqdto "quizrush/internal/handler/dto/request"
	resdto "quizrush/internal/handler/dto/response"
	"quizrush/internal/handler/httperr"
	"quizrush/internal/usecase/commands"
	"quizrush/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SubmissionHandler struct {
	allocation        commands.AllocationCommands
	asyncSubmit       commands.AsyncSubmitCommands
	submissionQueries queries.SubmissionQueries
}

func NewSubmissionHandler(
	allocation commands.AllocationCommands,
	asyncSubmit commands.AsyncSubmitCommands,
	submissionQueries queries.SubmissionQueries,
) *SubmissionHandler {
	return &SubmissionHandler{
		allocation:        allocation,
		asyncSubmit:       asyncSubmit,
		submissionQueries: submissionQueries,
	}
}

// @Summary Submit quiz answer (synchronous)
// @Description Allocate a winner slot synchronously under the distributed lock
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param request body reqdto.CreateSubmissionRequest true "Submission request"
// @Success 201 {object} resdto.SubmissionResponse
// @Failure 400 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Failure 503 {object} httperr.Response
// @Router /quizzes/{id}/submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	quizID, memberID, ok := h.bindSubmission(c)
	if !ok {
		return
	}

	result, err := h.allocation.AllocateWithLock(c.Request.Context(), quizID, memberID)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrQuizNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "Quiz not found", nil)
		case errors.Is(err, commands.ErrMemberNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "Member not found", nil)
		case errors.Is(err, commands.ErrSlotsExhausted):
			httperr.AbortWithError(c, http.StatusConflict, err, "No winner slots remaining", nil)
		case errors.Is(err, commands.ErrLockTimeout):
			httperr.AbortWithError(c, http.StatusServiceUnavailable, err, "Quiz is busy, please retry", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusCreated, resdto.FromAllocationResult(result))
}

// @Summary Submit quiz answer (asynchronous)
// @Description Pre-claim a slot on the quota counter and enqueue the submission
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param request body reqdto.CreateSubmissionRequest true "Submission request"
// @Success 202 {object} resdto.AsyncSubmissionResponse
// @Failure 400 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Router /quizzes/{id}/submissions/async [post]
func (h *SubmissionHandler) CreateSubmissionAsync(c *gin.Context) {
	quizID, memberID, ok := h.bindSubmission(c)
	if !ok {
		return
	}

	requestID, err := h.asyncSubmit.SubmitAsync(c.Request.Context(), quizID, memberID)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrSlotsExhausted):
			httperr.AbortWithError(c, http.StatusConflict, err, "No winner slots remaining", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusAccepted, resdto.AsyncSubmissionResponse{
		RequestID: requestID,
		Status:    "PENDING",
	})
}

// @Summary Get submission by request ID
// @Description Look up the outcome of an asynchronous submission
// @Tags submissions
// @Produce json
// @Param requestId path string true "Request ID"
// @Success 200 {object} resdto.SubmissionStatusResponse
// @Failure 404 {object} httperr.Response
// @Router /submissions/{requestId} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	requestID := c.Param("requestId")

	view, err := h.submissionQueries.GetByRequestID(c.Request.Context(), requestID)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrSubmissionNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "Submission not found", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromSubmissionView(view))
}

func (h *SubmissionHandler) bindSubmission(c *gin.Context) (quizID, memberID uuid.UUID, ok bool) {
	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid quiz ID format", nil)
		return uuid.Nil, uuid.Nil, false
	}

	var req reqdto.CreateSubmissionRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, bindErr, "Invalid request format", nil)
		return uuid.Nil, uuid.Nil, false
	}

	memberID, err = uuid.Parse(req.MemberID)
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid member ID format", nil)
		return uuid.Nil, uuid.Nil, false
	}

	return quizID, memberID, true
}
