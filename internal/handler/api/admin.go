package api

import (
	"errors"
	"net/http"

	reqdto "quizrush/internal/handler/dto/request"
	resdto "quizrush/internal/handler/dto/response"
	"quizrush/internal/handler/httperr"
	"quizrush/internal/pkg/errs"
	"quizrush/internal/usecase/commands"
	"quizrush/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminHandler struct {
	seed       commands.SeedCommands
	reconciler *worker.Reconciler
}

func NewAdminHandler(seed commands.SeedCommands, reconciler *worker.Reconciler) *AdminHandler {
	return &AdminHandler{
		seed:       seed,
		reconciler: reconciler,
	}
}

// @Summary Seed a quiz
// @Description Create a quiz with full slot capacity, members, and an initialized quota counter
// @Tags admin
// @Accept json
// @Produce json
// @Param request body reqdto.SeedQuizRequest true "Seed request"
// @Success 201 {object} resdto.SeedQuizResponse
// @Failure 400 {object} httperr.Response
// @Router /admin/quizzes [post]
func (h *AdminHandler) SeedQuiz(c *gin.Context) {
	var req reqdto.SeedQuizRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, bindErr, "Invalid request format", nil)
		return
	}

	result, err := h.seed.SeedQuiz(c.Request.Context(), req.Title, req.TotalSlots, req.MemberCount)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrInvalidSeedRequest):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid seed request", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	c.JSON(http.StatusCreated, resdto.FromSeedResult(result))
}

// @Summary Reconcile quiz slot counts
// @Description Synchronize one quiz's counter and ledger in the given direction
// @Tags admin
// @Produce json
// @Param id path string true "Quiz ID"
// @Param source query string true "Authoritative side" Enums(db, redis)
// @Success 200 {object} resdto.ReconcileResponse
// @Failure 400 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Router /admin/quizzes/{id}/reconcile [post]
func (h *AdminHandler) ReconcileQuiz(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid quiz ID format", nil)
		return
	}

	source, err := worker.ParseSyncSource(c.DefaultQuery("source", string(worker.SourceDB)))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Source must be db or redis", nil)
		return
	}

	if err := h.reconciler.SyncForQuiz(c.Request.Context(), quizID, source); err != nil {
		if errors.Is(err, errs.ErrQuizNotFound) {
			httperr.AbortWithError(c, http.StatusNotFound, err, "Quiz not found", nil)
			return
		}
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return
	}

	c.JSON(http.StatusOK, resdto.ReconcileResponse{
		QuizID: quizID.String(),
		Source: string(source),
		Status: "synced",
	})
}
