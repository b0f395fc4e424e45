//go:build unit

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quizrush/internal/handler/api"
	"quizrush/internal/handler/httperr"
	"quizrush/internal/usecase/commands"
	"quizrush/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// Hand-written stubs; the ports are small enough that generated mocks
// would be more code than they replace.

type stubAllocation struct {
	result *commands.AllocationResult
	err    error
}

func (s *stubAllocation) AllocateWithLock(context.Context, uuid.UUID, uuid.UUID) (*commands.AllocationResult, error) {
	return s.result, s.err
}

func (s *stubAllocation) AllocateWithRowLock(context.Context, uuid.UUID, uuid.UUID) (*commands.AllocationResult, error) {
	return s.result, s.err
}

func (s *stubAllocation) AllocateUnguarded(context.Context, uuid.UUID, uuid.UUID) (*commands.AllocationResult, error) {
	return s.result, s.err
}

type stubAsyncSubmit struct {
	requestID string
	err       error
}

func (s *stubAsyncSubmit) SubmitAsync(context.Context, uuid.UUID, uuid.UUID) (string, error) {
	return s.requestID, s.err
}

type stubSubmissionQueries struct {
	view *queries.SubmissionView
	err  error
}

func (s *stubSubmissionQueries) GetByRequestID(context.Context, string) (*queries.SubmissionView, error) {
	return s.view, s.err
}

type SubmissionHandlerTestSuite struct {
	suite.Suite
	router     *gin.Engine
	allocation *stubAllocation
	async      *stubAsyncSubmit
	queries    *stubSubmissionQueries
}

func (s *SubmissionHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()

	s.allocation = &stubAllocation{}
	s.async = &stubAsyncSubmit{}
	s.queries = &stubSubmissionQueries{}
	handler := api.NewSubmissionHandler(s.allocation, s.async, s.queries)

	s.router.POST("/quizzes/:id/submissions", handler.CreateSubmission)
	s.router.POST("/quizzes/:id/submissions/async", handler.CreateSubmissionAsync)
	s.router.GET("/submissions/:requestId", handler.GetSubmission)
}

func TestSubmissionHandlerSuite(t *testing.T) {
	suite.Run(t, new(SubmissionHandlerTestSuite))
}

func (s *SubmissionHandlerTestSuite) post(path string, body any) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *SubmissionHandlerTestSuite) TestCreateSubmission() {
	quizID := uuid.New()
	memberBody := map[string]string{"memberId": uuid.NewString()}

	s.Run("201 on success", func() {
		s.allocation.result = &commands.AllocationResult{
			SubmissionID: uuid.New(),
			RequestID:    uuid.NewString(),
			Status:       "COMPLETED",
		}
		s.allocation.err = nil

		rec := s.post("/quizzes/"+quizID.String()+"/submissions", memberBody)
		s.Equal(http.StatusCreated, rec.Code)

		var resp map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(s.allocation.result.RequestID, resp["requestId"])
		s.Equal("COMPLETED", resp["status"])
	})

	s.Run("400 on malformed quiz id", func() {
		rec := s.post("/quizzes/not-a-uuid/submissions", memberBody)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("400 on missing member id", func() {
		rec := s.post("/quizzes/"+quizID.String()+"/submissions", map[string]string{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("404 on unknown quiz", func() {
		s.allocation.result = nil
		s.allocation.err = commands.ErrQuizNotFound

		rec := s.post("/quizzes/"+quizID.String()+"/submissions", memberBody)
		s.Equal(http.StatusNotFound, rec.Code)

		var resp httperr.Response
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("Quiz not found", resp.Error.Message)
	})

	s.Run("409 on exhausted slots", func() {
		s.allocation.err = commands.ErrSlotsExhausted

		rec := s.post("/quizzes/"+quizID.String()+"/submissions", memberBody)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("503 on lock timeout", func() {
		s.allocation.err = commands.ErrLockTimeout

		rec := s.post("/quizzes/"+quizID.String()+"/submissions", memberBody)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})
}

func (s *SubmissionHandlerTestSuite) TestCreateSubmissionAsync() {
	quizID := uuid.New()
	memberBody := map[string]string{"memberId": uuid.NewString()}

	s.Run("202 with request id", func() {
		s.async.requestID = uuid.NewString()
		s.async.err = nil

		rec := s.post("/quizzes/"+quizID.String()+"/submissions/async", memberBody)
		s.Equal(http.StatusAccepted, rec.Code)

		var resp map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(s.async.requestID, resp["requestId"])
		s.Equal("PENDING", resp["status"])
	})

	s.Run("409 on exhausted slots", func() {
		s.async.err = commands.ErrSlotsExhausted

		rec := s.post("/quizzes/"+quizID.String()+"/submissions/async", memberBody)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *SubmissionHandlerTestSuite) TestGetSubmission() {
	s.Run("200 with the stored view", func() {
		s.queries.view = &queries.SubmissionView{
			ID:        uuid.New(),
			RequestID: uuid.NewString(),
			MemberID:  uuid.New(),
			QuizID:    uuid.New(),
			Status:    "COMPLETED",
		}
		s.queries.err = nil

		req := httptest.NewRequest(http.MethodGet, "/submissions/"+s.queries.view.RequestID, nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		s.Equal(http.StatusOK, rec.Code)

		var resp map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(s.queries.view.RequestID, resp["requestId"])
		s.Equal("COMPLETED", resp["status"])
	})

	s.Run("404 on unknown request id", func() {
		s.queries.view = nil
		s.queries.err = queries.ErrSubmissionNotFound

		req := httptest.NewRequest(http.MethodGet, "/submissions/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		s.Equal(http.StatusNotFound, rec.Code)
	})
}
