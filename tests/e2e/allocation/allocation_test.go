//go:build e2e

package allocation_test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"quizrush/internal/handler/dto/request"
	"quizrush/internal/handler/dto/response"
	"quizrush/tests/common/httptest"
	"quizrush/tests/e2e"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	adminQuizzesURL = "/api/admin/quizzes"
	submissionsURL  = "/api/quizzes/%s/submissions"
)

type AllocationSuite struct {
	e2e.SharedSuite
}

func (s *AllocationSuite) SetupSubTest() {
	s.SharedSuite.SetupSubTest()
}

func TestAllocationSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(AllocationSuite))
}

func (s *AllocationSuite) seedQuiz(title string, totalSlots, memberCount int) *response.SeedQuizResponse {
	t := s.T()
	t.Helper()

	reqBody := request.SeedQuizRequest{
		Title:       title,
		TotalSlots:  totalSlots,
		MemberCount: memberCount,
	}
	w := httptest.PerformRequest(t, s.Router, http.MethodPost, adminQuizzesURL, reqBody)
	require.Equal(t, http.StatusCreated, w.Code, "Should seed quiz successfully")

	var seeded response.SeedQuizResponse
	_ = httptest.DecodeResponseBody(t, w.Body, &seeded)
	require.NotEmpty(t, seeded.QuizID)
	require.Len(t, seeded.MemberIDs, memberCount)
	return &seeded
}

func (s *AllocationSuite) submit(quizID, memberID string) *response.SubmissionResponse {
	t := s.T()
	t.Helper()

	url := fmt.Sprintf(submissionsURL, quizID)
	w := httptest.PerformRequest(t, s.Router, http.MethodPost, url,
		request.CreateSubmissionRequest{MemberID: memberID})
	require.Equal(t, http.StatusCreated, w.Code, "Should allocate slot successfully")

	var res response.SubmissionResponse
	_ = httptest.DecodeResponseBody(t, w.Body, &res)
	return &res
}

// =============================================================================
// TestSeedQuiz - Operator seeding API tests
// =============================================================================

func (s *AllocationSuite) TestSeedQuiz() {
	s.Run("Normal case: Seeding creates quiz, members and quota counter", func() {
		t := s.T()

		seeded := s.seedQuiz("Launch Promo", 25, 5)

		require.Equal(t, 25, s.RemainingSlots(seeded.QuizID))
		require.Equal(t, 25, s.QuotaCounter(seeded.QuizID))
	})

	s.Run("Error case: Invalid seed request is rejected", func() {
		t := s.T()

		reqBody := map[string]any{"title": "", "totalSlots": 10, "memberCount": 3}
		w := httptest.PerformRequest(t, s.Router, http.MethodPost, adminQuizzesURL, reqBody)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// =============================================================================
// TestCreateSubmission - Synchronous allocation API tests
// =============================================================================

func (s *AllocationSuite) TestCreateSubmission() {
	s.Run("Normal case: Member wins a slot and the ledger is decremented", func() {
		t := s.T()

		seeded := s.seedQuiz("Sync Quiz", 3, 2)

		res := s.submit(seeded.QuizID, seeded.MemberIDs[0])
		require.NotEmpty(t, res.SubmissionID)
		require.NotEmpty(t, res.RequestID)
		require.Equal(t, "COMPLETED", res.Status)
		require.Equal(t, 2, s.RemainingSlots(seeded.QuizID))
	})

	s.Run("Error case: Unknown quiz returns 404", func() {
		t := s.T()

		seeded := s.seedQuiz("Sync Quiz 404", 3, 1)

		url := fmt.Sprintf(submissionsURL, uuid.NewString())
		w := httptest.PerformRequest(t, s.Router, http.MethodPost, url,
			request.CreateSubmissionRequest{MemberID: seeded.MemberIDs[0]})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	s.Run("Error case: Unknown member returns 404 and consumes no slot", func() {
		t := s.T()

		seeded := s.seedQuiz("Sync Quiz Member", 3, 1)

		url := fmt.Sprintf(submissionsURL, seeded.QuizID)
		w := httptest.PerformRequest(t, s.Router, http.MethodPost, url,
			request.CreateSubmissionRequest{MemberID: uuid.NewString()})
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, 3, s.RemainingSlots(seeded.QuizID))
	})

	s.Run("Error case: Malformed quiz id returns 400", func() {
		t := s.T()

		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			"/api/quizzes/not-a-uuid/submissions",
			request.CreateSubmissionRequest{MemberID: uuid.NewString()})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.Run("Error case: Exhausted quiz returns 409", func() {
		t := s.T()

		seeded := s.seedQuiz("Sync Quiz Full", 1, 2)

		s.submit(seeded.QuizID, seeded.MemberIDs[0])

		url := fmt.Sprintf(submissionsURL, seeded.QuizID)
		w := httptest.PerformRequest(t, s.Router, http.MethodPost, url,
			request.CreateSubmissionRequest{MemberID: seeded.MemberIDs[1]})
		require.Equal(t, http.StatusConflict, w.Code)
		require.Equal(t, 0, s.RemainingSlots(seeded.QuizID))
	})
}

// =============================================================================
// TestConcurrentAllocation - Contention over real postgres and redis
// =============================================================================

func (s *AllocationSuite) TestConcurrentAllocation() {
	s.Run("Normal case: Winners never exceed total slots under contention", func() {
		t := s.T()

		const (
			slots      = 10
			contenders = 40
		)
		seeded := s.seedQuiz("Contended Quiz", slots, contenders)
		url := fmt.Sprintf(submissionsURL, seeded.QuizID)

		codes := make([]int, contenders)
		var wg sync.WaitGroup
		for i := range contenders {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// 503 means the lease wait timed out under the pile-up;
				// a real client retries, so the test does too.
				for range 10 {
					w := httptest.PerformRequest(t, s.Router, http.MethodPost, url,
						request.CreateSubmissionRequest{MemberID: seeded.MemberIDs[i]})
					codes[i] = w.Code
					if w.Code != http.StatusServiceUnavailable {
						return
					}
					time.Sleep(50 * time.Millisecond)
				}
			}()
		}
		wg.Wait()

		won, rejected, other := 0, 0, 0
		for _, code := range codes {
			switch code {
			case http.StatusCreated:
				won++
			case http.StatusConflict:
				rejected++
			default:
				other++
			}
		}
		require.Zero(t, other, "Unexpected status codes: %v", codes)
		require.Equal(t, slots, won, "Exactly one winner per slot")
		require.Equal(t, contenders-slots, rejected)
		require.Equal(t, 0, s.RemainingSlots(seeded.QuizID))

		var count int
		err := s.DB.QueryRow(t.Context(),
			"SELECT count(*) FROM submissions WHERE quiz_id = $1", seeded.QuizID).
			Scan(&count)
		require.NoError(t, err)
		require.Equal(t, slots, count, "One submission row per winner")
	})
}
