package response

import (
	"quizrush/internal/usecase/commands"
	"quizrush/internal/usecase/queries"
)

type SubmissionResponse struct {
	SubmissionID string `json:"submissionId"`
	RequestID    string `json:"requestId"`
	Status       string `json:"status"`
}

func FromAllocationResult(r *commands.AllocationResult) *SubmissionResponse {
	return &SubmissionResponse{
		SubmissionID: r.SubmissionID.String(),
		RequestID:    r.RequestID,
		Status:       string(r.Status),
	}
}

// AsyncSubmissionResponse acknowledges acceptance, not completion. The
// client polls GET /api/submissions/:requestId for the outcome.
type AsyncSubmissionResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

type SubmissionStatusResponse struct {
	SubmissionID string `json:"submissionId"`
	RequestID    string `json:"requestId"`
	QuizID       string `json:"quizId"`
	MemberID     string `json:"memberId"`
	Status       string `json:"status"`
}

func FromSubmissionView(v *queries.SubmissionView) *SubmissionStatusResponse {
	return &SubmissionStatusResponse{
		SubmissionID: v.ID.String(),
		RequestID:    v.RequestID,
		QuizID:       v.QuizID.String(),
		MemberID:     v.MemberID.String(),
		Status:       v.Status,
	}
}
