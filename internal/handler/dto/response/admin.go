package response

import (
	"quizrush/internal/usecase/commands"
)

type SeedQuizResponse struct {
	QuizID    string   `json:"quizId"`
	MemberIDs []string `json:"memberIds"`
}

func FromSeedResult(r *commands.SeedResult) *SeedQuizResponse {
	memberIDs := make([]string, len(r.MemberIDs))
	for i, id := range r.MemberIDs {
		memberIDs[i] = id.String()
	}
	return &SeedQuizResponse{
		QuizID:    r.QuizID.String(),
		MemberIDs: memberIDs,
	}
}

type ReconcileResponse struct {
	QuizID string `json:"quizId"`
	Source string `json:"source"`
	Status string `json:"status"`
}
