package request

type CreateSubmissionRequest struct {
	MemberID string `json:"memberId" binding:"required,uuid"`
}
