package request

type SeedQuizRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=200"`
	TotalSlots  int    `json:"totalSlots" binding:"required,min=1"`
	MemberCount int    `json:"memberCount" binding:"required,min=1"`
}
