package dto

// UpdateCopiesRequest 盘点副本数请求
// 用指针区分"传了0"和"没传"：缩容到0本是合法操作
type UpdateCopiesRequest struct {
	TotalCopies *int `json:"total_copies" binding:"required,min=0"`
}
