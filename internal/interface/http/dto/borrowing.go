package dto

// BorrowRequest 借书请求
// 借阅人从JWT取，请求体只带书
type BorrowRequest struct {
	BookID uint `json:"book_id" binding:"required"`
}

// ListBorrowingsQuery 借阅台账查询参数（馆员）
type ListBorrowingsQuery struct {
	UserID      uint   `form:"user_id"`
	BookID      uint   `form:"book_id"`
	Status      string `form:"status" binding:"omitempty,oneof=borrowed returned overdue lost damaged"`
	OverdueOnly bool   `form:"overdue_only"`
	SortBy      string `form:"sort_by" binding:"omitempty,oneof=borrow_date due_date return_date"`
	SortOrder   string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
}
