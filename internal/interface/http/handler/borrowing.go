package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appborrowing "github.com/xiebiao/library/internal/application/borrowing"
	"github.com/xiebiao/library/internal/interface/http/dto"
	"github.com/xiebiao/library/internal/interface/http/middleware"
	"github.com/xiebiao/library/pkg/response"
)

// BorrowingHandler 借阅HTTP处理器
type BorrowingHandler struct {
	borrowUseCase  *appborrowing.BorrowBookUseCase
	returnUseCase  *appborrowing.ReturnBookUseCase
	queryUseCase   *appborrowing.QueryBorrowingsUseCase
	sweepUseCase   *appborrowing.SweepOverdueUseCase
	cancelUseCase  *appborrowing.CancelWaitlistUseCase
	waitlistQuery  *appborrowing.QueryWaitlistUseCase
}

// NewBorrowingHandler 创建借阅处理器
func NewBorrowingHandler(
	borrowUseCase *appborrowing.BorrowBookUseCase,
	returnUseCase *appborrowing.ReturnBookUseCase,
	queryUseCase *appborrowing.QueryBorrowingsUseCase,
	sweepUseCase *appborrowing.SweepOverdueUseCase,
	cancelUseCase *appborrowing.CancelWaitlistUseCase,
	waitlistQuery *appborrowing.QueryWaitlistUseCase,
) *BorrowingHandler {
	return &BorrowingHandler{
		borrowUseCase: borrowUseCase,
		returnUseCase: returnUseCase,
		queryUseCase:  queryUseCase,
		sweepUseCase:  sweepUseCase,
		cancelUseCase: cancelUseCase,
		waitlistQuery: waitlistQuery,
	}
}

// Borrow 借书
// @Summary      借书
// @Description  借出一本书；无可借副本时自动加入排队并返回409
// @Tags         借阅
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.BorrowRequest true "借书请求"
// @Success      200 {object} response.Response{data=appborrowing.BorrowBookResponse}
// @Failure      404 {object} response.Response "图书不存在"
// @Failure      409 {object} response.Response "无可借副本（已入队）或重复借阅"
// @Router       /api/v1/borrowings [post]
func (h *BorrowingHandler) Borrow(c *gin.Context) {
	var req dto.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	userID := middleware.MustGetUserID(c)

	result, err := h.borrowUseCase.Execute(c.Request.Context(), appborrowing.BorrowBookRequest{
		UserID: userID,
		BookID: req.BookID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Return 还书
// @Summary      还书
// @Description  归还借阅；馆员可代任何读者归还
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "借阅记录ID"
// @Success      200 {object} response.Response{data=appborrowing.ReturnBookResponse}
// @Failure      403 {object} response.Response "不是本人的借阅"
// @Failure      409 {object} response.Response "已归还"
// @Router       /api/v1/borrowings/{id}/return [post]
func (h *BorrowingHandler) Return(c *gin.Context) {
	borrowingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.returnUseCase.Execute(c.Request.Context(), appborrowing.ReturnBookRequest{
		BorrowingID: borrowingID,
		UserID:      middleware.MustGetUserID(c),
		IsStaff:     middleware.IsStaff(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetByID 查询借阅详情
// @Summary      借阅详情
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "借阅记录ID"
// @Success      200 {object} response.Response{data=appborrowing.BorrowingView}
// @Router       /api/v1/borrowings/{id} [get]
func (h *BorrowingHandler) GetByID(c *gin.Context) {
	borrowingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.queryUseCase.GetByID(c.Request.Context(), borrowingID,
		middleware.MustGetUserID(c), middleware.IsStaff(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, view)
}

// MyBorrowings 我的借阅
// @Summary      我的借阅
// @Description  在借（含逾期）与历史分开返回
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=appborrowing.UserHistoryResponse}
// @Router       /api/v1/borrowings/my [get]
func (h *BorrowingHandler) MyBorrowings(c *gin.Context) {
	result, err := h.queryUseCase.UserHistory(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UserBorrowings 指定读者的借阅（馆员）
// @Summary      读者借阅情况
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "用户ID"
// @Success      200 {object} response.Response{data=appborrowing.UserHistoryResponse}
// @Router       /api/v1/users/{id}/borrowings [get]
func (h *BorrowingHandler) UserBorrowings(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.queryUseCase.UserHistory(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// BookBorrowings 指定图书的借阅流水（馆员）
// @Summary      图书借阅流水
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response{data=[]appborrowing.BorrowingView}
// @Router       /api/v1/books/{id}/borrowings [get]
func (h *BorrowingHandler) BookBorrowings(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	views, err := h.queryUseCase.BookHistory(c.Request.Context(), bookID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, views)
}

// List 借阅台账（馆员）
// @Summary      借阅台账
// @Description  条件过滤+排序+分页
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        user_id query int false "按读者过滤"
// @Param        book_id query int false "按图书过滤"
// @Param        status query string false "按状态过滤" Enums(borrowed, returned, overdue, lost, damaged)
// @Param        overdue_only query bool false "只看逾期"
// @Param        sort_by query string false "排序字段" Enums(borrow_date, due_date, return_date)
// @Param        sort_order query string false "排序方向" Enums(asc, desc)
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Success      200 {object} response.Response{data=response.PageData}
// @Router       /api/v1/borrowings [get]
func (h *BorrowingHandler) List(c *gin.Context) {
	var query dto.ListBorrowingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	views, total, err := h.queryUseCase.List(c.Request.Context(), appborrowing.ListParams{
		UserID:      query.UserID,
		BookID:      query.BookID,
		Status:      query.Status,
		OverdueOnly: query.OverdueOnly,
		SortBy:      query.SortBy,
		SortOrder:   query.SortOrder,
		Page:        query.Page,
		PageSize:    query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	response.SuccessWithPage(c, views, total, page, pageSize)
}

// Overdue 逾期列表（馆员）
// @Summary      逾期借阅列表
// @Description  列出前先做一次惰性巡检，结果始终是最新的
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=[]appborrowing.BorrowingView}
// @Router       /api/v1/borrowings/overdue [get]
func (h *BorrowingHandler) Overdue(c *gin.Context) {
	views, err := h.queryUseCase.ListOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, views)
}

// Sweep 手动触发逾期巡检（馆员）
// @Summary      逾期巡检
// @Description  把所有到期未还的借阅标记为逾期；幂等，可重复触发
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=appborrowing.SweepOverdueResponse}
// @Router       /api/v1/borrowings/overdue/sweep [post]
func (h *BorrowingHandler) Sweep(c *gin.Context) {
	result, err := h.sweepUseCase.Execute(c.Request.Context(), time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CancelWaitlist 撤销排队
// @Summary      撤销排队
// @Description  只能撤销本人的PENDING排队
// @Tags         排队
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "排队请求ID"
// @Success      200 {object} response.Response
// @Failure      403 {object} response.Response "不是本人的排队"
// @Failure      409 {object} response.Response "排队已完结"
// @Router       /api/v1/waitlist/{id} [delete]
func (h *BorrowingHandler) CancelWaitlist(c *gin.Context) {
	requestID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.cancelUseCase.Execute(c.Request.Context(), requestID, middleware.MustGetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"request_id": requestID, "status": "CANCELLED"})
}

// MyWaitlist 我的排队
// @Summary      我的排队记录
// @Tags         排队
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=[]appborrowing.WaitlistEntryView}
// @Router       /api/v1/waitlist/my [get]
func (h *BorrowingHandler) MyWaitlist(c *gin.Context) {
	views, err := h.waitlistQuery.ListByUser(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, views)
}

// parseIDParam 解析路径中的数字ID，非法时写400响应
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.ErrorWithCode(c, 40000, "非法的"+name+"参数")
		return 0, false
	}
	return uint(id), true
}
