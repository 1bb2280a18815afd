package handler

import (
	"github.com/gin-gonic/gin"

	appbook "github.com/xiebiao/library/internal/application/book"
	"github.com/xiebiao/library/internal/interface/http/dto"
	"github.com/xiebiao/library/pkg/response"
)

// BookHandler 图书HTTP处理器
type BookHandler struct {
	manageUseCase *appbook.ManageBooksUseCase
	queryUseCase  *appbook.QueryBooksUseCase
}

// NewBookHandler 创建图书处理器
func NewBookHandler(manageUseCase *appbook.ManageBooksUseCase, queryUseCase *appbook.QueryBooksUseCase) *BookHandler {
	return &BookHandler{
		manageUseCase: manageUseCase,
		queryUseCase:  queryUseCase,
	}
}

// AddBook 新书上架
// @Summary      新书上架
// @Description  馆员登记新书，全部副本初始可借
// @Tags         图书
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body appbook.AddBookRequest true "图书信息"
// @Success      200 {object} response.Response{data=appbook.BookView}
// @Failure      400 {object} response.Response "参数错误"
// @Failure      409 {object} response.Response "ISBN已存在"
// @Router       /api/v1/books [post]
func (h *BookHandler) AddBook(c *gin.Context) {
	var req appbook.AddBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	result, err := h.manageUseCase.AddBook(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetBook 图书详情
// @Summary      图书详情
// @Description  详情走Redis缓存，缓存故障自动降级直查数据库
// @Tags         图书
// @Produce      json
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response{data=appbook.BookView}
// @Failure      404 {object} response.Response "图书不存在"
// @Router       /api/v1/books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.queryUseCase.GetByID(c.Request.Context(), bookID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, view)
}

// ListBooks 图书列表
// @Summary      图书列表
// @Tags         图书
// @Produce      json
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Param        keyword query string false "搜索关键词（标题/作者/出版社）"
// @Param        available_only query bool false "只看可借"
// @Success      200 {object} response.Response{data=appbook.ListResponse}
// @Router       /api/v1/books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	var req appbook.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	result, err := h.queryUseCase.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateBook 更新图书信息
// @Summary      更新图书信息
// @Description  馆员修改描述性字段，副本数走盘点接口
// @Tags         图书
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Param        request body appbook.UpdateBookInfoRequest true "图书信息"
// @Success      200 {object} response.Response{data=appbook.BookView}
// @Router       /api/v1/books/{id} [put]
func (h *BookHandler) UpdateBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req appbook.UpdateBookInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	result, err := h.manageUseCase.UpdateInfo(c.Request.Context(), bookID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateCopies 盘点副本数
// @Summary      盘点副本数
// @Description  修正总副本数并重算可借数；与借还抢同一把行锁
// @Tags         图书
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Param        request body dto.UpdateCopiesRequest true "新的总副本数"
// @Success      200 {object} response.Response{data=appbook.BookView}
// @Failure      400 {object} response.Response "副本数为负"
// @Router       /api/v1/books/{id}/copies [put]
func (h *BookHandler) UpdateCopies(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateCopiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	result, err := h.manageUseCase.UpdateCopies(c.Request.Context(), bookID, *req.TotalCopies)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteBook 删除图书
// @Summary      删除图书
// @Description  下架图书；存在在借副本时拒绝删除
// @Tags         图书
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response
// @Failure      400 {object} response.Response "尚有在借副本"
// @Failure      404 {object} response.Response "图书不存在"
// @Router       /api/v1/books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.manageUseCase.DeleteBook(c.Request.Context(), bookID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"book_id": bookID})
}
