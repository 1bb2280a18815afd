package integration

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 教学说明：图书模块集成测试
// 图书的写操作需要librarian角色，读操作对所有人开放（包括未登录用户）

// TestBookAdd 测试图书录入
func TestBookAdd(t *testing.T) {
	RequireServer(t)
	token := LibrarianToken(t)

	t.Run("正常录入", func(t *testing.T) {
		isbn := GenerateTestISBN()
		bookReq := map[string]interface{}{
			"isbn":         isbn,
			"title":        "《Go语言实战》",
			"author":       "测试作者",
			"publisher":    "测试出版社",
			"description":  "集成测试用图书",
			"total_copies": 3,
		}

		resp := PostJSON(t, BaseURL+"/books", bookReq, token)
		assert.Equal(t, 0, resp.Code, "录入应该成功: %s", resp.Message)

		var data BookData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err)

		assert.Equal(t, isbn, data.ISBN)
		assert.Equal(t, 3, data.TotalCopies, "总副本数应该是3")
		assert.Equal(t, 3, data.AvailableCopies, "新书所有副本都可借")
		assert.True(t, data.Available)

		t.Logf("✓ 图书录入成功，ID: %d", data.ID)
	})

	t.Run("重复ISBN应失败", func(t *testing.T) {
		isbn := GenerateTestISBN()
		bookReq := map[string]interface{}{
			"isbn":         isbn,
			"title":        "《第一本》",
			"author":       "测试作者",
			"publisher":    "测试出版社",
			"total_copies": 1,
		}

		resp1 := PostJSON(t, BaseURL+"/books", bookReq, token)
		require.Equal(t, 0, resp1.Code, "第一次录入应该成功")

		bookReq["title"] = "《第二本》"
		resp2 := PostJSON(t, BaseURL+"/books", bookReq, token)
		assert.Equal(t, 40005, resp2.Code, "重复ISBN应该返回40005")

		t.Logf("✓ 重复ISBN正确返回错误: %s", resp2.Message)
	})

	t.Run("普通用户无权录入", func(t *testing.T) {
		_, userToken := RegisterTestUser(t, "reader")
		bookReq := map[string]interface{}{
			"isbn":         GenerateTestISBN(),
			"title":        "《越权测试》",
			"author":       "测试作者",
			"publisher":    "测试出版社",
			"total_copies": 1,
		}

		resp := PostJSON(t, BaseURL+"/books", bookReq, userToken)
		assert.NotEqual(t, 0, resp.Code, "普通用户不应该能录入图书")

		t.Logf("✓ 普通用户录入被拒绝: %s", resp.Message)
	})
}

// TestBookQuery 测试图书查询（公开接口，无需登录）
func TestBookQuery(t *testing.T) {
	RequireServer(t)
	token := LibrarianToken(t)

	bookID := AddTestBook(t, token, "《查询测试》", 2)

	t.Run("未登录也能查详情", func(t *testing.T) {
		book := GetBook(t, bookID)
		assert.Equal(t, "《查询测试》", book.Title)
		assert.Equal(t, 2, book.AvailableCopies)

		t.Logf("✓ 公开查询成功: %s", book.Title)
	})

	t.Run("图书不存在返回40402", func(t *testing.T) {
		resp := GetJSON(t, BaseURL+"/books/999999999", "")
		assert.Equal(t, 40402, resp.Code)

		t.Logf("✓ 不存在的图书正确返回错误: %s", resp.Message)
	})

	t.Run("列表分页", func(t *testing.T) {
		resp := GetJSON(t, BaseURL+"/books?page=1&page_size=5", "")
		require.Equal(t, 0, resp.Code, "列表查询失败: %s", resp.Message)

		var data BookListData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err)

		assert.Equal(t, 1, data.Page)
		assert.Equal(t, 5, data.PageSize)
		assert.LessOrEqual(t, len(data.Books), 5, "返回条数不应该超过page_size")

		t.Logf("✓ 分页查询成功，总数: %d", data.Total)
	})
}

// TestBookUpdateCopies 测试副本数调整
//
// 教学说明：
// 调整总副本数时可借数按"新总数-在借数"重算，
// 在借数超过新总数时可借数截断为0（不追回已借出的书）
func TestBookUpdateCopies(t *testing.T) {
	RequireServer(t)
	token := LibrarianToken(t)

	t.Run("扩充副本", func(t *testing.T) {
		bookID := AddTestBook(t, token, "《扩充测试》", 2)

		resp := PutJSON(t, fmt.Sprintf("%s/books/%d/copies", BaseURL, bookID),
			map[string]int{"total_copies": 5}, token)
		require.Equal(t, 0, resp.Code, "调整副本数失败: %s", resp.Message)

		book := GetBook(t, bookID)
		assert.Equal(t, 5, book.TotalCopies)
		assert.Equal(t, 5, book.AvailableCopies, "没有在借时可借数等于总数")

		t.Logf("✓ 扩充成功: total=%d available=%d", book.TotalCopies, book.AvailableCopies)
	})

	t.Run("缩减至低于在借数", func(t *testing.T) {
		bookID := AddTestBook(t, token, "《缩减测试》", 2)

		// 借出一本
		_, readerToken := RegisterTestUser(t, "shrink_reader")
		borrowResp := PostJSON(t, BaseURL+"/borrowings",
			map[string]uint{"book_id": bookID}, readerToken)
		require.Equal(t, 0, borrowResp.Code, "借书失败: %s", borrowResp.Message)

		// 总数缩到1（在借1本）
		resp := PutJSON(t, fmt.Sprintf("%s/books/%d/copies", BaseURL, bookID),
			map[string]int{"total_copies": 1}, token)
		require.Equal(t, 0, resp.Code, "调整副本数失败: %s", resp.Message)

		book := GetBook(t, bookID)
		assert.Equal(t, 1, book.TotalCopies)
		assert.Equal(t, 0, book.AvailableCopies, "在借1本、总数1本，可借数应该是0")
		assert.False(t, book.Available)

		t.Logf("✓ 缩减后可借数正确截断为0")
	})

	t.Run("负数被拒绝", func(t *testing.T) {
		bookID := AddTestBook(t, token, "《负数测试》", 1)

		resp := PutJSON(t, fmt.Sprintf("%s/books/%d/copies", BaseURL, bookID),
			map[string]int{"total_copies": -1}, token)
		assert.NotEqual(t, 0, resp.Code, "负数副本数应该被拒绝")

		t.Logf("✓ 负数副本数正确返回错误: %s", resp.Message)
	})
}

// TestBookDelete 删除图书：无在借可删，有在借拒绝
func TestBookDelete(t *testing.T) {
	RequireServer(t)
	token := LibrarianToken(t)

	t.Run("正常删除", func(t *testing.T) {
		bookID := AddTestBook(t, token, "《待删除》", 1)

		resp := DeleteJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), token)
		require.Equal(t, 0, resp.Code, "删除失败: %s", resp.Message)

		// 删除后详情查不到
		detail := GetJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), "")
		assert.Equal(t, 40402, detail.Code, "删除后应该查不到图书")

		t.Logf("✓ 删除成功,详情返回: %s", detail.Message)
	})

	t.Run("有在借副本时拒绝删除", func(t *testing.T) {
		bookID := AddTestBook(t, token, "《在借不可删》", 1)

		_, readerToken := RegisterTestUser(t, "del_reader")
		borrowResp := PostJSON(t, BaseURL+"/borrowings",
			map[string]uint{"book_id": bookID}, readerToken)
		require.Equal(t, 0, borrowResp.Code, "借书失败: %s", borrowResp.Message)

		resp := DeleteJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), token)
		assert.Equal(t, 40008, resp.Code, "在借中的图书不应被删除")

		var borrowData BorrowData
		require.NoError(t, json.Unmarshal(borrowResp.Data, &borrowData))

		// 归还后可以删除
		returnResp := PostJSON(t, fmt.Sprintf("%s/borrowings/%d/return", BaseURL, borrowData.BorrowingID),
			nil, readerToken)
		require.Equal(t, 0, returnResp.Code, "还书失败: %s", returnResp.Message)

		resp = DeleteJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), token)
		assert.Equal(t, 0, resp.Code, "归还后删除应该成功: %s", resp.Message)

		t.Logf("✓ 在借时拒绝、归还后放行")
	})

	t.Run("普通用户无权删除", func(t *testing.T) {
		bookID := AddTestBook(t, token, "《权限测试删除》", 1)

		_, readerToken := RegisterTestUser(t, "del_plain")
		resp := DeleteJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), readerToken)
		assert.Equal(t, 40104, resp.Code, "普通用户不应有删除权限")

		t.Logf("✓ 普通用户删除被拒: %s", resp.Message)
	})
}
