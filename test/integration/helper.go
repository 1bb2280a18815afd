package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 教学说明：测试辅助工具
// 这个文件包含集成测试的通用辅助函数，遵循DRY原则（Don't Repeat Yourself）
// 将重复的代码（HTTP请求、JSON解析）封装成可复用的函数

const (
	// BaseURL API基础URL
	BaseURL = "http://localhost:8080/api/v1"
	// PingURL 健康检查URL
	PingURL = "http://localhost:8080/ping"
	// Timeout HTTP请求超时时间
	Timeout = 10 * time.Second
)

// Response 统一响应结构
type Response struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Retryable bool            `json:"retryable"`
}

// UserData 用户响应数据
type UserData struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// TokenData JWT令牌对
type TokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginData 登录响应数据
type LoginData struct {
	User  UserData  `json:"user"`
	Token TokenData `json:"token"`
}

// BookData 图书响应数据
type BookData struct {
	ID              uint   `json:"id"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Publisher       string `json:"publisher"`
	Description     string `json:"description"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	Available       bool   `json:"available"`
}

// BookListData 图书列表响应数据
type BookListData struct {
	Books    []BookData `json:"books"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// BorrowData 借书响应数据
type BorrowData struct {
	BorrowingID uint   `json:"borrowing_id"`
	BookID      uint   `json:"book_id"`
	Status      string `json:"status"`
	BorrowDate  string `json:"borrow_date"`
	DueDate     string `json:"due_date"`
}

// ReturnData 还书响应数据
type ReturnData struct {
	BorrowingID uint   `json:"borrowing_id"`
	BookID      uint   `json:"book_id"`
	Status      string `json:"status"`
	ReturnDate  string `json:"return_date"`
}

// BorrowingListData 借阅历史响应数据
type BorrowingListData struct {
	Current []BorrowingItem `json:"current"`
	Past    []BorrowingItem `json:"past"`
}

// BorrowingItem 借阅记录
type BorrowingItem struct {
	BorrowingID uint   `json:"borrowing_id"`
	UserID      uint   `json:"user_id"`
	BookID      uint   `json:"book_id"`
	Status      string `json:"status"`
	BorrowDate  string `json:"borrow_date"`
	DueDate     string `json:"due_date"`
	ReturnDate  string `json:"return_date"`
	Overdue     bool   `json:"overdue"`
}

// WaitlistItem 排队记录
type WaitlistItem struct {
	RequestID        uint   `json:"request_id"`
	BookID           uint   `json:"book_id"`
	UserID           uint   `json:"user_id"`
	Status           string `json:"status"`
	RequestDate      string `json:"request_date"`
	NotificationSent bool   `json:"notification_sent"`
}

// NotificationItem 通知记录
type NotificationItem struct {
	NotificationID string `json:"notification_id"`
	Type           string `json:"type"`
	UserID         uint   `json:"user_id"`
	BookID         uint   `json:"book_id"`
	RequestID      uint   `json:"request_id"`
	BookTitle      string `json:"book_title"`
	Message        string `json:"message"`
	Read           bool   `json:"read"`
}

// RequireServer 检查API服务是否在运行，未启动则跳过测试
//
// 教学说明：
// 集成测试依赖真实的服务进程（MySQL、Redis、API服务），
// CI或本地没有环境时用t.Skipf跳过而不是失败，
// 这样 `go test ./...` 在任何机器上都能跑通单元测试部分
func RequireServer(t *testing.T) {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(PingURL)
	if err != nil {
		t.Skipf("API服务未启动，跳过集成测试: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Skipf("API服务健康检查失败: HTTP %d", resp.StatusCode)
	}
}

// doJSON 发送HTTP请求并解析JSON响应
func doJSON(t *testing.T, method, url string, data interface{}, token string) *Response {
	t.Helper()

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		require.NoError(t, err, "JSON序列化失败")
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err, "创建HTTP请求失败")

	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: Timeout}
	resp, err := client.Do(req)
	require.NoError(t, err, "发送HTTP请求失败")
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "读取响应体失败")

	var result Response
	err = json.Unmarshal(respBody, &result)
	require.NoError(t, err, "解析JSON响应失败: %s", string(respBody))

	return &result
}

// PostJSON 发送POST请求并解析JSON响应
func PostJSON(t *testing.T, url string, data interface{}, token string) *Response {
	return doJSON(t, "POST", url, data, token)
}

// GetJSON 发送GET请求并解析JSON响应
func GetJSON(t *testing.T, url string, token string) *Response {
	return doJSON(t, "GET", url, nil, token)
}

// PutJSON 发送PUT请求并解析JSON响应
func PutJSON(t *testing.T, url string, data interface{}, token string) *Response {
	return doJSON(t, "PUT", url, data, token)
}

// DeleteJSON 发送DELETE请求并解析JSON响应
func DeleteJSON(t *testing.T, url string, token string) *Response {
	return doJSON(t, "DELETE", url, nil, token)
}

var emailSeq atomic.Int64

// GenerateTestEmail 生成唯一的测试邮箱
//
// 教学说明：
// 时间戳+自增序号确保唯一性，同一秒内注册多个用户也不冲突
func GenerateTestEmail(prefix string) string {
	return fmt.Sprintf("%s_%d_%d@test.com", prefix, time.Now().Unix(), emailSeq.Add(1))
}

// GenerateTestISBN 生成唯一的测试ISBN
//
// 教学说明：
// ISBN-13格式：978 + 10位数字
// 使用时间戳的后10位确保唯一性
func GenerateTestISBN() string {
	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("978%010d", timestamp%10000000000)
}

// RegisterTestUser 注册测试用户并返回Token
//
// 教学说明：
// 这是一个"高阶"辅助函数，封装了注册+登录的完整流程
// 简化了测试代码，让测试更关注业务逻辑而非基础设施
func RegisterTestUser(t *testing.T, nickname string) (userID uint, token string) {
	t.Helper()

	// 1. 注册
	email := GenerateTestEmail(nickname)
	registerReq := map[string]string{
		"email":    email,
		"password": "Test12345",
		"nickname": nickname,
	}

	registerResp := PostJSON(t, BaseURL+"/users/register", registerReq, "")
	require.Equal(t, 0, registerResp.Code, "注册失败: %s", registerResp.Message)

	var userData UserData
	err := json.Unmarshal(registerResp.Data, &userData)
	require.NoError(t, err, "解析注册响应失败")

	// 2. 登录
	loginReq := map[string]string{
		"email":    email,
		"password": "Test12345",
	}

	loginResp := PostJSON(t, BaseURL+"/users/login", loginReq, "")
	require.Equal(t, 0, loginResp.Code, "登录失败: %s", loginResp.Message)

	var loginData LoginData
	err = json.Unmarshal(loginResp.Data, &loginData)
	require.NoError(t, err, "解析登录响应失败")

	return userData.ID, loginData.Token.AccessToken
}

// LibrarianToken 获取馆员Token
//
// 教学说明：
// 图书管理接口需要librarian以上角色，而角色提升又需要admin。
// 测试环境约定：数据库迁移时预置一个admin账号，
// 凭据通过环境变量传入（CI中配置，默认值匹配本地docker-compose种子数据）。
// 拿到admin后注册一个新用户并提升为librarian，避免测试间互相干扰。
func LibrarianToken(t *testing.T) string {
	t.Helper()

	adminEmail := os.Getenv("LIBRARY_TEST_ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@library.local"
	}
	adminPassword := os.Getenv("LIBRARY_TEST_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin12345"
	}

	loginReq := map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	}

	loginResp := PostJSON(t, BaseURL+"/users/login", loginReq, "")
	if loginResp.Code != 0 {
		t.Skipf("admin账号不可用（%s），跳过需要馆员权限的测试", loginResp.Message)
	}

	var adminData LoginData
	err := json.Unmarshal(loginResp.Data, &adminData)
	require.NoError(t, err, "解析admin登录响应失败")

	// 注册新用户
	email := GenerateTestEmail("librarian")
	password := "Test12345"
	registerResp := PostJSON(t, BaseURL+"/users/register", map[string]string{
		"email":    email,
		"password": password,
		"nickname": "测试馆员",
	}, "")
	require.Equal(t, 0, registerResp.Code, "注册失败: %s", registerResp.Message)

	var userData UserData
	err = json.Unmarshal(registerResp.Data, &userData)
	require.NoError(t, err, "解析注册响应失败")

	// admin提升其为librarian
	roleReq := map[string]string{"role": "librarian"}
	roleResp := PutJSON(t, fmt.Sprintf("%s/users/%d/role", BaseURL, userData.ID),
		roleReq, adminData.Token.AccessToken)
	require.Equal(t, 0, roleResp.Code, "提升librarian失败: %s", roleResp.Message)

	// 角色写在JWT claims里，重新登录才会拿到带新角色的Token
	relogin := PostJSON(t, BaseURL+"/users/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, 0, relogin.Code, "提升角色后重新登录失败: %s", relogin.Message)

	var librarianData LoginData
	err = json.Unmarshal(relogin.Data, &librarianData)
	require.NoError(t, err, "解析登录响应失败")

	return librarianData.Token.AccessToken
}

// AddTestBook 录入测试图书并返回图书ID
//
// 教学说明：
// 封装了图书录入流程，返回bookID供后续测试使用
func AddTestBook(t *testing.T, token string, title string, copies int) uint {
	t.Helper()

	isbn := GenerateTestISBN()
	bookReq := map[string]interface{}{
		"isbn":         isbn,
		"title":        title,
		"author":       "测试作者",
		"publisher":    "测试出版社",
		"description":  "集成测试用图书",
		"total_copies": copies,
	}

	bookResp := PostJSON(t, BaseURL+"/books", bookReq, token)
	require.Equal(t, 0, bookResp.Code, "图书录入失败: %s", bookResp.Message)

	var bookData BookData
	err := json.Unmarshal(bookResp.Data, &bookData)
	require.NoError(t, err, "解析图书响应失败")

	return bookData.ID
}

// GetBook 查询图书详情
func GetBook(t *testing.T, bookID uint) BookData {
	t.Helper()

	resp := GetJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), "")
	require.Equal(t, 0, resp.Code, "查询图书失败: %s", resp.Message)

	var bookData BookData
	err := json.Unmarshal(resp.Data, &bookData)
	require.NoError(t, err, "解析图书响应失败")

	return bookData
}
