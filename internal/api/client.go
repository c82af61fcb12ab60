// Package api 封装与行程服务的 HTTP API 交互
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"yatra-planner-cli/internal/plan"
)

// ErrUnauthorized 访问令牌无效或已过期（HTTP 401）
// 调用方据此触发刷新流程
var ErrUnauthorized = errors.New("未授权，token 无效或已过期")

// Client API 客户端
// baseURL: 例如 http://localhost:8080
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 API 客户端
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// --- 通用响应 ---
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// --- 认证 ---
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login 使用用户名密码登录
// deviceUUID 是本机持久化的设备标识，服务端用它区分登录来源
func (c *Client) Login(username, password, deviceUUID string) (*LoginResponse, error) {
	body := map[string]string{
		"username":    username,
		"password":    password,
		"device_uuid": deviceUUID,
	}
	resp, err := c.post("/auth/login", body, "")
	if err != nil {
		return nil, err
	}
	var result LoginResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("解析登录响应失败: %w", err)
	}
	return &result, nil
}

// Refresh 使用 refresh token 换取新的访问令牌
func (c *Client) Refresh(refreshToken string) (*LoginResponse, error) {
	body := map[string]string{
		"refresh_token": refreshToken,
	}
	resp, err := c.post("/auth/refresh", body, "")
	if err != nil {
		return nil, err
	}
	var result LoginResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("解析刷新响应失败: %w", err)
	}
	return &result, nil
}

// UserInfo 当前登录用户信息
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Me 获取当前用户信息
// 开启 WebSocket 会话前用它做一次令牌预检：返回 ErrUnauthorized
// 说明需要先刷新 token
func (c *Client) Me(accessToken string) (*UserInfo, error) {
	resp, err := c.get("/auth/me", accessToken)
	if err != nil {
		return nil, err
	}
	var result UserInfo
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("解析用户信息失败: %w", err)
	}
	return &result, nil
}

// --- 行程 CRUD（实时生成流程之外的普通增删改查）---

// PlanSummary 行程列表项
type PlanSummary struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DayCount    int    `json:"day_count"`
}

// ListPlans 获取当前用户的行程列表
func (c *Client) ListPlans(accessToken string) ([]PlanSummary, error) {
	resp, err := c.get("/plans", accessToken)
	if err != nil {
		return nil, err
	}
	var result []PlanSummary
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("解析行程列表失败: %w", err)
	}
	return result, nil
}

// GetPlan 获取单个行程的完整文档
func (c *Client) GetPlan(accessToken string, planID int64) (*plan.Plan, error) {
	resp, err := c.get(fmt.Sprintf("/plans/%d", planID), accessToken)
	if err != nil {
		return nil, err
	}
	var result plan.Plan
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("解析行程失败: %w", err)
	}
	return &result, nil
}

// DeletePlan 删除行程
func (c *Client) DeletePlan(accessToken string, planID int64) error {
	_, err := c.request("DELETE", fmt.Sprintf("/plans/%d", planID), nil, accessToken)
	return err
}

// --- 通用请求封装 ---
func (c *Client) get(path string, accessToken string) (*APIResponse, error) {
	return c.request("GET", path, nil, accessToken)
}

func (c *Client) post(path string, body interface{}, accessToken string) (*APIResponse, error) {
	return c.request("POST", path, body, accessToken)
}

func (c *Client) request(method, path string, body interface{}, accessToken string) (*APIResponse, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*APIResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API 错误: %s", apiResp.Message)
	}

	return &apiResp, nil
}
