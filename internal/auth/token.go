// Package auth 负责访问令牌的有效性检查与刷新
// WebSocket 握手无法参与 REST 的 401 刷新拦截，所以开启会话前
// 必须在这里把 token 预先刷新好
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"yatra-planner-cli/internal/api"
)

// 定义错误类型
var (
	ErrNotLoggedIn = errors.New("尚未登录")       // 本地没有任何凭证
	ErrAuth        = errors.New("凭证无效或已过期") // 预检/刷新失败，无法开启会话
)

// expireSkew 过期判定的提前量
// 快过期的 token 也按过期处理，避免握手途中失效
const expireSkew = 30 * time.Second

// API 令牌预检所需的最小接口
type API interface {
	Me(accessToken string) (*api.UserInfo, error)
	Refresh(refreshToken string) (*api.LoginResponse, error)
}

// Expired 判断 JWT 是否已过期或即将过期
// 只解析 exp 声明，不验证签名（签名由服务端校验）；
// 解析不出来的 token 一律按过期处理
func Expired(tokenString string) bool {
	if tokenString == "" {
		return true
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return time.Now().Add(expireSkew).After(exp.Time)
}

// EnsureFresh 保证访问令牌可用，必要时刷新
//
// 流程：本地过期检查 -> GET /auth/me 预检 -> 401 则用 refresh token
// 换新。返回（可能已更新的）访问/刷新令牌，调用方负责持久化。
// 任何一步失败都返回 ErrAuth，不会开启连接。
func EnsureFresh(client API, accessToken, refreshToken string) (string, string, error) {
	if accessToken == "" {
		return "", "", ErrNotLoggedIn
	}

	needRefresh := Expired(accessToken)

	if !needRefresh {
		_, err := client.Me(accessToken)
		switch {
		case err == nil:
			return accessToken, refreshToken, nil
		case errors.Is(err, api.ErrUnauthorized):
			needRefresh = true
		default:
			return "", "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
	}

	if refreshToken == "" {
		return "", "", ErrAuth
	}

	resp, err := client.Refresh(refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	newRefresh := resp.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	return resp.AccessToken, newRefresh, nil
}
