// Package config 管理 CLI 客户端配置
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config CLI 配置结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Session SessionConfig `mapstructure:"session"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	URL   string `mapstructure:"url"`    // HTTP API 地址
	WSURL string `mapstructure:"ws_url"` // WebSocket 地址
}

// AuthConfig 凭证配置
// access_token 即 Web 端 localStorage 里的同名令牌，在 CLI 中落盘保存
type AuthConfig struct {
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	Username     string `mapstructure:"username"`
}

// SessionConfig 实时会话配置
type SessionConfig struct {
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds"` // 无消息超时
}

var (
	cfg        *Config
	configPath string
	configDir  string
)

// Init 初始化配置
func Init() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("获取用户目录失败: %w", err)
	}

	configDir = filepath.Join(home, ".yatra-planner")
	configPath = filepath.Join(configDir, "config.yaml")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 默认值
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("server.ws_url", "ws://localhost:8080")
	viper.SetDefault("auth.access_token", "")
	viper.SetDefault("auth.refresh_token", "")
	viper.SetDefault("auth.username", "")
	viper.SetDefault("session.idle_timeout_seconds", 120)

	if err := viper.ReadInConfig(); err != nil {
		// 文件不存在时写入默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := viper.SafeWriteConfig(); err != nil {
				// 忽略文件已存在的错误
			}
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}

	return nil
}

// Get 获取配置
func Get() *Config {
	return cfg
}

// SaveAuth 保存访问/刷新 Token
func SaveAuth(accessToken, refreshToken, username string) error {
	viper.Set("auth.access_token", accessToken)
	viper.Set("auth.refresh_token", refreshToken)
	if username != "" {
		viper.Set("auth.username", username)
	}
	if cfg != nil {
		cfg.Auth.AccessToken = accessToken
		cfg.Auth.RefreshToken = refreshToken
		if username != "" {
			cfg.Auth.Username = username
		}
	}
	return viper.WriteConfig()
}

// GetAccessToken 获取访问 Token
func GetAccessToken() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.AccessToken
}

// GetRefreshToken 获取刷新 Token
func GetRefreshToken() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.RefreshToken
}

// GetUsername 获取已登录的用户名
func GetUsername() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.Username
}

// GetServerURL 获取服务器地址
func GetServerURL() string {
	if cfg == nil {
		return "http://localhost:8080"
	}
	return cfg.Server.URL
}

// GetWSURL 获取 WebSocket 地址
func GetWSURL() string {
	if cfg == nil {
		return "ws://localhost:8080"
	}
	return cfg.Server.WSURL
}

// GetIdleTimeout 获取会话空闲超时
func GetIdleTimeout() time.Duration {
	if cfg == nil || cfg.Session.IdleTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(cfg.Session.IdleTimeoutSeconds) * time.Second
}

// ClearToken 清除本地凭证
func ClearToken() error {
	viper.Set("auth.access_token", "")
	viper.Set("auth.refresh_token", "")
	viper.Set("auth.username", "")
	if cfg != nil {
		cfg.Auth.AccessToken = ""
		cfg.Auth.RefreshToken = ""
		cfg.Auth.Username = ""
	}
	return viper.WriteConfig()
}

// SetServerURL 设置服务器地址
// http/https 地址会同步推导出 ws/wss 地址，其他写法不动 ws_url
func SetServerURL(url string) {
	viper.Set("server.url", url)
	if cfg != nil {
		cfg.Server.URL = url
	}

	if !strings.HasPrefix(url, "http") {
		return
	}
	// http -> ws, https -> wss
	wsURL := "ws" + url[len("http"):]
	viper.Set("server.ws_url", wsURL)
	if cfg != nil {
		cfg.Server.WSURL = wsURL
	}
}

// IsLoggedIn 检查是否已登录
func IsLoggedIn() bool {
	return cfg != nil && cfg.Auth.AccessToken != ""
}

// GetDeviceUUID 获取或生成设备唯一标识
// 持久化存储在 ~/.yatra-planner/device_id 文件中，重装或改主机名不影响
func GetDeviceUUID() (string, error) {
	deviceIDPath := filepath.Join(configDir, "device_id")

	data, err := os.ReadFile(deviceIDPath)
	if err == nil {
		deviceUUID := string(data)
		if deviceUUID != "" {
			return deviceUUID, nil
		}
	}

	newUUID := uuid.New().String()

	if err := os.WriteFile(deviceIDPath, []byte(newUUID), 0600); err != nil {
		return "", fmt.Errorf("保存设备 UUID 失败: %w", err)
	}

	return newUUID, nil
}
