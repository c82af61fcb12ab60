package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"yatra-planner-cli/internal/auth"
	"yatra-planner-cli/internal/websocket"
)

// Credentials 开启会话所需的凭证
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Manager 会话管理器
// 保证每种目标类型（生成/编辑）同时只有一条存活连接：
// 对同一类型再次 Start 会先关掉旧会话，避免两条流竞争写同一份文档
type Manager struct {
	wsBaseURL   string
	api         auth.API
	idleTimeout time.Duration

	// OnTokenRefresh 预检触发刷新后回调新凭证，调用方负责持久化
	OnTokenRefresh func(accessToken, refreshToken string)

	mu     sync.Mutex
	active map[Kind]*Session

	log *logrus.Entry
}

// NewManager 创建会话管理器
// wsBaseURL: WebSocket 基础地址（如 ws://localhost:8080）
// apiClient: 用于开启会话前的令牌预检
func NewManager(wsBaseURL string, apiClient auth.API, idleTimeout time.Duration) *Manager {
	return &Manager{
		wsBaseURL:   wsBaseURL,
		api:         apiClient,
		idleTimeout: idleTimeout,
		active:      make(map[Kind]*Session),
		log:         logrus.WithField("component", "session-manager"),
	}
}

// Start 开启一个新会话
//
// 步骤：
//  1. 令牌预检（过期检查 + GET /auth/me + 必要时刷新），失败返回
//     auth.ErrAuth，不建立任何连接
//  2. 关闭同类型的旧会话（幂等）
//  3. 建立连接，连接成功后把 target.Prompt 作为第一帧发出
//
// subscriber 在拨号前就绑定到会话上，第一帧也不会漏掉；
// 每个会话只有这一个订阅者，保证每条消息只被归约一次
func (m *Manager) Start(target Target, creds Credentials, subscriber func(Update)) (*Session, error) {
	accessToken, refreshToken, err := auth.EnsureFresh(m.api, creds.AccessToken, creds.RefreshToken)
	if err != nil {
		return nil, err
	}
	if accessToken != creds.AccessToken && m.OnTokenRefresh != nil {
		m.OnTokenRefresh(accessToken, refreshToken)
	}

	// 先腾出位置再拨号，保证任何时刻同类型最多一条连接
	m.closeActive(target.Kind)

	client := websocket.NewClient(m.endpoint(target), accessToken)
	client.SetIdleTimeout(m.idleTimeout)

	s := newSession(target, client, subscriber)

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("开启会话失败: %w", err)
	}

	// 连接建立后立即发送第一帧 prompt，每条连接只发一次
	if err := client.SendPrompt(target.Prompt); err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("发送 prompt 失败: %w", err)
	}

	m.mu.Lock()
	m.active[target.Kind] = s
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"kind":    string(target.Kind),
		"plan_id": target.PlanID,
	}).Info("会话已开启")

	return s, nil
}

// Active 返回指定类型当前存活的会话，没有则返回 nil
func (m *Manager) Active(kind Kind) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[kind]
}

// Close 关闭指定类型的会话（幂等）
func (m *Manager) Close(kind Kind) {
	m.closeActive(kind)
}

// CloseAll 关闭所有会话，程序退出前调用
func (m *Manager) CloseAll() {
	m.Close(KindGenerate)
	m.Close(KindEdit)
}

func (m *Manager) closeActive(kind Kind) {
	m.mu.Lock()
	s := m.active[kind]
	delete(m.active, kind)
	m.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// endpoint 构造目标对应的 WebSocket 地址
// 生成新行程: /ai/generate；编辑已有行程: /ai/<planID>
func (m *Manager) endpoint(target Target) string {
	if target.Kind == KindEdit {
		return fmt.Sprintf("%s/ai/%d", m.wsBaseURL, target.PlanID)
	}
	return m.wsBaseURL + "/ai/generate"
}
