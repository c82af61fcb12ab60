// Package session 管理行程生成/编辑的实时会话
// 每个会话对应一条 WebSocket 连接：发送 prompt，接收服务端推送的
// 文档快照，归约到本地视图，直到收到终止消息或连接关闭
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"yatra-planner-cli/internal/plan"
	"yatra-planner-cli/internal/websocket"
)

// ErrNotConnected 在非 open 状态下发送消息
var ErrNotConnected = errors.New("会话未连接")

// Kind 会话目标类型
type Kind string

const (
	KindGenerate Kind = "generate" // 根据 prompt 生成新行程
	KindEdit     Kind = "edit"     // 编辑已有行程
)

// Target 会话目标
type Target struct {
	Kind   Kind
	PlanID int64  // Kind 为 edit 时有效
	Prompt string // 连接建立后发送的第一帧
}

// Update 推送给订阅者的会话状态快照
// Document 只增不改：每次结构性消息都产生新引用，订阅方可以用
// 引用相等性判断变更
type Update struct {
	Document     *plan.Plan
	Phase        plan.Phase
	ErrorText    string // Phase 为 failed 时的用户可见错误
	ResponseText string // completed 附带的 AI 回复文本，只出现一次
}

// Session 一次实时会话
// 由 Manager 创建，同一目标类型同时只会有一个存活实例。
// 订阅者在创建时绑定且只有一个，保证每帧只被归约一次
type Session struct {
	target     Target
	client     *websocket.Client
	subscriber func(Update)

	mu      sync.Mutex
	doc     *plan.Plan
	phase   plan.Phase
	errText string
	closed  bool // 用户主动关闭标记，关闭后到达的帧一律丢弃

	log *logrus.Entry
}

func newSession(target Target, client *websocket.Client, subscriber func(Update)) *Session {
	s := &Session{
		target:     target,
		client:     client,
		subscriber: subscriber,
		phase:      plan.PhaseConnecting,
		log: logrus.WithFields(logrus.Fields{
			"component": "session",
			"kind":      string(target.Kind),
		}),
	}
	client.OnMessage(s.handleMessage)
	client.OnClose(s.handleClose)
	return s
}

// Target 返回会话目标
func (s *Session) Target() Target {
	return s.target
}

// Snapshot 返回当前状态快照
func (s *Session) Snapshot() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Update{Document: s.doc, Phase: s.phase, ErrorText: s.errText}
}

// Send 在已打开的会话上发送后续 prompt
// 会话不在 open 状态时返回 ErrNotConnected，不重试不排队
func (s *Session) Send(prompt string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed || !s.client.IsRunning() {
		return ErrNotConnected
	}
	if err := s.client.SendPrompt(prompt); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// Close 关闭会话
// 幂等；这是唯一的取消手段（不通知服务端，直接丢弃传输层）
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.client.Disconnect()
}

// Closed 判断会话是否已被关闭
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleMessage 处理一帧服务端消息
// 在读协程中同步执行，严格按到达顺序归约
func (s *Session) handleMessage(msg *websocket.Message) {
	s.mu.Lock()
	if s.closed {
		// 关闭后仍在途的帧直接丢弃，防止旧连接污染文档
		s.mu.Unlock()
		return
	}

	var update Update
	var publish func(Update)
	var disconnect bool

	switch {
	case plan.Structural(msg.Type):
		s.doc = plan.Apply(s.doc, msg.Type, msg.Response)
		s.phase = plan.PhaseStreaming
		update = Update{Document: s.doc, Phase: s.phase}
		publish = s.subscriber

	case msg.Type == plan.MsgCompleted || msg.Type == plan.MsgComplete:
		s.phase = plan.PhaseComplete
		update = Update{Document: s.doc, Phase: s.phase, ResponseText: msg.ResponseText()}
		publish = s.subscriber
		disconnect = true

	case msg.Type == plan.MsgError:
		// 出错的生成不会自行恢复，失败即关闭连接
		s.phase = plan.PhaseFailed
		s.errText = msg.ErrorText()
		update = Update{Document: s.doc, Phase: s.phase, ErrorText: s.errText}
		publish = s.subscriber
		disconnect = true

	case msg.Type == plan.MsgStatus || msg.Type == plan.MsgProgress:
		// 仅提示进度，不改动任何状态
		s.log.WithField("type", msg.Type).Debug("收到进度消息")

	default:
		s.log.WithField("type", msg.Type).Warn("未知消息类型，已忽略")
	}
	s.mu.Unlock()

	if publish != nil {
		publish(update)
	}
	if disconnect {
		s.Close()
	}
}

// handleClose 处理连接关闭
// 未到终态就断开（超时、网络错误、服务端异常关闭）按失败处理；
// 用户主动 Close 的不再改动状态
func (s *Session) handleClose() {
	s.mu.Lock()
	if s.closed || s.phase.Terminal() {
		s.mu.Unlock()
		return
	}
	s.phase = plan.PhaseFailed
	s.errText = "连接已断开，请重试"
	update := Update{Document: s.doc, Phase: s.phase, ErrorText: s.errText}
	publish := s.subscriber
	s.closed = true
	s.mu.Unlock()

	s.log.Warn("连接在生成完成前断开")
	if publish != nil {
		publish(update)
	}
}
