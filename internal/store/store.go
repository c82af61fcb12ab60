// Package store 把会话层桥接到界面层
// 维护当前文档快照、会话阶段和聊天记录，界面只读这里的状态，
// 用户输入也从这里进入会话层
package store

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"yatra-planner-cli/internal/plan"
	"yatra-planner-cli/internal/session"
)

// PlanStore 行程会话状态仓库
// 所有方法并发安全；OnChange 回调在持锁之外触发
type PlanStore struct {
	manager *session.Manager
	creds   func() session.Credentials // 每次开启会话时取最新凭证

	mu           sync.Mutex
	activePlanID int64 // 0 表示生成新行程，否则为正在编辑的行程
	doc          *plan.Plan
	phase        plan.Phase
	errText      string
	chat         []plan.ChatMessage
	seq          int
	current      *session.Session
	epoch        int // 每次开启/切换会话递增，旧会话的更新据此丢弃
	onChange     func()

	log *logrus.Entry
}

// NewPlanStore 创建状态仓库
func NewPlanStore(manager *session.Manager, creds func() session.Credentials) *PlanStore {
	return &PlanStore{
		manager: manager,
		creds:   creds,
		phase:   plan.PhaseIdle,
		log:     logrus.WithField("component", "store"),
	}
}

// OnChange 注册状态变更回调，界面用它触发重绘
func (p *PlanStore) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Document 当前文档快照
func (p *PlanStore) Document() *plan.Plan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

// Phase 当前会话阶段
func (p *PlanStore) Phase() plan.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// ErrorText 最近一次失败的用户可见错误文本
func (p *PlanStore) ErrorText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errText
}

// ChatMessages 聊天记录副本，按插入顺序排列
func (p *PlanStore) ChatMessages() []plan.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]plan.ChatMessage, len(p.chat))
	copy(out, p.chat)
	return out
}

// ActivePlanID 当前绑定的行程 ID，0 表示生成模式
func (p *PlanStore) ActivePlanID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activePlanID
}

// SwitchPlan 切换到另一个行程
// 关闭仍在进行的旧会话（其后续消息全部丢弃），清空聊天记录，
// 用给定文档作为初始快照
func (p *PlanStore) SwitchPlan(planID int64, doc *plan.Plan) {
	p.mu.Lock()
	old := p.current
	p.current = nil
	p.epoch++
	p.activePlanID = planID
	p.doc = doc
	p.phase = plan.PhaseIdle
	p.errText = ""
	p.chat = nil
	p.seq = 0
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
	p.notify()
}

// Reset 界面卸载时调用：关闭会话并丢弃本地状态
// 文档的持久化形态在服务端，本地副本只是缓存
func (p *PlanStore) Reset() {
	p.SwitchPlan(0, nil)
}

// SubmitPrompt 提交一条用户输入
//
// 先同步追加一条用户聊天消息（乐观回显），再开启会话：
// 未绑定行程时走生成流程，已绑定时走编辑流程（每次提交都重新
// 建立连接，连接建立后 prompt 作为第一帧发出）
func (p *PlanStore) SubmitPrompt(text string) error {
	p.mu.Lock()
	p.appendChatLocked(plan.SenderUser, text)
	p.errText = ""
	p.phase = plan.PhaseConnecting
	p.epoch++
	epoch := p.epoch

	target := session.Target{Kind: session.KindGenerate, Prompt: text}
	if p.activePlanID != 0 {
		target = session.Target{Kind: session.KindEdit, PlanID: p.activePlanID, Prompt: text}
	}
	p.mu.Unlock()
	p.notify()

	s, err := p.manager.Start(target, p.creds(), func(update session.Update) {
		p.apply(epoch, update)
	})
	if err != nil {
		p.mu.Lock()
		p.phase = plan.PhaseFailed
		p.errText = err.Error()
		p.mu.Unlock()
		p.notify()
		return err
	}

	p.mu.Lock()
	if p.epoch == epoch {
		// 会话可能在接线前就已走到终态（极快的完成/失败），
		// 看一眼快照，终态的不再挂为当前会话
		if !s.Snapshot().Phase.Terminal() {
			p.current = s
		}
		p.mu.Unlock()
	} else {
		// 开启期间目标已被切换，这条会话作废
		p.mu.Unlock()
		s.Close()
	}

	return nil
}

// CloseSession 主动结束当前会话（用户取消）
func (p *PlanStore) CloseSession() {
	p.mu.Lock()
	s := p.current
	p.current = nil
	p.epoch++
	p.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// apply 归并一次会话更新
// 只接受当前纪元的更新，已被替换/关闭的旧会话推送一律丢弃
func (p *PlanStore) apply(epoch int, update session.Update) {
	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		p.log.Debug("丢弃过期会话的更新")
		return
	}

	if update.Document != nil {
		p.doc = update.Document
		// 生成流程中服务端分配 ID 后随文档带回，跟着绑定
		if p.activePlanID == 0 && update.Document.ID != 0 {
			p.activePlanID = update.Document.ID
		}
	}
	p.phase = update.Phase
	p.errText = update.ErrorText

	// completed 带回复文本时追加一条 AI 聊天消息，这是聊天记录
	// 唯一被服务端数据改动的地方
	if update.ResponseText != "" {
		p.appendChatLocked(plan.SenderAI, update.ResponseText)
	}

	if update.Phase.Terminal() {
		p.current = nil
	}
	p.mu.Unlock()
	p.notify()
}

func (p *PlanStore) appendChatLocked(sender, text string) {
	p.chat = append(p.chat, plan.ChatMessage{
		ID:            uuid.New().String(),
		Sender:        sender,
		Text:          text,
		SequenceIndex: p.seq,
	})
	p.seq++
}

func (p *PlanStore) notify() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
