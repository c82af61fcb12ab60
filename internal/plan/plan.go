// Package plan 定义行程文档的数据模型和消息归约逻辑
package plan

// 行程步骤类别常量
const (
	CategoryVisit     = "visit"     // 景点游览（可带子活动）
	CategoryTransport = "transport" // 城市间交通
)

// 聊天消息发送方常量
const (
	SenderUser = "user" // 用户输入
	SenderAI   = "ai"   // AI 回复
)

// Plan 行程文档
// 服务端是唯一的持久化来源，本地副本只是缓存：
// 每条结构性消息都携带完整文档，收到后整体替换
type Plan struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Days        []Day  `json:"days"`
}

// Day 行程中的一天，按行程顺序排列
type Day struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

// Step 一天中的一个行程条目
// 要么是景点游览（place + 可选 activity），要么是交通段（起点/终点城市）
type Step struct {
	ID                int64  `json:"id"`
	Category          string `json:"category"` // visit / transport
	PlaceID           *int64 `json:"place_id,omitempty"`
	ActivityID        *int64 `json:"activity_id,omitempty"`
	OriginCityID      *int64 `json:"origin_city_id,omitempty"`
	DestinationCityID *int64 `json:"destination_city_id,omitempty"`
	Position          int    `json:"position"` // 在当天中的顺序
}

// ChatMessage 编辑会话中的聊天记录
// 仅追加，按 SequenceIndex 排序，切换行程时清空
type ChatMessage struct {
	ID            string `json:"id"` // 客户端生成的 UUID
	Sender        string `json:"sender"`
	Text          string `json:"text"`
	SequenceIndex int    `json:"sequence_index"`
}

// Phase 会话生成阶段
// 属于会话状态，不属于服务端文档本身
type Phase string

const (
	PhaseIdle       Phase = "idle"       // 未开始
	PhaseConnecting Phase = "connecting" // 正在建立连接
	PhaseStreaming  Phase = "streaming"  // 正在接收增量更新
	PhaseComplete   Phase = "complete"   // 生成完成
	PhaseFailed     Phase = "failed"     // 生成失败
)

// Terminal 判断阶段是否为终态
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}
