package plan

import "encoding/json"

// 服务端推送的消息类型常量
const (
	// 结构性消息：携带完整文档，收到后整体替换本地快照
	MsgPlanCreated   = "plan_created"   // 行程已创建
	MsgDayAdded      = "day_added"      // 新增一天
	MsgStepAdded     = "step_added"     // 新增步骤
	MsgStepRemoved   = "step_removed"   // 删除步骤
	MsgStepReordered = "step_reordered" // 步骤重新排序
	MsgDaysRemoved   = "days_removed"   // 删除若干天

	// 终止消息：生成结束，连接随后关闭
	MsgCompleted = "completed"
	MsgComplete  = "complete" // 兼容旧拼写

	// 信息性消息：仅提示进度，不改动文档
	MsgStatus   = "status"
	MsgProgress = "progress"

	// 错误消息
	MsgError = "error"
)

// Structural 判断消息类型是否为结构性消息（即是否携带完整文档）
func Structural(msgType string) bool {
	switch msgType {
	case MsgPlanCreated, MsgDayAdded, MsgStepAdded, MsgStepRemoved, MsgStepReordered, MsgDaysRemoved:
		return true
	}
	return false
}

// Apply 将一条服务端消息归约到当前文档快照上，返回新快照
//
// 纯函数，无任何 I/O：
//   - 结构性消息：用 response 中的完整文档替换整个快照（服务端每次都
//     重发完整文档，客户端无需任何拼接/合并逻辑）
//   - 其他消息（完成/进度/错误/未知类型）：文档保持不变，原样返回
//
// 必须保证全域可用：任何类型、任何 payload 都不会 panic。
// 永远不就地修改 current，下游依赖引用相等性判断变更。
func Apply(current *Plan, msgType string, response json.RawMessage) *Plan {
	if !Structural(msgType) {
		return current
	}

	if len(response) == 0 {
		// 结构性消息缺少文档，视为无效帧，保持原快照
		return current
	}

	next := &Plan{}
	if err := json.Unmarshal(response, next); err != nil {
		// 文档解析失败同样丢弃该帧
		return current
	}

	return next
}
