// Package websocket 处理与行程生成服务的 WebSocket 连接
package websocket

import (
	"encoding/json"
)

// Message 服务端推送的消息帧
// 每一帧都是 JSON 文本：{ "type": ..., "response": ..., "message": ... }
// type 必填；response 依类型而定（结构性消息为完整行程文档，
// completed/error 为文本，status/progress 可省略）
type Message struct {
	Type     string          `json:"type"`
	Response json.RawMessage `json:"response,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Prompt 客户端发往服务端的提示帧
// 连接建立后立即发送，每次用户提交一帧
type Prompt struct {
	Prompt string `json:"prompt"`
}

// Decode 解析一帧原始数据
// 解析失败返回 error，调用方负责记录原始 payload 并丢弃该帧
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ResponseText 提取 response 中的纯文本（completed 等消息携带的回复）
// response 不是 JSON 字符串时返回空串
func (m *Message) ResponseText() string {
	if len(m.Response) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(m.Response, &text); err != nil {
		return ""
	}
	return text
}

// errorPayload 错误消息中 response 的两种已知形态
type errorPayload struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// ErrorText 提取错误消息中的用户可见文本
// 依次尝试 response.error.message、response.message、顶层 message，
// 都没有时回退到通用提示
func (m *Message) ErrorText() string {
	if len(m.Response) > 0 {
		var payload errorPayload
		if err := json.Unmarshal(m.Response, &payload); err == nil {
			if payload.Error != nil && payload.Error.Message != "" {
				return payload.Error.Message
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
		// response 也可能直接是一个字符串
		if text := m.ResponseText(); text != "" {
			return text
		}
	}
	if m.Message != "" {
		return m.Message
	}
	return "行程生成失败，请稍后重试"
}
