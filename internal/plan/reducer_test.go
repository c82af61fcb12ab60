package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStructural(t *testing.T) {
	structural := []string{MsgPlanCreated, MsgDayAdded, MsgStepAdded, MsgStepRemoved, MsgStepReordered, MsgDaysRemoved}
	for _, msgType := range structural {
		require.True(t, Structural(msgType), msgType)
	}

	other := []string{MsgCompleted, MsgComplete, MsgStatus, MsgProgress, MsgError, "something_else", ""}
	for _, msgType := range other {
		require.False(t, Structural(msgType), msgType)
	}
}

func TestApplyReplacesWholeDocument(t *testing.T) {
	current := &Plan{ID: 42, Title: "旧标题"}

	next := Apply(current, MsgDayAdded, json.RawMessage(`{
		"id": 42,
		"title": "Pokhara Getaway",
		"days": [{"id": 1, "title": "Day 1", "steps": []}]
	}`))

	require.NotSame(t, current, next, "必须产生新引用")
	require.Equal(t, int64(42), next.ID)
	require.Equal(t, "Pokhara Getaway", next.Title)
	require.Len(t, next.Days, 1)

	// 原快照不能被就地修改
	require.Equal(t, "旧标题", current.Title)
	require.Empty(t, current.Days)
}

func TestApplyLastStructuralMessageWins(t *testing.T) {
	// 中间快照不能泄漏：最终文档等于最后一条结构性消息的 payload
	var doc *Plan
	frames := []json.RawMessage{
		json.RawMessage(`{"id": 1, "title": "v1", "days": []}`),
		json.RawMessage(`{"id": 1, "title": "v2", "days": [{"id": 10, "title": "Day 1", "steps": []}]}`),
		json.RawMessage(`{"id": 1, "title": "v3", "days": [{"id": 10, "title": "Day 1", "steps": []}, {"id": 11, "title": "Day 2", "steps": []}]}`),
	}

	for _, frame := range frames {
		doc = Apply(doc, MsgStepAdded, frame)
	}
	// 终止消息不改动文档
	doc = Apply(doc, MsgCompleted, json.RawMessage(`"done"`))

	require.Equal(t, "v3", doc.Title)
	require.Len(t, doc.Days, 2)
}

func TestApplyNonStructuralKeepsDocument(t *testing.T) {
	current := &Plan{ID: 7, Title: "保持不变"}

	for _, msgType := range []string{MsgCompleted, MsgComplete, MsgStatus, MsgProgress, MsgError, "unknown_type"} {
		next := Apply(current, msgType, json.RawMessage(`{"id": 99}`))
		require.Same(t, current, next, msgType)
	}
}

func TestApplyToleratesBadPayload(t *testing.T) {
	current := &Plan{ID: 7}

	t.Run("结构性消息缺少 payload", func(t *testing.T) {
		require.Same(t, current, Apply(current, MsgPlanCreated, nil))
	})

	t.Run("payload 不是合法 JSON", func(t *testing.T) {
		require.Same(t, current, Apply(current, MsgDayAdded, json.RawMessage(`{broken`)))
	})

	t.Run("payload 类型不匹配", func(t *testing.T) {
		require.Same(t, current, Apply(current, MsgDayAdded, json.RawMessage(`"just a string"`)))
	})

	t.Run("初始文档为空", func(t *testing.T) {
		next := Apply(nil, MsgPlanCreated, json.RawMessage(`{"id": 1, "title": "t", "days": []}`))
		require.NotNil(t, next)
		require.Equal(t, int64(1), next.ID)
	})
}
