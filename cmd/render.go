// Package cmd 实现 CLI 命令
package cmd

import (
	"fmt"

	"yatra-planner-cli/internal/plan"
)

// planRenderer 把流式到达的行程文档增量渲染到终端
// 服务端每帧都推完整文档，这里记住已经打印过的内容，
// 只输出新出现的天和步骤
type planRenderer struct {
	printedTitle bool
	seenSteps    map[int64]bool // 已打印的步骤
	seenDays     map[int64]bool // 已打印的天
}

func newRenderer() *planRenderer {
	return &planRenderer{
		seenSteps: make(map[int64]bool),
		seenDays:  make(map[int64]bool),
	}
}

// render 渲染一次文档快照
func (r *planRenderer) render(doc *plan.Plan) {
	if doc == nil {
		return
	}

	if !r.printedTitle && doc.Title != "" {
		fmt.Printf("\n🗺  %s\n", doc.Title)
		if doc.Description != "" {
			fmt.Printf("   %s\n", doc.Description)
		}
		r.printedTitle = true
	}

	for _, day := range doc.Days {
		if !r.seenDays[day.ID] {
			fmt.Printf("📅 %s\n", day.Title)
			r.seenDays[day.ID] = true
		}
		for _, step := range day.Steps {
			if r.seenSteps[step.ID] {
				continue
			}
			fmt.Printf("   %s\n", formatStep(step))
			r.seenSteps[step.ID] = true
		}
	}
}

// formatStep 把一个行程步骤格式化成一行
func formatStep(step plan.Step) string {
	switch step.Category {
	case plan.CategoryTransport:
		origin, dest := int64(0), int64(0)
		if step.OriginCityID != nil {
			origin = *step.OriginCityID
		}
		if step.DestinationCityID != nil {
			dest = *step.DestinationCityID
		}
		return fmt.Sprintf("🚌 交通: 城市#%d → 城市#%d", origin, dest)

	case plan.CategoryVisit:
		place := int64(0)
		if step.PlaceID != nil {
			place = *step.PlaceID
		}
		if step.ActivityID != nil {
			return fmt.Sprintf("🏞  游览: 地点#%d（活动#%d）", place, *step.ActivityID)
		}
		return fmt.Sprintf("🏞  游览: 地点#%d", place)

	default:
		return fmt.Sprintf("📌 步骤#%d", step.ID)
	}
}
