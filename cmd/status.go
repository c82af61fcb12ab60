// Package cmd 实现 CLI 命令
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"yatra-planner-cli/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示当前状态",
	Long: `显示当前登录状态和配置信息。

包括：
- 服务器地址
- 登录状态
- 账号（如果已登录）`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := config.Get()

	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║           Yatra Planner 状态信息                ║")
	fmt.Println("╠════════════════════════════════════════════════╣")

	fmt.Printf("║  服务器: %s\n", cfg.Server.URL)
	fmt.Printf("║  WebSocket: %s\n", cfg.Server.WSURL)

	if cfg.Auth.AccessToken != "" {
		fmt.Println("║  登录状态: ✓ 已登录")
		fmt.Printf("║  账号: %s\n", cfg.Auth.Username)
	} else {
		fmt.Println("║  登录状态: ✗ 未登录")
		fmt.Println("║")
		fmt.Println("║  直接运行 'yatra-planner' 完成登录")
	}

	fmt.Println("╚════════════════════════════════════════════════╝")
}
