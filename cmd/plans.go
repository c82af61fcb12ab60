// Package cmd 实现 CLI 命令
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"yatra-planner-cli/internal/api"
	"yatra-planner-cli/internal/auth"
	"yatra-planner-cli/internal/config"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "列出我的行程",
	Long:  `列出当前账号下保存的所有行程。`,
	Run:   runPlans,
}

var plansDeleteCmd = &cobra.Command{
	Use:   "delete <行程编号>",
	Short: "删除一个行程",
	Args:  cobra.ExactArgs(1),
	Run:   runPlansDelete,
}

func init() {
	plansCmd.AddCommand(plansDeleteCmd)
	rootCmd.AddCommand(plansCmd)
}

func runPlans(cmd *cobra.Command, args []string) {
	client := api.NewClient(config.GetServerURL())

	accessToken, err := freshToken(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	plans, err := client.ListPlans(accessToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取行程列表失败: %v\n", err)
		os.Exit(1)
	}

	if len(plans) == 0 {
		fmt.Println("还没有任何行程，直接运行 'yatra-planner' 生成一个吧")
		return
	}

	fmt.Println("📋 我的行程")
	fmt.Println("─────────────────────────────────")
	for _, p := range plans {
		fmt.Printf("  #%-4d %s（%d 天）\n", p.ID, p.Title, p.DayCount)
		if p.Description != "" {
			fmt.Printf("        %s\n", p.Description)
		}
	}
}

func runPlansDelete(cmd *cobra.Command, args []string) {
	planID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 行程编号无效: %s\n", args[0])
		os.Exit(1)
	}

	client := api.NewClient(config.GetServerURL())

	accessToken, err := freshToken(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	if err := client.DeletePlan(accessToken, planID); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 删除行程失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ 行程 #%d 已删除\n", planID)
}

// freshToken 取一个保证可用的访问令牌，必要时刷新并落盘
func freshToken(client *api.Client) (string, error) {
	accessToken, refreshToken, err := auth.EnsureFresh(client, config.GetAccessToken(), config.GetRefreshToken())
	if err != nil {
		return "", err
	}
	if accessToken != config.GetAccessToken() {
		if err := config.SaveAuth(accessToken, refreshToken, ""); err != nil {
			return "", fmt.Errorf("保存凭证失败: %w", err)
		}
	}
	return accessToken, nil
}
