// Package cmd 实现 CLI 命令
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"yatra-planner-cli/internal/api"
	"yatra-planner-cli/internal/config"
	"yatra-planner-cli/internal/plan"
	"yatra-planner-cli/internal/session"
	"yatra-planner-cli/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "yatra-planner",
	Short: "Yatra Planner - AI 旅行行程规划工具",
	Long: `Yatra Planner CLI 客户端

用自然语言描述你的旅行需求，AI 会实时生成并逐步完善行程，
也可以继续编辑已保存的行程。

直接运行即可开始使用，程序会引导你完成登录和规划。`,
	Run: runInteractive,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	// 全局参数
	rootCmd.PersistentFlags().StringP("server", "s", "", "服务器地址 (默认: http://localhost:8080)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "输出调试日志")
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "初始化配置失败: %v\n", err)
		os.Exit(1)
	}

	if server, _ := rootCmd.PersistentFlags().GetString("server"); server != "" {
		config.SetServerURL(server)
	}
}

func initLogger() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	// 默认只输出警告，避免干扰交互界面
	logrus.SetLevel(logrus.WarnLevel)
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// runInteractive 交互式主流程
func runInteractive(cmd *cobra.Command, args []string) {
	printBanner()

	if config.IsLoggedIn() {
		fmt.Println("检测到已保存的登录信息")
		fmt.Printf("  👤 账号: %s\n", config.GetUsername())
		fmt.Println()

		if askYesNo("是否使用已保存的登录信息？") {
			runPlanner()
			return
		}
		fmt.Println()
	}

	doInteractiveLogin()
	runPlanner()
}

func printBanner() {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║         🧭 Yatra Planner CLI 客户端             ║")
	fmt.Println("║                                                ║")
	fmt.Println("║   和 AI 一起实时规划你的下一次旅行               ║")
	fmt.Println("╚════════════════════════════════════════════════╝")
	fmt.Println()
}

func doInteractiveLogin() {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("🔐 开始登录")
	fmt.Println("─────────────────────────────────")
	fmt.Println()

	fmt.Print("请输入用户名: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Fprintln(os.Stderr, "✗ 用户名不能为空")
		os.Exit(1)
	}

	// 隐藏输入密码
	fmt.Print("请输入密码: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 读取密码失败: %v\n", err)
		os.Exit(1)
	}
	password := strings.TrimSpace(string(passwordBytes))
	if password == "" {
		fmt.Fprintln(os.Stderr, "✗ 密码不能为空")
		os.Exit(1)
	}

	fmt.Println()

	client := api.NewClient(config.GetServerURL())

	// 设备标识随登录上报，首次使用时生成并落盘
	deviceUUID, err := config.GetDeviceUUID()
	if err != nil {
		logrus.WithError(err).Warn("获取设备标识失败")
	}

	fmt.Println("🔐 正在登录...")
	loginResp, err := client.Login(username, password, deviceUUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 登录失败: %v\n", err)
		os.Exit(1)
	}

	if err := config.SaveAuth(loginResp.AccessToken, loginResp.RefreshToken, username); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 保存登录信息失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ 登录成功！")
	fmt.Println()
}

// runPlanner 行程规划主循环
func runPlanner() {
	client := api.NewClient(config.GetServerURL())

	manager := session.NewManager(config.GetWSURL(), client, config.GetIdleTimeout())
	manager.OnTokenRefresh = func(accessToken, refreshToken string) {
		if err := config.SaveAuth(accessToken, refreshToken, ""); err != nil {
			logrus.WithError(err).Warn("保存刷新后的凭证失败")
		}
	}

	st := store.NewPlanStore(manager, func() session.Credentials {
		return session.Credentials{
			AccessToken:  config.GetAccessToken(),
			RefreshToken: config.GetRefreshToken(),
		}
	})

	// 状态变更信号：丢并发重复没关系，渲染时总是取最新快照
	updates := make(chan struct{}, 1)
	st.OnChange(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	// 可选：继续编辑已有行程
	if askYesNo("是否继续编辑已保存的行程？(否则创建新行程)") {
		pickPlan(client, st)
	}

	fmt.Println()
	fmt.Println("💬 描述你的旅行需求，AI 会实时生成行程")
	fmt.Println("   (输入 exit 退出)")
	fmt.Println("─────────────────────────────────")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	reader := bufio.NewReader(os.Stdin)
	renderer := newRenderer()

	for {
		fmt.Print("🧭 > ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		if err := st.SubmitPrompt(text); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			continue
		}

		if !waitForSession(st, renderer, updates, sigChan) {
			break
		}
		fmt.Println()
	}

	fmt.Println()
	fmt.Println("正在断开连接...")
	manager.CloseAll()
	fmt.Println("✅ 已退出，祝旅途愉快！")
}

// waitForSession 等待一次会话走到终态，期间增量渲染文档变化
// 返回 false 表示用户按下了 Ctrl+C
func waitForSession(st *store.PlanStore, renderer *planRenderer, updates <-chan struct{}, sigChan <-chan os.Signal) bool {
	for {
		select {
		case <-updates:
			renderer.render(st.Document())

			phase := st.Phase()
			switch phase {
			case plan.PhaseComplete:
				printAIReply(st)
				return true
			case plan.PhaseFailed:
				// 已经流出来的部分行程保留在屏幕上，方便用户
				// 看到失败前生成到了哪一步
				fmt.Printf("❌ %s\n", st.ErrorText())
				return true
			}

		case <-sigChan:
			st.CloseSession()
			return false
		}
	}
}

// printAIReply 输出本次会话 AI 的最后一条回复
func printAIReply(st *store.PlanStore) {
	messages := st.ChatMessages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Sender == plan.SenderAI {
			fmt.Printf("🤖 %s\n", messages[i].Text)
			return
		}
	}
	fmt.Println("✅ 行程已更新")
}

// pickPlan 列出行程并让用户选择一个进入编辑模式
func pickPlan(client *api.Client, st *store.PlanStore) {
	accessToken, err := freshToken(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return
	}

	plans, err := client.ListPlans(accessToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取行程列表失败: %v\n", err)
		return
	}
	if len(plans) == 0 {
		fmt.Println("还没有保存的行程，将创建新行程")
		return
	}

	fmt.Println()
	fmt.Println("📋 已保存的行程")
	for _, p := range plans {
		fmt.Printf("  #%-4d %s（%d 天）\n", p.ID, p.Title, p.DayCount)
	}
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("请输入行程编号: ")
	line, _ := reader.ReadString('\n')
	planID, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		fmt.Println("编号无效，将创建新行程")
		return
	}

	doc, err := client.GetPlan(accessToken, planID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取行程失败: %v\n", err)
		return
	}

	st.SwitchPlan(planID, doc)
	fmt.Printf("✏️  已进入编辑模式: %s\n", doc.Title)
}

func askYesNo(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [Y/n]: ", prompt)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "" || answer == "y" || answer == "yes"
}
