package store

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"yatra-planner-cli/internal/api"
	"yatra-planner-cli/internal/plan"
	"yatra-planner-cli/internal/session"
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type fakeAPI struct{}

func (f *fakeAPI) Me(accessToken string) (*api.UserInfo, error) {
	return &api.UserInfo{ID: 1, Username: "tester"}, nil
}

func (f *fakeAPI) Refresh(refreshToken string) (*api.LoginResponse, error) {
	return nil, api.ErrUnauthorized
}

func validToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newStore(t *testing.T, srv *httptest.Server) *PlanStore {
	t.Helper()
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	m := session.NewManager(wsBase, &fakeAPI{}, 2*time.Second)
	creds := session.Credentials{AccessToken: validToken(t), RefreshToken: "r"}
	return NewPlanStore(m, func() session.Credentials { return creds })
}

func waitTerminal(t *testing.T, st *PlanStore) {
	t.Helper()
	require.Eventually(t, func() bool {
		return st.Phase().Terminal()
	}, 3*time.Second, 10*time.Millisecond)
}

func countBySender(messages []plan.ChatMessage, sender string) int {
	n := 0
	for _, m := range messages {
		if m.Sender == sender {
			n++
		}
	}
	return n
}

func TestSubmitPromptGeneratesPlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var p struct {
			Prompt string `json:"prompt"`
		}
		conn.ReadJSON(&p)

		conn.WriteMessage(gws.TextMessage, []byte(`{"type": "plan_created", "response": {"id": 42, "title": "Pokhara Getaway", "days": []}}`))
		conn.WriteMessage(gws.TextMessage, []byte(`{"type": "completed", "response": "Here is your plan!"}`))
		conn.ReadMessage()
	}))
	defer srv.Close()

	st := newStore(t, srv)

	require.NoError(t, st.SubmitPrompt("Plan a 3-day trip to Pokhara"))

	// 用户消息同步回显，不等服务端往返
	messages := st.ChatMessages()
	require.Equal(t, 1, countBySender(messages, plan.SenderUser))
	require.Equal(t, "Plan a 3-day trip to Pokhara", messages[0].Text)
	require.Equal(t, 0, messages[0].SequenceIndex)

	waitTerminal(t, st)

	require.Equal(t, plan.PhaseComplete, st.Phase())
	require.Equal(t, int64(42), st.Document().ID)
	// 服务端分配 ID 后，后续提交走编辑流程
	require.Equal(t, int64(42), st.ActivePlanID())

	// completed 带回复文本时恰好追加一条 AI 消息
	messages = st.ChatMessages()
	require.Equal(t, 1, countBySender(messages, plan.SenderAI))
	require.Equal(t, "Here is your plan!", messages[len(messages)-1].Text)
}

func TestCompletedWithoutResponseAppendsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var p struct {
			Prompt string `json:"prompt"`
		}
		conn.ReadJSON(&p)
		conn.WriteMessage(gws.TextMessage, []byte(`{"type": "completed"}`))
		conn.ReadMessage()
	}))
	defer srv.Close()

	st := newStore(t, srv)
	require.NoError(t, st.SubmitPrompt("hello"))
	waitTerminal(t, st)

	require.Equal(t, plan.PhaseComplete, st.Phase())
	require.Equal(t, 0, countBySender(st.ChatMessages(), plan.SenderAI))
}

func TestEditSessionErrorKeepsDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ai/7", r.URL.Path)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var p struct {
			Prompt string `json:"prompt"`
		}
		conn.ReadJSON(&p)
		conn.WriteMessage(gws.TextMessage, []byte(`{"type": "error", "message": "LLM timeout"}`))
		conn.ReadMessage()
	}))
	defer srv.Close()

	st := newStore(t, srv)

	original := &plan.Plan{ID: 7, Title: "Kathmandu Weekend"}
	st.SwitchPlan(7, original)

	require.NoError(t, st.SubmitPrompt("add a day"))
	waitTerminal(t, st)

	require.Equal(t, plan.PhaseFailed, st.Phase())
	require.Equal(t, "LLM timeout", st.ErrorText())
	// 失败不丢弃已有文档，用户还能看到出错前的内容
	require.Same(t, original, st.Document())
}

func TestSwitchPlanDiscardsStaleSession(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var p struct {
			Prompt string `json:"prompt"`
		}
		conn.ReadJSON(&p)

		// 等测试切换行程之后再推送，模拟中途换目标的竞态
		<-release
		conn.WriteMessage(gws.TextMessage, []byte(`{"type": "plan_created", "response": {"id": 999, "title": "迟到的更新", "days": []}}`))
		conn.WriteMessage(gws.TextMessage, []byte(`{"type": "completed", "response": "stale"}`))
		conn.ReadMessage()
	}))
	defer srv.Close()

	st := newStore(t, srv)
	require.NoError(t, st.SubmitPrompt("生成一个行程"))

	// 中途切换到另一个行程：旧会话关闭，聊天清空
	switched := &plan.Plan{ID: 9, Title: "Lumbini Trip"}
	st.SwitchPlan(9, switched)
	close(release)

	// 旧会话的推送必须全部丢弃
	time.Sleep(300 * time.Millisecond)
	require.Same(t, switched, st.Document())
	require.Equal(t, plan.PhaseIdle, st.Phase())
	require.Empty(t, st.ChatMessages())
	require.Equal(t, int64(9), st.ActivePlanID())
}

func TestSubmitPromptAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	m := session.NewManager(wsBase, &fakeAPI{}, 2*time.Second)
	// 本地没有任何凭证
	st := NewPlanStore(m, func() session.Credentials { return session.Credentials{} })

	err := st.SubmitPrompt("hello")
	require.Error(t, err)
	require.Equal(t, plan.PhaseFailed, st.Phase())
	require.NotEmpty(t, st.ErrorText())
}
