package websocket

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// DefaultIdleTimeout 默认空闲超时
// 距上一帧超过该时长仍无任何消息时，判定生成服务挂起并主动断开，
// 避免连接永远不结束
const DefaultIdleTimeout = 120 * time.Second

// Client WebSocket 客户端
// 一个 Client 对应一条连接，断开后不可复用，重连需新建实例
type Client struct {
	serverURL   string
	idleTimeout time.Duration
	sendChan    chan []byte
	done        chan struct{}
	conn        *websocket.Conn
	mu          sync.Mutex
	isRunning   bool
	closeOnce   sync.Once
	onMessage   func(*Message) // 消息回调
	onConnect   func()         // 连接成功回调
	onClose     func()         // 连接关闭回调
	log         *logrus.Entry
}

// NewClient 创建 WebSocket 客户端
// endpoint: 完整的 ws(s) 地址（如 ws://localhost:8080/ai/generate）
// token: 访问令牌，以 query 参数附加。WS 握手走不了 HTTP 拦截器的
// 刷新流程，调用方需保证 token 已经刷新
func NewClient(endpoint, token string) *Client {
	return &Client{
		serverURL:   fmt.Sprintf("%s?token=%s", endpoint, url.QueryEscape(token)),
		idleTimeout: DefaultIdleTimeout,
		sendChan:    make(chan []byte, 16),
		done:        make(chan struct{}),
		log:         logrus.WithField("component", "ws"),
	}
}

// SetIdleTimeout 设置空闲超时（须在 Connect 之前调用）
func (c *Client) SetIdleTimeout(d time.Duration) {
	if d > 0 {
		c.idleTimeout = d
	}
}

// OnMessage 设置消息回调
func (c *Client) OnMessage(handler func(*Message)) {
	c.onMessage = handler
}

// OnConnect 设置连接成功回调
func (c *Client) OnConnect(handler func()) {
	c.onConnect = handler
}

// OnClose 设置连接关闭回调
func (c *Client) OnClose(handler func()) {
	c.onClose = handler
}

// Connect 连接到服务器
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("客户端已在运行")
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.isRunning = true
	c.mu.Unlock()

	if c.onConnect != nil {
		c.onConnect()
	}

	go c.readPump()
	go c.writePump()

	return nil
}

// Disconnect 断开连接
// 幂等，可安全重复调用；已关闭时为空操作
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.isRunning = false
		close(c.done)
		if c.conn != nil {
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.conn.Close()
		}
		c.mu.Unlock()

		if c.onClose != nil {
			c.onClose()
		}
	})
}

// SendPrompt 发送一条提示帧
// 连接未打开或缓冲区已满时返回错误，由调用方决定如何向用户反馈，
// 不做静默丢弃
func (c *Client) SendPrompt(prompt string) error {
	c.mu.Lock()
	running := c.isRunning
	c.mu.Unlock()
	if !running {
		return fmt.Errorf("连接未打开")
	}

	data, err := json.Marshal(&Prompt{Prompt: prompt})
	if err != nil {
		return err
	}

	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("连接已关闭")
	default:
		return fmt.Errorf("发送缓冲区已满")
	}
}

// IsRunning 检查连接是否仍然打开
func (c *Client) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRunning
}

// readPump 读取消息
// 每收到一帧就顺延一次读超时；超时或读错误都会触发 Disconnect
func (c *Client) readPump() {
	defer c.Disconnect()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("读取消息失败")
			}
			return
		}

		msg, err := Decode(data)
		if err != nil {
			// 非法帧：记录原始内容后丢弃，连接继续
			c.log.WithError(err).WithField("raw", string(data)).Warn("解析消息失败")
			continue
		}

		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

// writePump 写入消息
func (c *Client) writePump() {
	defer c.Disconnect()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.sendChan:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.WithError(err).Warn("发送消息失败")
				return
			}
		}
	}
}
