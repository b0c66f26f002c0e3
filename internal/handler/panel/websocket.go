package panel

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/chatpanel/internal/metrics"
	"github.com/zhouzirui/chatpanel/internal/model/chat"
	panelctl "github.com/zhouzirui/chatpanel/internal/panel"
	"github.com/zhouzirui/chatpanel/internal/render"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Handler Web 聊天面板处理器，每个 WebSocket 连接拥有独立的控制器与会话。
type Handler struct {
	sender    panelctl.Sender
	renderer  render.Renderer
	sessionID string
	options   []panelctl.Option
	upgrader  websocket.Upgrader
}

// New 创建面板处理器。sessionID 为空时每个连接生成新的会话。
func New(sender panelctl.Sender, renderer render.Renderer, sessionID string, opts ...panelctl.Option) *Handler {
	return &Handler{
		sender:    sender,
		renderer:  renderer,
		sessionID: sessionID,
		options:   opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes 注册面板页面与 WebSocket 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handlePage)
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type submitMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type messageData struct {
	Sender chat.Sender `json:"sender"`
	HTML   string      `json:"html"`
}

// connView is the panel.View of one browser tab.
type connView struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
}

func (v *connView) write(msgType string, data interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()

	msg := outgoingMessage{
		Type:      msgType,
		SessionID: v.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := v.conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write %s failed session=%s: %v", msgType, v.sessionID, err)
	}
}

func (v *connView) ping() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (v *connView) ClearInput() {
	v.write("clear_input", nil)
}

func (v *connView) Append(node render.Node) {
	v.write("message", messageData{Sender: node.Sender, HTML: node.Markup})
}

func (v *connView) ShowTyping() {
	v.write("typing", map[string]bool{"visible": true})
}

func (v *connView) HideTyping() {
	v.write("typing", map[string]bool{"visible": false})
}

// handleWebSocket 处理面板 WebSocket 连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := chat.NewSession(h.sessionID)
	view := &connView{conn: conn, sessionID: session.ID}
	ctrl := panelctl.New(h.sender, session.ID, h.renderer, view, h.options...)

	metrics.PanelsConnected.Inc()
	defer metrics.PanelsConnected.Dec()
	log.Printf("[ws] panel connected session=%s", session.ID)

	ctx, cancel := context.WithCancel(r.Context())
	var exchanges sync.WaitGroup
	defer func() {
		cancel()
		exchanges.Wait()
		log.Printf("[ws] panel closed session=%s", session.ID)
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go pingLoop(ctx, view)

	view.write("connected", map[string]string{"sessionId": session.ID})
	ctrl.Greet()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error session=%s: %v", session.ID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "submit":
			var payload submitMessage
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				view.write("error", map[string]string{"message": "invalid submit payload"})
				continue
			}
			pending, err := ctrl.Submit(payload.Text)
			if err != nil {
				view.write("rejected", map[string]string{"reason": panelctl.RejectReason(err)})
				continue
			}
			exchanges.Add(1)
			go func() {
				defer exchanges.Done()
				pending.Await(ctx)
			}()
		case "ping":
			view.write("pong", nil)
		default:
			view.write("error", map[string]string{"message": "unsupported message type: " + strings.TrimSpace(msg.Type)})
		}
	}
}

// pingLoop 定期发送 ping 消息
func pingLoop(ctx context.Context, view *connView) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := view.ping(); err != nil {
				return
			}
		}
	}
}
