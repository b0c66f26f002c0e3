package chat

import (
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/chatpanel/internal/model/chat"
	"github.com/zhouzirui/chatpanel/internal/service/history"
	"github.com/zhouzirui/chatpanel/internal/service/reply"
	"github.com/zhouzirui/chatpanel/pkg/utils"
)

const defaultSessionID = "default"

// Handler 开发用聊天后端的HTTP处理器
type Handler struct {
	historySvc *history.Service
	replies    reply.Generator
	now        func() time.Time
}

// New 创建聊天处理器
func New(historySvc *history.Service, replies reply.Generator) *Handler {
	return &Handler{
		historySvc: historySvc,
		replies:    replies,
		now:        time.Now,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleStatus)
	r.Post("/chat", h.handleChat)
	r.Get("/health", h.handleHealth)
}

// handleChat 处理一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	var payload chat.Request
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := strings.TrimSpace(payload.SessionID)
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	ctx := r.Context()
	if _, err := h.historySvc.Append(ctx, sessionID, history.RoleUser, message); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	answer, err := h.replies.Reply(ctx, sessionID, message, h.historySvc.Transcript(ctx, sessionID))
	if err != nil {
		log.Printf("[chat] reply failed session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := h.historySvc.Append(ctx, sessionID, history.RoleAssistant, answer); err != nil {
		log.Printf("[chat] failed to save reply session=%s: %v", sessionID, err)
	}

	elapsed := math.Round(h.now().Sub(start).Seconds()*100) / 100
	utils.RespondJSON(w, http.StatusOK, chat.Response{
		Response:     answer,
		Timestamp:    h.now().Format(time.RFC3339),
		SessionID:    sessionID,
		ResponseTime: &elapsed,
	})
}

// handleHealth 健康检查
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleStatus 服务状态
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":   "chat backend running",
		"sessions": h.historySvc.Sessions(),
	})
}
