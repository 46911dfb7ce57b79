package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/middleware"
	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
	"github.com/zhouzirui/chat-relay/backend/pkg/utils"
)

// MsgSendFailed is reported for failures that carry no caller-facing message.
const MsgSendFailed = "Failed to send message"

// Facade 是处理器依赖的聊天服务能力
type Facade interface {
	SendMessage(ctx context.Context, message string) (string, error)
	CloseChat(ctx context.Context) error
	ExportChatHistory() (string, error)
	History() []chat.Turn
	Messages() []*schema.Message
	Status() chat.Status
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	svc       Facade
	serial    *middleware.Serializer
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	heartbeat time.Duration

	// readTimeout bounds how long an idle websocket waits for the next frame.
	readTimeout  time.Duration
	pingInterval time.Duration
}

// New 创建聊天处理器
func New(svc Facade, serial *middleware.Serializer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:    svc,
		serial: serial,
		logger: logger.Named("chat-handler"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		heartbeat:    15 * time.Second,
		readTimeout:  wsReadTimeout,
		pingInterval: wsPingInterval,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.serial.Handler)
			r.Post("/send", h.handleSend)
			r.Post("/close", h.handleClose)
			r.Get("/export", h.handleExport)
			r.Get("/history", h.handleHistory)
			r.Get("/status", h.handleStatus)
			r.Get("/stream", h.handleStream)
		})
		// 连接期间不持锁，按消息加锁
		r.Get("/ws", h.handleWebSocket)
	})
}

type sendRequest struct {
	Message string `json:"message"`
}

type sendResponse struct {
	Response string `json:"response"`
}

// handleSend 发送消息并返回回复
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload sendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.svc.SendMessage(r.Context(), payload.Message)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, sendResponse{Response: reply})
}

// handleClose 关闭浏览器并清空记录
func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseChat(r.Context()); err != nil {
		h.logger.Warn("close chat failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Failed to close chat")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, nil)
}

// handleExport 以 CSV 附件下载聊天记录，发送后删除文件
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.ExportChatHistory()
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			h.logger.Warn("removing export failed", zap.String("path", path), zap.Error(err))
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		h.logger.Error("opening export failed", zap.String("path", path), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Failed to export chat history")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to export chat history")
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// handleHistory 返回对话记录; format=messages 时返回带角色的消息列表
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "messages" {
		utils.RespondSuccess(w, http.StatusOK, h.svc.Messages())
		return
	}
	utils.RespondSuccess(w, http.StatusOK, h.svc.History())
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	utils.RespondSuccess(w, http.StatusOK, h.svc.Status())
}

// respondFailure maps a facade error onto the response envelope.
func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	status, message := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("chat request failed", zap.Error(err), zap.String("kind", string(chat.KindOf(err))))
	}
	utils.RespondError(w, status, message)
}

// StatusFor returns the HTTP status and caller-facing message for err.
func StatusFor(err error) (int, string) {
	var f *chat.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError, MsgSendFailed
	}

	if chat.IsTimeout(err) {
		return http.StatusGatewayTimeout, f.Message
	}

	switch f.Kind {
	case chat.KindInvalidInput, chat.KindEmptyHistory:
		return http.StatusBadRequest, f.Message
	case chat.KindSendControlNotFound, chat.KindMessageSendFailed:
		return http.StatusInternalServerError, MsgSendFailed
	default:
		return http.StatusInternalServerError, f.Message
	}
}
