package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/middleware"
	authService "github.com/zhouzirui/chat-relay/backend/internal/service/auth"
	"github.com/zhouzirui/chat-relay/backend/pkg/utils"
)

// Authenticator 登录能力
type Authenticator interface {
	Login(ctx context.Context, email, password string) (authService.Result, error)
}

// Handler 登录接口处理器
type Handler struct {
	svc    Authenticator
	serial *middleware.Serializer
	logger *zap.Logger
}

// New 创建登录处理器
func New(svc Authenticator, serial *middleware.Serializer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, serial: serial, logger: logger.Named("auth-handler")}
}

// RegisterRoutes 注册登录路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.serial.Handler).Post("/auth/login", h.handleLogin)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.logger.Error("login aborted", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Failed to start browser")
		return
	}
	if !res.Success {
		utils.RespondError(w, http.StatusUnauthorized, res.Error)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, "Login successful")
}
