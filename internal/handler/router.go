package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/handler/auth"
	"github.com/zhouzirui/chat-relay/backend/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/chat-relay/backend/internal/middleware"
	chatService "github.com/zhouzirui/chat-relay/backend/internal/service/chat"
	"github.com/zhouzirui/chat-relay/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the chat facade. Every route that touches the
// browser session goes through serial, which the caller also uses to close
// the session on shutdown.
func NewRouter(chatSvc *chatService.Service, serial *middlewarePkg.Serializer, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	if serial == nil {
		serial = middlewarePkg.NewSerializer()
	}

	authHandler := auth.New(chatSvc, serial, logger)
	chatHandler := chat.New(chatSvc, serial, logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondSuccess(w, http.StatusOK, "ok")
	})

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
	})

	return r
}
