package chat

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
	"github.com/zhouzirui/chat-relay/backend/pkg/utils"
)

type sendResult struct {
	reply string
	err   error
}

// handleStream 通过 SSE 发送消息：先推送 status，等待期间推送 heartbeat，
// 最后推送 reply 或 error。
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "Message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	ctx := r.Context()

	utils.SendSSEEvent(w, flusher, "status", map[string]string{"message": "message accepted"})

	done := make(chan sendResult, 1)
	go func() {
		reply, err := h.svc.SendMessage(ctx, message)
		done <- sendResult{reply: reply, err: err}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			if res.err != nil {
				status, msg := StatusFor(res.err)
				h.logger.Warn("stream send failed", zap.Int("status", status), zap.Error(res.err))
				utils.SendSSEEvent(w, flusher, "error", map[string]string{
					"error": msg,
					"kind":  string(chat.KindOf(res.err)),
				})
				return
			}
			utils.SendSSEEvent(w, flusher, "reply", sendResponse{Response: res.reply})
			return
		case <-ctx.Done():
			// The send aborts with ctx; wait so the session is idle before
			// the serializer lets the next request in.
			<-done
			h.logger.Info("stream client went away")
			return
		case t := <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			})
		}
	}
}
