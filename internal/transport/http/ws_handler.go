package http

import (
	"net/http"
	"time"

	"simulado-service/internal/app"
	"simulado-service/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// WSHandler streams leaderboard updates of one exam to websocket clients.
type WSHandler struct {
	service  *app.ExamService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS subscribes before upgrading so unknown exams still get a plain 404.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	examID := r.URL.Query().Get("examId")
	if examID == "" {
		http.Error(w, "missing examId", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), examID)
	if err != nil {
		status, _ := statusFor(err)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Clients only listen; reading is how a close frame or dropped peer is noticed.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			msg := outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: lb}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.String("examId", examID), zap.Error(err))
				return
			}
		case <-readerDone:
			return
		}
	}
}
