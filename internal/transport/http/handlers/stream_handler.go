package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// MessageSubscriber streams messages addressed to one user.
type MessageSubscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan model.Message, func() error, error)
}

type StreamMetrics interface {
	StreamOpened()
	StreamClosed()
}

type StreamHandler struct {
	messages MessageSubscriber
	metrics  StreamMetrics
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewStreamHandler accepts upgrades from the given origins. An empty list
// accepts any origin.
func NewStreamHandler(messages MessageSubscriber, metrics StreamMetrics, origins []string, log *zap.Logger) *StreamHandler {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &StreamHandler{
		messages: messages,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Serve upgrades the request and pushes every new message for the caller
// until either side closes. The subscription is released on return.
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if h.messages == nil {
		writeInternal(w, "MESSAGING_SERVICE_UNAVAILABLE", "messaging service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	events, unsubscribe, err := h.messages.Subscribe(ctx, id.UserID)
	if err != nil {
		writeUnexpected(w, r, h.log, err)
		return
	}
	defer func() {
		if err := unsubscribe(); err != nil {
			h.log.Warn("unsubscribe message stream", zap.String("user_id", id.UserID), zap.Error(err))
		}
	}()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.StreamOpened()
		defer h.metrics.StreamClosed()
	}

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, events, id.UserID)
}

// readPump only watches for close frames and pongs. Inbound data is
// discarded; sending goes through POST /v1/messages.
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(ctx context.Context, conn *websocket.Conn, events <-chan model.Message, viewerID string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(dto.Message(msg, viewerID)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
