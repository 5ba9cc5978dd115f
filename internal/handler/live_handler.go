package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/dto"
	"github.com/noah-isme/scholarbridge-api/internal/service"
	"github.com/noah-isme/scholarbridge-api/pkg/middleware/cors"
)

// LiveConfig tunes the websocket transport.
type LiveConfig struct {
	AllowedOrigins []string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadLimitBytes int64
}

// LiveHandler upgrades clients to the live channel and runs one
// service.LiveSession per connection.
type LiveHandler struct {
	base     context.Context
	deps     service.LiveSessionDeps
	cfg      LiveConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewLiveHandler builds the handler. Connections end when base is cancelled.
func NewLiveHandler(base context.Context, deps service.LiveSessionDeps, cfg LiveConfig) *LiveHandler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadLimitBytes <= 0 {
		cfg.ReadLimitBytes = 64 * 1024
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cors.OriginSet(cfg.AllowedOrigins)
	return &LiveHandler{
		base:   base,
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.Allowed(origins, origin)
			},
		},
	}
}

// Serve godoc
// @Summary Live channel
// @Description Websocket. Client frames: auth, navigate, mount, unmount, retry. Server frames: session, route, view, snapshot, error.
// @Tags Live
// @Success 101
// @Router /live [get]
func (h *LiveHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("live upgrade failed", zap.String("ip", c.ClientIP()), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	session := service.NewLiveSession(ctx, h.deps)
	defer session.Close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, cancel, conn, session)
	}()

	h.readLoop(ctx, conn, session)
	cancel()
	<-writerDone
}

func (h *LiveHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *service.LiveSession) {
	pongWait := h.cfg.PingInterval * 2
	conn.SetReadLimit(h.cfg.ReadLimitBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame dto.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				h.logger.Debug("live read ended", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		session.Handle(ctx, frame)
	}
}

// writeLoop is the only writer on conn.
func (h *LiveHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, session *service.LiveSession) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	defer conn.Close() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case frame := <-session.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug("live write failed", zap.Error(err))
				}
				cancel()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				cancel()
				return
			}
		}
	}
}
