// Package gateway serves participants over websockets. It implements
// transport.Sender and feeds inbound frames to a transport.Handler.
package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/Alexander-D-Karpov/tandem/internal/transport"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("participant has no open connection")
	ErrBufferFull   = errors.New("participant send buffer is full")
	ErrShuttingDown = errors.New("gateway is shutting down")
)

const writeWait = 10 * time.Second

type Gateway struct {
	cfg      config.GatewayConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	clients    map[int64]map[*client]struct{}
	shutdown   bool
	dispatcher *transport.Dispatcher

	messageSeq atomic.Int64
	conns      sync.WaitGroup
}

func New(cfg config.GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[int64]map[*client]struct{}),
	}
}

// Handler returns the HTTP handler that upgrades /ws requests. The
// participant identifies itself with the participant query parameter.
func (g *Gateway) Handler(ctx context.Context, h transport.Handler) http.Handler {
	dispatcher := transport.NewDispatcher(h)
	g.mu.Lock()
	g.dispatcher = dispatcher
	g.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		g.serveWS(ctx, dispatcher, w, r)
	})
	return loggingMiddleware(mux, g.logger)
}

// Run serves websocket connections on the configured address until ctx is
// done, then closes every connection.
func (g *Gateway) Run(ctx context.Context, h transport.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", g.cfg.Host, g.cfg.Port),
		Handler:           g.Handler(ctx, h),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.logger.Info("websocket gateway starting", zap.String("addr", server.Addr))

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		g.Shutdown()
		return server.Shutdown(shutdownCtx)
	}
}

// Shutdown rejects new connections, closes the open ones and waits for
// updates already handed to the handler.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.shutdown = true
	dispatcher := g.dispatcher
	var all []*client
	for _, set := range g.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	g.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	g.conns.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	g.logger.Info("websocket gateway stopped", zap.Int("closed", len(all)))
}

// Connected reports how many connections id currently has.
func (g *Gateway) Connected(id int64) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients[id])
}

func (g *Gateway) SendText(_ context.Context, to int64, text string) error {
	return g.deliver(transport.OpSendText, to, ServerFrame{Type: FrameText, Text: text})
}

func (g *Gateway) SendActivity(_ context.Context, to int64, activity transport.Activity) error {
	return g.deliver(transport.OpSendActivity, to, ServerFrame{Type: FrameActivity, Activity: string(activity)})
}

func (g *Gateway) Forward(_ context.Context, to, _ int64, content transport.Content) error {
	return g.deliver(transport.OpForward, to, contentFrame(content))
}

func (g *Gateway) deliver(op string, to int64, frame ServerFrame) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.shutdown {
		return apperr.Delivery(op, to, ErrShuttingDown)
	}
	set := g.clients[to]
	if len(set) == 0 {
		return apperr.Delivery(op, to, ErrNotConnected)
	}

	delivered := 0
	for c := range set {
		if c.enqueue(frame) {
			delivered++
		}
	}
	if delivered == 0 {
		return apperr.Delivery(op, to, ErrBufferFull)
	}
	return nil
}

func (g *Gateway) serveWS(ctx context.Context, dispatcher *transport.Dispatcher, w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("participant"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "participant query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Int64("participant_id", id), zap.Error(err))
		return
	}

	c := newClient(id, conn, g.cfg.SendBuffer)
	if !g.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer g.unregister(c)

	go c.writePump(g.cfg.PingInterval, g.logger)
	c.readPump(g.cfg, func(frame ClientFrame) {
		in, ok := frame.toInbound(id, int(g.messageSeq.Add(1)))
		if !ok {
			c.enqueue(ServerFrame{Type: FrameError, Text: "unsupported frame"})
			return
		}
		dispatcher.Dispatch(ctx, in)
	}, g.logger)
}

func (g *Gateway) register(c *client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.shutdown {
		return false
	}
	set := g.clients[c.participantID]
	if set == nil {
		set = make(map[*client]struct{})
		g.clients[c.participantID] = set
	}
	set[c] = struct{}{}
	g.conns.Add(1)
	g.logger.Info("participant connected", zap.Int64("participant_id", c.participantID))
	return true
}

func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	if set, ok := g.clients[c.participantID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(g.clients, c.participantID)
		}
	}
	g.mu.Unlock()

	c.close()
	g.conns.Done()
	g.logger.Info("participant disconnected", zap.Int64("participant_id", c.participantID))
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}
