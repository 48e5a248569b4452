package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"support-router/internal/domain"
	"support-router/internal/service"
)

var ErrDisconnected = errors.New("transport disconnected")

// Conn es la parte de *websocket.Conn que usa el protocolo.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ChatHandler es el pipeline al que el endpoint entrega los mensajes de chat.
type ChatHandler interface {
	Chat(ctx context.Context, clientID string, in domain.InboundMessage) (domain.ChatReply, error)
	ConversationID(ctx context.Context, clientID string) string
}

// EndpointOptions agrupa los parametros del endpoint WebSocket.
type EndpointOptions struct {
	HeartbeatInterval time.Duration
	MaxMessageLength  int
	QueueSize         int
}

// Endpoint acepta conexiones WebSocket y las conecta al pipeline de chat.
type Endpoint struct {
	upgrader websocket.Upgrader
	registry *Registry
	tokens   *TokenIssuer
	chat     ChatHandler
	opts     EndpointOptions
	logger   *zap.Logger
}

func NewEndpoint(registry *Registry, tokens *TokenIssuer, chat ChatHandler, opts EndpointOptions, logger *zap.Logger) *Endpoint {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Endpoint{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		registry: registry,
		tokens:   tokens,
		chat:     chat,
		opts:     opts,
		logger:   logger,
	}
}

// Handle es el handler gin de GET /ws. Query: client_id y token para reanudar una sesion.
func (e *Endpoint) Handle(c *gin.Context) {
	clientID := e.resolveClientID(c.Query("client_id"), c.Query("token"))
	if !e.registry.CanAccept(clientID) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many connections"})
		return
	}

	conn, err := e.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// El contexto del request muere cuando el handler retorna; la conexion vive aparte.
	if err := e.Serve(context.Background(), conn, clientID); err != nil && !errors.Is(err, ErrDisconnected) {
		e.logger.Debug("websocket session ended", zap.String("client_id", clientID), zap.Error(err))
	}
}

// resolveClientID conserva el id pedido solo si el token lo respalda; si no, asigna uno nuevo.
func (e *Endpoint) resolveClientID(requested, token string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && e.tokens != nil {
		if sub, err := e.tokens.Verify(token); err == nil && sub == requested {
			return requested
		}
		e.logger.Info("resume rejected, assigning new client id", zap.String("requested_client_id", requested))
	}
	return uuid.NewString()
}

// Serve atiende una conexion ya establecida hasta que se cierra. Bloquea.
func (e *Endpoint) Serve(parent context.Context, raw Conn, clientID string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	conn := &lockedConn{conn: raw}
	defer conn.Close()

	gen, err := e.registry.Attach(clientID, cancel)
	if err != nil {
		_ = conn.WriteFrame(ErrorFrame(CodeUnavailable, err.Error()))
		_ = conn.WriteClose(websocket.CloseTryAgainLater, "too many connections")
		return err
	}

	token := ""
	if e.tokens != nil {
		if token, err = e.tokens.Issue(clientID); err != nil {
			e.logger.Warn("resume token issue failed", zap.String("client_id", clientID), zap.Error(err))
		}
	}
	if err := conn.WriteFrame(SessionFrame(clientID, e.chat.ConversationID(ctx, clientID), token)); err != nil {
		e.registry.Detach(clientID, gen, false)
		return errors.Join(ErrDisconnected, err)
	}
	e.logger.Info("websocket connected", zap.String("client_id", clientID), zap.Uint64("generation", gen))

	// Cerrar el socket desbloquea el reader cuando el contexto se cancela (takeover o shutdown).
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	jobs := make(chan Frame, e.opts.QueueSize)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.worker(ctx, conn, clientID, jobs)
	}()
	go func() {
		defer wg.Done()
		e.heartbeat(ctx, conn, clientID, gen)
	}()

	explicit, readErr := e.readLoop(ctx, conn, clientID, gen, jobs)

	cancel()
	close(jobs)
	wg.Wait()
	e.registry.Detach(clientID, gen, explicit)

	if explicit {
		e.logger.Info("websocket closed by client", zap.String("client_id", clientID))
		return nil
	}
	e.logger.Info("websocket dropped", zap.String("client_id", clientID), zap.Error(readErr))
	return errors.Join(ErrDisconnected, readErr)
}

func (e *Endpoint) readLoop(ctx context.Context, conn *lockedConn, clientID string, gen uint64, jobs chan<- Frame) (bool, error) {
	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			return websocket.IsCloseError(err, websocket.CloseNormalClosure), err
		}

		frame, err := DecodeFrame(data, e.opts.MaxMessageLength)
		if err != nil {
			e.logger.Debug("invalid frame rejected", zap.String("client_id", clientID), zap.Error(err))
			_ = conn.WriteFrame(ErrorFrame(CodeInvalidFrame, err.Error()))
			continue
		}

		switch frame.Type {
		case FramePing:
			_ = conn.WriteFrame(PongFrame())
		case FramePong:
			e.registry.Heartbeat(clientID, gen)
			conn.pong()
		case FrameChat:
			select {
			case jobs <- frame:
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}
}

// worker procesa los chats de la conexion de a uno, en orden de llegada.
func (e *Endpoint) worker(ctx context.Context, conn *lockedConn, clientID string, jobs <-chan Frame) {
	for frame := range jobs {
		if ctx.Err() != nil {
			continue
		}
		reply, err := e.chat.Chat(ctx, clientID, frame.Inbound())
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			_ = conn.WriteFrame(chatErrorFrame(err))
			continue
		}
		if err := conn.WriteFrame(ChatFrame(reply)); err != nil {
			e.logger.Debug("reply write failed", zap.String("client_id", clientID), zap.Error(err))
		}
	}
}

func chatErrorFrame(err error) Frame {
	switch {
	case errors.Is(err, service.ErrInvalidMessage):
		return ErrorFrame(CodeInvalidMessage, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		return ErrorFrame(CodeRateLimited, "too many messages, slow down")
	default:
		return ErrorFrame(CodeInternal, "message could not be processed")
	}
}

// heartbeat envia pings periodicos. Un pong faltante solo se registra: la conexion
// se cierra unicamente por error de lectura o cierre explicito.
func (e *Endpoint) heartbeat(ctx context.Context, conn *lockedConn, clientID string, gen uint64) {
	ticker := time.NewTicker(e.opts.HeartbeatInterval)
	defer ticker.Stop()

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if conn.awaitingPong() {
				missed++
				e.logger.Warn("heartbeat missed",
					zap.String("client_id", clientID),
					zap.Uint64("generation", gen),
					zap.Int("missed", missed),
				)
			} else {
				missed = 0
			}
			if err := conn.WriteFrame(PingFrame()); err != nil {
				return
			}
			conn.pinged()
		}
	}
}

// lockedConn serializa las escrituras: gorilla admite un solo writer concurrente.
type lockedConn struct {
	conn Conn

	writeMu sync.Mutex

	stateMu     sync.Mutex
	pendingPing bool
	closeOnce   sync.Once
}

func (c *lockedConn) WriteFrame(f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *lockedConn) WriteClose(code int, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

func (c *lockedConn) Close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

func (c *lockedConn) pinged() {
	c.stateMu.Lock()
	c.pendingPing = true
	c.stateMu.Unlock()
}

func (c *lockedConn) pong() {
	c.stateMu.Lock()
	c.pendingPing = false
	c.stateMu.Unlock()
}

func (c *lockedConn) awaitingPong() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.pendingPing
}
