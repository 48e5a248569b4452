package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"support-router/internal/domain"
)

var (
	ErrReconnectionExhausted = errors.New("reconnection attempts exhausted")
	ErrClientClosed          = errors.New("client closed")
)

// DialFunc abre una conexion a rawURL.
type DialFunc func(ctx context.Context, rawURL string) (Conn, error)

// ClientOptions configura el cliente con reconexion.
type ClientOptions struct {
	URL    string
	Policy Policy
	Logger *zap.Logger

	// OnFrame recibe los frames de chat y de error del servidor.
	OnFrame func(Frame)
	// OnState recibe cada cambio de estado de la conexion.
	OnState func(domain.ConnectionState)

	Dial  DialFunc
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client mantiene una sesion persistente con el servidor y reconecta con backoff exponencial.
// El clientId asignado por el servidor se conserva entre reconexiones.
type Client struct {
	opts    ClientOptions
	machine *Machine
	logger  *zap.Logger

	mu             sync.Mutex
	conn           *lockedConn
	clientID       string
	token          string
	conversationID string

	exhausted chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func NewClient(opts ClientOptions) *Client {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.Dial == nil {
		opts.Dial = dialWebSocket
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:      opts,
		machine:   NewMachine(opts.Policy),
		logger:    logger,
		exhausted: make(chan struct{}),
		closed:    make(chan struct{}),
	}
}

func dialWebSocket(ctx context.Context, rawURL string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run conecta y mantiene la sesion hasta Close, cancelacion de ctx o agotamiento de reintentos.
func (c *Client) Run(ctx context.Context) error {
	// runCtx tambien se cancela con Close, asi el dial y la espera de backoff terminan enseguida.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-runCtx.Done():
		}
	}()

	c.notify(c.machine.State())
	for {
		if c.isClosed() {
			return nil
		}
		err := c.session(runCtx)

		if c.isClosed() {
			return nil
		}
		if ctx.Err() != nil {
			c.machine.Close()
			c.notify(domain.StateClosed)
			return ctx.Err()
		}

		drop := c.machine.Dropped()
		c.notify(drop.State)
		if drop.Exhausted {
			close(c.exhausted)
			c.logger.Warn("reconnection exhausted", zap.String("client_id", c.ClientID()), zap.Error(err))
			return ErrReconnectionExhausted
		}
		if drop.State == domain.StateClosed {
			return nil
		}
		c.logger.Info("connection lost, reconnecting",
			zap.String("client_id", c.ClientID()),
			zap.Int("attempt", drop.Attempt),
			zap.Duration("delay", drop.Delay),
			zap.Error(err),
		)
		if err := c.opts.Sleep(runCtx, drop.Delay); err != nil {
			if c.isClosed() {
				return nil
			}
			c.machine.Close()
			c.notify(domain.StateClosed)
			return err
		}
	}
}

// session abre una conexion, espera el frame de sesion y lee hasta que se cae.
func (c *Client) session(ctx context.Context) error {
	raw, err := c.opts.Dial(ctx, c.dialURL())
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	conn := &lockedConn{conn: raw}
	defer conn.Close()

	_, data, err := raw.ReadMessage()
	if err != nil {
		return fmt.Errorf("read session frame: %w", err)
	}
	frame, err := ParseFrame(data)
	if err != nil {
		return err
	}
	if frame.Type != FrameSession || frame.ClientID == "" {
		return fmt.Errorf("%w: expected session frame, got %q", ErrInvalidFrame, frame.Type)
	}

	c.mu.Lock()
	c.clientID = frame.ClientID
	if frame.ResumeToken != "" {
		c.token = frame.ResumeToken
	}
	c.conversationID = frame.ConversationID
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	if err := c.machine.Opened(); err != nil {
		return err
	}
	c.notify(domain.StateOpen)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-c.closed:
		case <-stop:
		}
	}()

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return errors.Join(ErrDisconnected, err)
		}
		frame, err := ParseFrame(data)
		if err != nil {
			c.logger.Debug("invalid frame from server", zap.Error(err))
			continue
		}
		switch frame.Type {
		case FramePing:
			if err := conn.WriteFrame(PongFrame()); err != nil {
				return errors.Join(ErrDisconnected, err)
			}
		case FrameChat, FrameError:
			if c.opts.OnFrame != nil {
				c.opts.OnFrame(frame)
			}
		}
	}
}

func (c *Client) dialURL() string {
	c.mu.Lock()
	clientID, token := c.clientID, c.token
	c.mu.Unlock()
	if clientID == "" {
		return c.opts.URL
	}
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return c.opts.URL
	}
	q := u.Query()
	q.Set("client_id", clientID)
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Send envia un mensaje de chat. Falla con ErrDisconnected si no hay conexion abierta.
func (c *Client) Send(content string) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if c.isClosed() {
		return "", ErrClientClosed
	}
	if conn == nil {
		return "", ErrDisconnected
	}
	id := uuid.NewString()
	err := conn.WriteFrame(Frame{
		Type:      FrameChat,
		ID:        id,
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", errors.Join(ErrDisconnected, err)
	}
	return id, nil
}

// Close cierra la sesion de forma explicita: no reintenta ni emite agotamiento.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.machine.Close()
		close(c.closed)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			_ = conn.WriteClose(websocket.CloseNormalClosure, "bye")
			conn.Close()
		}
		c.notify(domain.StateClosed)
	})
	return nil
}

// Exhausted se cierra una sola vez cuando se agotan los reintentos.
func (c *Client) Exhausted() <-chan struct{} {
	return c.exhausted
}

func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

func (c *Client) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

func (c *Client) State() domain.ConnectionState {
	return c.machine.State()
}

// Attempt devuelve el contador de reconexion actual.
func (c *Client) Attempt() int {
	return c.machine.Attempt()
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Client) notify(state domain.ConnectionState) {
	if c.opts.OnState != nil {
		c.opts.OnState(state)
	}
}
