package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"support-router/internal/domain"
)

var ErrTooManyConnections = errors.New("too many connections")

// RegistryOptions controla la capacidad y el periodo de gracia de las sesiones.
type RegistryOptions struct {
	MaxConnections int
	Grace          time.Duration
	Policy         Policy
	// OnEvict se llama fuera del lock cuando una sesion se destruye.
	OnEvict func(clientID string)
	Logger  *zap.Logger
}

type sessionEntry struct {
	clientID      string
	machine       *Machine
	generation    uint64
	cancel        context.CancelFunc
	lastHeartbeat time.Time
	grace         *time.Timer
}

// Registry es el dueno de todas las ClientSession, indexadas por clientId.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	open     int
	opts     RegistryOptions
	logger   *zap.Logger
	now      func() time.Time
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Grace <= 0 {
		opts.Grace = 2 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*sessionEntry),
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CanAccept indica si hay lugar para una conexion de clientID sin desplazar a nadie.
func (r *Registry) CanAccept(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[clientID]; ok && e.cancel != nil {
		return true
	}
	return r.opts.MaxConnections <= 0 || r.open < r.opts.MaxConnections
}

// Attach asocia una conexion nueva a la sesion del cliente. Si ya habia una conexion abierta
// para el mismo clientId, se cancela (takeover). Devuelve la generacion de esta conexion.
func (r *Registry) Attach(clientID string, cancel context.CancelFunc) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[clientID]
	if !ok {
		if r.opts.MaxConnections > 0 && r.open >= r.opts.MaxConnections {
			return 0, ErrTooManyConnections
		}
		e = &sessionEntry{clientID: clientID, machine: NewMachine(r.opts.Policy)}
		r.sessions[clientID] = e
		r.open++
	} else {
		if e.grace != nil {
			e.grace.Stop()
			e.grace = nil
		}
		if e.cancel != nil {
			r.logger.Info("session taken over by new connection", zap.String("client_id", clientID))
			e.cancel()
		} else {
			if r.opts.MaxConnections > 0 && r.open >= r.opts.MaxConnections {
				return 0, ErrTooManyConnections
			}
			r.open++
		}
	}

	e.generation++
	e.cancel = cancel
	e.lastHeartbeat = r.now()
	_ = e.machine.Opened()
	return e.generation, nil
}

// Detach libera la conexion gen del cliente. Una conexion ya reemplazada se ignora.
// explicit=true destruye la sesion; si no, queda Reconnecting durante el periodo de gracia.
func (r *Registry) Detach(clientID string, gen uint64, explicit bool) {
	r.mu.Lock()
	e, ok := r.sessions[clientID]
	if !ok || e.generation != gen || e.cancel == nil {
		r.mu.Unlock()
		return
	}
	e.cancel = nil
	r.open--

	if explicit {
		e.machine.Close()
		delete(r.sessions, clientID)
		r.mu.Unlock()
		r.evicted(clientID)
		return
	}

	drop := e.machine.Dropped()
	if drop.State == domain.StateClosed {
		delete(r.sessions, clientID)
		r.mu.Unlock()
		r.logger.Info("session reconnect budget exhausted", zap.String("client_id", clientID))
		r.evicted(clientID)
		return
	}
	e.grace = time.AfterFunc(r.opts.Grace, func() { r.expire(clientID, gen) })
	r.mu.Unlock()
}

func (r *Registry) expire(clientID string, gen uint64) {
	r.mu.Lock()
	e, ok := r.sessions[clientID]
	if !ok || e.generation != gen || e.cancel != nil {
		r.mu.Unlock()
		return
	}
	e.machine.Close()
	delete(r.sessions, clientID)
	r.mu.Unlock()

	r.logger.Info("session abandoned", zap.String("client_id", clientID))
	r.evicted(clientID)
}

func (r *Registry) evicted(clientID string) {
	if r.opts.OnEvict != nil {
		r.opts.OnEvict(clientID)
	}
}

// Heartbeat registra un pong de la conexion gen.
func (r *Registry) Heartbeat(clientID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[clientID]; ok && e.generation == gen {
		e.lastHeartbeat = r.now()
	}
}

// Session devuelve la vista de la sesion del cliente.
func (r *Registry) Session(clientID string) (domain.ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[clientID]
	if !ok {
		return domain.ClientSession{}, false
	}
	return domain.ClientSession{
		ClientID:         e.clientID,
		ConnectionState:  e.machine.State(),
		ReconnectAttempt: e.machine.Attempt(),
		LastHeartbeatAt:  e.lastHeartbeat,
	}, true
}

// OpenCount devuelve la cantidad de conexiones abiertas.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// Shutdown cancela todas las conexiones y detiene los timers de gracia.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.sessions {
		if e.grace != nil {
			e.grace.Stop()
		}
		if e.cancel != nil {
			e.cancel()
		}
	}
}
