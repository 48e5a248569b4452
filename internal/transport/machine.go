package transport

import (
	"errors"
	"sync"
	"time"

	"support-router/internal/domain"
)

var ErrMachineClosed = errors.New("connection machine closed")

// Policy es la politica de reconexion: backoff exponencial con tope de intentos.
type Policy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultPolicy reintenta 5 veces a partir de 1s.
func DefaultPolicy() Policy {
	return Policy{BaseDelay: time.Second, MaxAttempts: 5}
}

// Drop describe la transicion tomada ante una caida.
type Drop struct {
	State     domain.ConnectionState
	Delay     time.Duration
	Attempt   int
	Exhausted bool
}

// Machine es la maquina de estados de una conexion; no toca sockets.
// Connecting -> Open -> (Open | Reconnecting) -> Closed. Closed es terminal.
type Machine struct {
	mu        sync.Mutex
	policy    Policy
	state     domain.ConnectionState
	attempt   int
	exhausted bool
}

func NewMachine(policy Policy) *Machine {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if policy.MaxAttempts < 0 {
		policy.MaxAttempts = 0
	}
	return &Machine{policy: policy, state: domain.StateConnecting}
}

func (m *Machine) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Opened registra una conexion exitosa; es el unico lugar donde attempt vuelve a 0.
func (m *Machine) Opened() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.StateClosed {
		return ErrMachineClosed
	}
	m.state = domain.StateOpen
	m.attempt = 0
	return nil
}

// Dropped registra una caida o un intento fallido y decide el siguiente paso.
// Exhausted es true solo en la transicion que agota los intentos.
func (m *Machine) Dropped() Drop {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.StateClosed {
		return Drop{State: domain.StateClosed, Attempt: m.attempt}
	}
	if m.attempt >= m.policy.MaxAttempts {
		m.state = domain.StateClosed
		m.exhausted = true
		return Drop{State: domain.StateClosed, Attempt: m.attempt, Exhausted: true}
	}
	delay := m.policy.BaseDelay << uint(m.attempt)
	m.attempt++
	m.state = domain.StateReconnecting
	return Drop{State: domain.StateReconnecting, Delay: delay, Attempt: m.attempt}
}

// Close cierra explicitamente: sin reintento y sin senal de agotamiento.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.StateClosed
}

// Exhausted indica si la maquina se cerro por agotar los intentos.
func (m *Machine) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exhausted
}
