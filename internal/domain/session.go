package domain

import "time"

// ConnectionState es el estado de la conexion persistente de un cliente.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateOpen         ConnectionState = "open"
	StateReconnecting ConnectionState = "reconnecting"
	StateClosed       ConnectionState = "closed"
)

// ClientSession es la vista del estado de transporte de un cliente.
// ClientID es estable entre reconexiones.
type ClientSession struct {
	ClientID         string          `json:"client_id"`
	ConnectionState  ConnectionState `json:"connection_state"`
	ReconnectAttempt int             `json:"reconnect_attempt"`
	LastHeartbeatAt  time.Time       `json:"last_heartbeat_at"`
}
