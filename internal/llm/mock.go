package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
// Si Responses/Errs tienen elementos se consumen en orden, uno por llamada.
type MockClient struct {
	mu        sync.Mutex
	Response  string
	Err       error
	Responses []string
	Errs      []error
	// Block hace que Complete espere la cancelacion del contexto.
	Block bool

	Calls      int
	LastSystem string
	LastWindow []Turn
}

func (m *MockClient) Complete(ctx context.Context, system string, window []Turn) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.LastSystem = system
	m.LastWindow = append([]Turn(nil), window...)
	call := m.Calls - 1
	resp, err := m.Response, m.Err
	if call < len(m.Responses) {
		resp = m.Responses[call]
	}
	if call < len(m.Errs) {
		err = m.Errs[call]
	}
	block := m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// CallCount devuelve cuantas veces se llamo a Complete.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
