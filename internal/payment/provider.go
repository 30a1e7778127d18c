// Package payment contiene los clientes de proveedores de pago. El backend solo
// necesita capturar una orden ya aprobada por el comprador.
package payment

import "context"

// Capture es el resultado de capturar una orden en el proveedor.
// Amount esta en unidades menores.
type Capture struct {
	OrderID       string
	TransactionID string
	Completed     bool
	Amount        int64
	Currency      string
}

// Provider captura ordenes aprobadas. Capturar dos veces la misma orden debe
// devolver el mismo resultado.
type Provider interface {
	Capture(ctx context.Context, orderID string) (Capture, error)
}

// MockProvider permite tests sin llamar al proveedor real.
type MockProvider struct {
	Result Capture
	Err    error
	Calls  int
}

func (m *MockProvider) Capture(_ context.Context, orderID string) (Capture, error) {
	m.Calls++
	if m.Err != nil {
		return Capture{}, m.Err
	}
	res := m.Result
	if res.OrderID == "" {
		res.OrderID = orderID
	}
	return res, nil
}
