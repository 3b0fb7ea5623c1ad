package ports

import (
	"context"

	"github.com/alejandrodnm/betstream/internal/domain"
)

// Notifier presenta el estado de los mercados trackeados al usuario.
type Notifier interface {
	// Notify muestra los snapshots ordenados por market id.
	// En la implementación de consola, imprime una tabla formateada.
	Notify(ctx context.Context, snapshots []domain.MarketSnapshot) error
}
