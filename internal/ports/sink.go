package ports

import (
	"context"

	"github.com/alejandrodnm/betstream/internal/domain"
)

// SnapshotSink persiste los resultados de un replay run en formato tabular.
// La implementación por defecto es SQLite; el engine de reconstrucción no
// sabe ni le importa dónde terminan las filas.
type SnapshotSink interface {
	// SaveRun persiste el run completo: una fila de resumen más una fila
	// por MarketSnapshot y por RunnerSnapshot. Debe ser idempotente por
	// RunID para poder reintentar un run fallido.
	SaveRun(ctx context.Context, run domain.ReplayRun) error

	Close() error
}
