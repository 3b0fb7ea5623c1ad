package ports

import "github.com/alejandrodnm/betstream/internal/domain"

// QuoteProvider es la API de consulta que ve cualquier proceso de decisión
// en el path live. Las lecturas son seguras en concurrencia con el writer
// del socket y nunca lo bloquean.
type QuoteProvider interface {
	// Snapshot materializa el estado actual de un mercado.
	// Devuelve feed.ErrMissingDefinition si nunca llegó una definición
	// (puede pasar legítimamente si la suscripción empezó mid-stream).
	Snapshot(marketID string) (domain.MarketSnapshot, error)

	// RunnerView devuelve la vista de un runner, o ok=false si el mercado
	// no tiene definición o el runner no aparece en ella.
	RunnerView(marketID string, runnerID int64) (domain.RunnerSnapshot, bool)
}
