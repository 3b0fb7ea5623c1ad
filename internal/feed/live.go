package feed

// live.go — vista de consulta para consumidores time-critical.
//
// El staleness es responsabilidad del consumidor, no del store: LiveView
// lo encapsula para los procesos de decisión, que ven dato fresco o un
// rechazo explícito — nunca un valor fabricado.

import (
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/betstream/internal/domain"
)

// ErrStaleQuote indica que el último dato de un runner supera el max age
// configurado (o que nunca llegó un delta).
var ErrStaleQuote = errors.New("quote is stale")

// LiveView envuelve un Aggregator con un umbral de frescura.
type LiveView struct {
	agg    *Aggregator
	maxAge time.Duration
	now    func() time.Time // inyectable en tests
}

// NewLiveView crea una vista con el max age dado. El orden de magnitud
// razonable para decisiones de apuesta son segundos.
func NewLiveView(agg *Aggregator, maxAge time.Duration) *LiveView {
	return &LiveView{agg: agg, maxAge: maxAge, now: time.Now}
}

// Snapshot materializa el estado actual de un mercado.
func (v *LiveView) Snapshot(marketID string) (domain.MarketSnapshot, error) {
	return v.agg.Snapshot(marketID)
}

// RunnerView devuelve la vista de un runner sin chequeo de frescura.
func (v *LiveView) RunnerView(marketID string, runnerID int64) (domain.RunnerSnapshot, bool) {
	return v.agg.RunnerView(marketID, runnerID)
}

// FreshQuote devuelve la vista de un runner solo si su último dato está
// dentro del max age; si no, ErrStaleQuote con la edad observada.
func (v *LiveView) FreshQuote(marketID string, runnerID int64) (domain.RunnerSnapshot, error) {
	rs, ok := v.agg.RunnerView(marketID, runnerID)
	if !ok {
		return domain.RunnerSnapshot{}, fmt.Errorf("feed.FreshQuote: %s/%d: %w", marketID, runnerID, ErrMissingDefinition)
	}
	if rs.Stale(v.now(), v.maxAge) {
		return domain.RunnerSnapshot{}, fmt.Errorf("feed.FreshQuote: %s/%d: as_of=%s: %w",
			marketID, runnerID, rs.AsOf.Format(time.RFC3339), ErrStaleQuote)
	}
	return rs, nil
}
