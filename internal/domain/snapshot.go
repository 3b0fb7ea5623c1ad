package domain

import "time"

// MarketSnapshot es el aplanado read-only de un mercado en un instante.
// Nunca se muta después de crearse; cada materialización construye uno nuevo.
type MarketSnapshot struct {
	MarketID   string
	EventID    string
	Venue      string
	MarketType string
	Status     MarketStatus
	MarketTime time.Time
	Runners    []RunnerSnapshot
}

// RunnerSnapshot es la vista aplanada de un runner.
// AsOf es el publish time del último delta aplicado; si ningún delta
// llegó todavía, AsOf es el zero value y los precios son nil.
type RunnerSnapshot struct {
	RunnerID        int64
	Name            string
	Status          RunnerStatus
	LastTradedPrice *float64
	BestLayPrice    *float64
	BestLaySize     *float64
	AsOf            time.Time
}

// Stale devuelve true si el último dato aplicado es más viejo que maxAge.
// Un runner sin deltas aplicados (AsOf zero) siempre es stale: los
// consumidores time-critical deben negarse a actuar sobre él.
func (r RunnerSnapshot) Stale(now time.Time, maxAge time.Duration) bool {
	if r.AsOf.IsZero() {
		return true
	}
	return now.Sub(r.AsOf) > maxAge
}
