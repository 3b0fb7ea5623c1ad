package ports

import "github.com/alejandrodnm/betstream/internal/domain"

// MarketChangeHandler recibe los market-change messages ya decodificados.
// El Transport Session y el Replay Source publican a través de esta
// interfaz; la implementan los aggregators del paquete feed.
type MarketChangeHandler interface {
	// OnMarketChange procesa un batch de cambios. Nunca devuelve error:
	// los deltas stale se descartan y se cuentan, no se propagan.
	OnMarketChange(mc domain.MarketChange)
}
