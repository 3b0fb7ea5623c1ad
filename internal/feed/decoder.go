package feed

// decoder.go — Market Delta Decoder.
//
// Los fragments ya vienen estructurados del codec; el trabajo real aquí es
// clasificar: ¿trae una MarketDefinition (replace wholesale) o solo deltas
// de runners (merge)? Los sentinels numéricos ya se normalizaron a ausente
// en el boundary, así que un puntero nil significa "campo sin valor".

import "github.com/alejandrodnm/betstream/internal/domain"

// fragmentKind clasifica un MarketChangeFragment.
type fragmentKind int

const (
	// fragmentEmpty no transporta nada aplicable (p.ej. dentro de un heartbeat).
	fragmentEmpty fragmentKind = iota
	// fragmentDefinition trae definición (y opcionalmente deltas de runners).
	fragmentDefinition
	// fragmentDelta trae solo deltas de runners.
	fragmentDelta
)

func classify(f domain.MarketChangeFragment) fragmentKind {
	switch {
	case f.Definition != nil:
		return fragmentDefinition
	case len(f.RunnerChanges) > 0:
		return fragmentDelta
	default:
		return fragmentEmpty
	}
}

// runnerUpdate construye el Update del store desde un delta de runner.
// Devuelve ok=false si el delta no trae ningún campo aplicable.
func runnerUpdate(rc domain.RunnerChange) (Update, bool) {
	u := Update{LastTradedPrice: rc.LastTradedPrice}
	u.BestLayPrice, u.BestLaySize = bestLayTop(rc.BestLay)
	return u, u.LastTradedPrice != nil || u.BestLayPrice != nil
}

// bestLayTop extrae precio y size del nivel 0 del ladder best-available-to-lay.
// Solo se trackea top-of-book; los niveles más profundos se ignoran.
func bestLayTop(levels []domain.PriceLevel) (*float64, *float64) {
	for _, lvl := range levels {
		if lvl.Level != 0 {
			continue
		}
		price, size := lvl.Price, lvl.Size
		return &price, &size
	}
	return nil, nil
}
