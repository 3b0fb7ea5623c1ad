package exchange

import (
	"time"

	"github.com/alejandrodnm/betstream/internal/domain"
)

// mapStatus convierte el DTO de status a domain.Status.
func mapStatus(raw rawEnvelope) domain.Status {
	return domain.Status{
		RequestID:        raw.ID,
		Code:             domain.StatusCode(raw.StatusCode),
		ErrorCode:        raw.ErrorCode,
		ErrorMessage:     raw.ErrorMessage,
		ConnectionClosed: raw.ConnectionClosed,
	}
}

// mapMarketChange convierte un mcm raw a domain.MarketChange.
// El publish time viene en epoch millis; los fragments heredan ese
// timestamp como clave de merge.
func mapMarketChange(raw rawEnvelope) domain.MarketChange {
	mc := domain.MarketChange{
		RequestID:   raw.ID,
		PublishTime: time.UnixMilli(raw.PublishTime).UTC(),
		ChangeType:  domain.ChangeType(raw.ChangeType),
	}
	if len(raw.Changes) > 0 {
		mc.Changes = make([]domain.MarketChangeFragment, 0, len(raw.Changes))
	}
	for _, c := range raw.Changes {
		mc.Changes = append(mc.Changes, mapFragment(c))
	}
	return mc
}

// mapFragment convierte el cambio de un mercado, definición incluida si viene.
func mapFragment(raw rawMarketChange) domain.MarketChangeFragment {
	f := domain.MarketChangeFragment{MarketID: raw.ID}
	if raw.Definition != nil {
		def := mapDefinition(raw.ID, *raw.Definition)
		f.Definition = &def
	}
	for _, rc := range raw.RunnerChanges {
		f.RunnerChanges = append(f.RunnerChanges, mapRunnerChange(rc))
	}
	return f
}

func mapDefinition(marketID string, raw rawMarketDefinition) domain.MarketDefinition {
	def := domain.MarketDefinition{
		MarketID:    marketID,
		EventID:     raw.EventID,
		EventTypeID: raw.EventTypeID,
		Venue:       raw.Venue,
		MarketType:  raw.MarketType,
		Status:      domain.MarketStatus(raw.Status),
		MarketTime:  parseTime(raw.MarketTime),
	}
	for _, r := range raw.Runners {
		rd := domain.RunnerDefinition{
			RunnerID:         r.ID,
			Name:             r.Name,
			Status:           domain.RunnerStatus(r.Status),
			StartingPrice:    r.StartingPrice.Ptr(),
			AdjustmentFactor: r.AdjustmentFactor.Ptr(),
		}
		if r.RemovalDate != "" {
			if t := parseTime(r.RemovalDate); !t.IsZero() {
				rd.RemovalDate = &t
			}
		}
		def.Runners = append(def.Runners, rd)
	}
	return def
}

// mapRunnerChange convierte un delta de runner. Los sentinels de precio ya
// fueron normalizados a ausente por priceField; aquí solo se descartan los
// niveles del ladder que quedaron incompletos.
func mapRunnerChange(raw rawRunnerChange) domain.RunnerChange {
	rc := domain.RunnerChange{
		RunnerID:        raw.ID,
		LastTradedPrice: raw.LTP.Ptr(),
	}
	for _, lvl := range raw.BestLay {
		if len(lvl) != 3 || !lvl[0].valid || !lvl[1].valid || !lvl[2].valid {
			continue
		}
		rc.BestLay = append(rc.BestLay, domain.PriceLevel{
			Level: int(lvl[0].value),
			Price: lvl[1].value,
			Size:  lvl[2].value,
		})
	}
	return rc
}

// parseTime intenta los formatos de timestamp que usa el exchange.
// Devuelve el zero value si ninguno aplica.
func parseTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
