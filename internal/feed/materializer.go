package feed

// materializer.go — Snapshot Materializer.
//
// Transformación pura de definición + store a los record shapes de salida.
// Sin I/O. Los runners salen ordenados ascendente por runner id para que
// comparaciones downstream entre pasadas sean reproducibles.

import (
	"sort"

	"github.com/alejandrodnm/betstream/internal/domain"
)

// Materialize aplana una definición más el estado del store en un
// MarketSnapshot nuevo. El snapshot resultante no se muta jamás.
func Materialize(def domain.MarketDefinition, store *LatestValueStore) domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		MarketID:   def.MarketID,
		EventID:    def.EventID,
		Venue:      def.Venue,
		MarketType: def.MarketType,
		Status:     def.Status,
		MarketTime: def.MarketTime,
		Runners:    make([]domain.RunnerSnapshot, 0, len(def.Runners)),
	}
	for _, rd := range def.Runners {
		snap.Runners = append(snap.Runners, materializeRunner(def.MarketID, rd, store))
	}
	sort.Slice(snap.Runners, func(i, j int) bool {
		return snap.Runners[i].RunnerID < snap.Runners[j].RunnerID
	})
	return snap
}

// materializeRunner aplana un runner. Si ningún delta llegó todavía, los
// precios quedan nil y AsOf en zero: dato ausente explícito, nunca fabricado.
func materializeRunner(marketID string, rd domain.RunnerDefinition, store *LatestValueStore) domain.RunnerSnapshot {
	rs := domain.RunnerSnapshot{
		RunnerID: rd.RunnerID,
		Name:     rd.Name,
		Status:   rd.Status,
	}
	if entry, ok := store.Lookup(marketID, rd.RunnerID); ok {
		rs.LastTradedPrice = entry.LastTradedPrice
		rs.BestLayPrice = entry.BestLayPrice
		rs.BestLaySize = entry.BestLaySize
		rs.AsOf = entry.PublishTime
	}
	return rs
}
