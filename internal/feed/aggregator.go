package feed

// aggregator.go — Market/Runner Aggregator.
//
// Combina la definición más reciente de cada mercado con el Latest-Value
// State Store. Las definiciones se reemplazan wholesale (whole-value
// last-write-wins por publish time): el protocolo siempre manda la lista
// completa de runners en cada update de definición, así que los runners
// que desaparecen de ella se expulsan del store.

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/betstream/internal/domain"
)

// ErrMissingDefinition se devuelve al pedir el snapshot de un mercado del
// que nunca llegó una definición. Puede pasar legítimamente si el replay o
// la suscripción empezaron mid-stream; es un error del caller, no un crash.
var ErrMissingDefinition = errors.New("no market definition seen")

type definitionEntry struct {
	def         domain.MarketDefinition
	publishTime time.Time
}

// Aggregator mantiene la cache de definiciones y reenvía los deltas de
// runners al store. Un Aggregator por sesión live o por unidad de replay.
type Aggregator struct {
	mu    sync.RWMutex
	defs  map[string]definitionEntry
	store *LatestValueStore

	// evictClosed expulsa mercados CLOSED al recibir su definición final.
	// Live lo activa (el proceso vive días); replay lo deja apagado para
	// que los mercados cerrados aparezcan en la salida materializada.
	evictClosed bool
}

// NewAggregator crea un Aggregator sobre el store inyectado.
func NewAggregator(store *LatestValueStore) *Aggregator {
	return &Aggregator{
		defs:  make(map[string]definitionEntry),
		store: store,
	}
}

// NewLiveAggregator crea un Aggregator que expulsa mercados al cerrarse.
func NewLiveAggregator(store *LatestValueStore) *Aggregator {
	a := NewAggregator(store)
	a.evictClosed = true
	return a
}

// Store devuelve el state store subyacente.
func (a *Aggregator) Store() *LatestValueStore { return a.store }

// OnMarketChange aplica un batch de cambios. Implementa el lado de
// escritura: en el path live la llama únicamente el goroutine del socket.
func (a *Aggregator) OnMarketChange(mc domain.MarketChange) {
	for _, f := range mc.Changes {
		a.onFragment(f, mc.PublishTime)
	}
}

func (a *Aggregator) onFragment(f domain.MarketChangeFragment, publishTime time.Time) {
	switch classify(f) {
	case fragmentDefinition:
		a.replaceDefinition(f.MarketID, *f.Definition, publishTime)
	case fragmentEmpty:
		return
	}

	// Una SUB_IMAGE trae definición y deltas en el mismo fragment;
	// ambos caminos aplican los runner changes que vengan.
	for _, rc := range f.RunnerChanges {
		u, ok := runnerUpdate(rc)
		if !ok {
			continue
		}
		a.store.Apply(f.MarketID, rc.RunnerID, u, publishTime)
	}
}

// replaceDefinition reemplaza la definición cacheada si el publish time no
// es anterior al guardado, y expulsa del store los runners que la nueva
// definición ya no menciona.
func (a *Aggregator) replaceDefinition(marketID string, def domain.MarketDefinition, publishTime time.Time) {
	a.mu.Lock()
	if cached, ok := a.defs[marketID]; ok && publishTime.Before(cached.publishTime) {
		a.mu.Unlock()
		slog.Debug("stale market definition discarded",
			"market_id", marketID,
			"pt", publishTime,
			"stored_pt", cached.publishTime,
		)
		return
	}

	if a.evictClosed && def.Status == domain.MarketClosed {
		delete(a.defs, marketID)
		a.mu.Unlock()
		a.store.DropMarket(marketID)
		slog.Debug("closed market evicted", "market_id", marketID)
		return
	}

	a.defs[marketID] = definitionEntry{def: def, publishTime: publishTime}
	a.mu.Unlock()

	keep := make(map[int64]struct{}, len(def.Runners))
	for _, r := range def.Runners {
		keep[r.RunnerID] = struct{}{}
	}
	a.store.RetainRunners(marketID, keep)
}

// Snapshot materializa el estado actual de un mercado.
func (a *Aggregator) Snapshot(marketID string) (domain.MarketSnapshot, error) {
	a.mu.RLock()
	cached, ok := a.defs[marketID]
	a.mu.RUnlock()
	if !ok {
		return domain.MarketSnapshot{}, ErrMissingDefinition
	}
	return Materialize(cached.def, a.store), nil
}

// RunnerView devuelve la vista de un runner, o ok=false si el mercado no
// tiene definición o el runner no aparece en ella.
func (a *Aggregator) RunnerView(marketID string, runnerID int64) (domain.RunnerSnapshot, bool) {
	a.mu.RLock()
	cached, ok := a.defs[marketID]
	a.mu.RUnlock()
	if !ok {
		return domain.RunnerSnapshot{}, false
	}
	rd, ok := cached.def.Runner(runnerID)
	if !ok {
		return domain.RunnerSnapshot{}, false
	}
	return materializeRunner(marketID, rd, a.store), true
}

// MarketIDs devuelve los mercados con definición, ordenados.
func (a *Aggregator) MarketIDs() []string {
	a.mu.RLock()
	ids := make([]string, 0, len(a.defs))
	for id := range a.defs {
		ids = append(ids, id)
	}
	a.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// SnapshotAll materializa todos los mercados conocidos, ordenados por
// market id para salida reproducible.
func (a *Aggregator) SnapshotAll() []domain.MarketSnapshot {
	ids := a.MarketIDs()
	snaps := make([]domain.MarketSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := a.Snapshot(id)
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}
