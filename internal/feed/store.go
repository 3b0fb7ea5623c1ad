package feed

// store.go — Latest-Value State Store.
//
// Una entrada por (marketID, runnerID) con el último valor observado y el
// publish time que lo produjo. Last-write-wins por publish time, no por
// orden de llegada: un delta con publish time menor al guardado se descarta
// y se cuenta (StaleUpdateDiscarded es un evento esperado, no un error).
//
// Disciplina single-writer/multi-reader: el goroutine del socket (o el
// loop de replay) es el único que llama Apply; las lecturas concurrentes
// van por el RWMutex y nunca bloquean al writer más que lo que dura una
// copia de entrada. No hay backpressure hacia el exchange: descartar
// intermedios stale ES el mecanismo de flow control.

import (
	"sync"
	"sync/atomic"
	"time"
)

// Update son los campos que trae un delta. nil = campo no incluido.
type Update struct {
	LastTradedPrice *float64
	BestLayPrice    *float64
	BestLaySize     *float64
}

// Entry es el último valor observado de un runner.
// Los punteros apuntan a valores inmutables: el store los reemplaza,
// nunca los muta, así que compartirlos en copias es seguro.
type Entry struct {
	LastTradedPrice *float64
	BestLayPrice    *float64
	BestLaySize     *float64
	PublishTime     time.Time
}

type runnerKey struct {
	marketID string
	runnerID int64
}

// LatestValueStore es el keyed store en memoria. Sin singletons de proceso:
// cada sesión live o unidad de replay construye el suyo e inyecta.
type LatestValueStore struct {
	mu      sync.RWMutex
	entries map[runnerKey]Entry

	applied   atomic.Int64
	discarded atomic.Int64
}

// NewLatestValueStore crea un store vacío.
func NewLatestValueStore() *LatestValueStore {
	return &LatestValueStore{entries: make(map[runnerKey]Entry)}
}

// Apply mergea un delta. Si no hay entrada previa o publishTime supera al
// guardado, sobreescribe los campos presentes y devuelve true. Con publish
// times exactamente iguales gana el último aplicado (orden de llegada) —
// ambigüedad reconocida del protocolo bajo reordenación. Si publishTime es
// menor, descarta y devuelve false.
func (s *LatestValueStore) Apply(marketID string, runnerID int64, u Update, publishTime time.Time) bool {
	key := runnerKey{marketID: marketID, runnerID: runnerID}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if exists && publishTime.Before(entry.PublishTime) {
		s.discarded.Add(1)
		return false
	}

	if u.LastTradedPrice != nil {
		entry.LastTradedPrice = u.LastTradedPrice
	}
	if u.BestLayPrice != nil {
		entry.BestLayPrice = u.BestLayPrice
	}
	if u.BestLaySize != nil {
		entry.BestLaySize = u.BestLaySize
	}
	entry.PublishTime = publishTime

	s.entries[key] = entry
	s.applied.Add(1)
	return true
}

// Lookup devuelve una copia de la entrada de un runner.
func (s *LatestValueStore) Lookup(marketID string, runnerID int64) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[runnerKey{marketID: marketID, runnerID: runnerID}]
	return entry, ok
}

// RetainRunners elimina las entradas de un mercado cuyos runners ya no
// aparecen en keep. Se usa cuando una definición nueva reemplaza la lista
// de runners wholesale.
func (s *LatestValueStore) RetainRunners(marketID string, keep map[int64]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if key.marketID != marketID {
			continue
		}
		if _, ok := keep[key.runnerID]; !ok {
			delete(s.entries, key)
		}
	}
}

// DropMarket elimina todas las entradas de un mercado (eviction al cierre).
func (s *LatestValueStore) DropMarket(marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if key.marketID == marketID {
			delete(s.entries, key)
		}
	}
}

// Applied devuelve cuántos deltas se aplicaron.
func (s *LatestValueStore) Applied() int64 { return s.applied.Load() }

// Discarded devuelve cuántos deltas stale se descartaron.
func (s *LatestValueStore) Discarded() int64 { return s.discarded.Load() }
