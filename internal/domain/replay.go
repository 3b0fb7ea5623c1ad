package domain

import "time"

// ReplayRun es el resultado agregado de una pasada de replay sobre uno o
// más archivos: los snapshots materializados más los contadores del run.
type ReplayRun struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Files         int
	FailedFiles   int
	Lines         int
	DecodeErrors  int
	StaleDiscards int
	Markets       []MarketSnapshot
}
