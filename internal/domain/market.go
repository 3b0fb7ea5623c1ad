package domain

import "time"

// MarketStatus es el estado de negociación de un mercado.
type MarketStatus string

const (
	MarketOpen      MarketStatus = "OPEN"
	MarketSuspended MarketStatus = "SUSPENDED"
	MarketClosed    MarketStatus = "CLOSED"
	MarketInactive  MarketStatus = "INACTIVE"
)

// RunnerStatus es el estado de un runner dentro de su mercado.
type RunnerStatus string

const (
	RunnerActive  RunnerStatus = "ACTIVE"
	RunnerWinner  RunnerStatus = "WINNER"
	RunnerLoser   RunnerStatus = "LOSER"
	RunnerRemoved RunnerStatus = "REMOVED"
)

// MarketDefinition es el snapshot descriptivo completo de un mercado.
// El exchange lo envía periódicamente y en cada cambio estructural;
// siempre reemplaza por completo a la definición anterior, nunca se mergea.
type MarketDefinition struct {
	MarketID    string
	EventID     string
	EventTypeID string
	Venue       string
	MarketType  string
	Status      MarketStatus
	MarketTime  time.Time
	Runners     []RunnerDefinition
}

// Runner busca la definición de un runner por id.
func (d MarketDefinition) Runner(runnerID int64) (RunnerDefinition, bool) {
	for _, r := range d.Runners {
		if r.RunnerID == runnerID {
			return r, true
		}
	}
	return RunnerDefinition{}, false
}

// RunnerDefinition describe un runner dentro de una MarketDefinition.
// StartingPrice y AdjustmentFactor en nil significan "sin valor":
// el sentinel "no price" del protocolo nunca se normaliza a cero.
type RunnerDefinition struct {
	RunnerID         int64
	Name             string
	Status           RunnerStatus
	StartingPrice    *float64
	AdjustmentFactor *float64
	RemovalDate      *time.Time
}
