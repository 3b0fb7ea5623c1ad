package exchange

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DTOs raw del wire protocol del stream. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// rawEnvelope es la unión de todos los campos que puede traer una línea.
// El protocolo es plano: un switch sobre `op` decide qué campos importan.
type rawEnvelope struct {
	Op string `json:"op"`
	ID int    `json:"id"`

	// op: connection
	ConnectionID string `json:"connectionId"`

	// op: status
	StatusCode       string `json:"statusCode"`
	ErrorCode        string `json:"errorCode"`
	ErrorMessage     string `json:"errorMessage"`
	ConnectionClosed bool   `json:"connectionClosed"`

	// op: mcm
	PublishTime int64             `json:"pt"` // epoch millis
	ChangeType  string            `json:"ct"`
	Changes     []rawMarketChange `json:"mc"`
}

// rawMarketChange es el cambio de un mercado dentro de un mcm.
type rawMarketChange struct {
	ID            string               `json:"id"`
	Definition    *rawMarketDefinition `json:"marketDefinition"`
	RunnerChanges []rawRunnerChange    `json:"rc"`
}

// rawMarketDefinition es el snapshot descriptivo completo del mercado.
type rawMarketDefinition struct {
	EventID     string                `json:"eventId"`
	EventTypeID string                `json:"eventTypeId"`
	Venue       string                `json:"venue"`
	MarketType  string                `json:"marketType"`
	MarketTime  string                `json:"marketTime"`
	Status      string                `json:"status"`
	Runners     []rawRunnerDefinition `json:"runners"`
}

// rawRunnerDefinition describe un runner en la definición.
type rawRunnerDefinition struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Status           string     `json:"status"`
	StartingPrice    priceField `json:"bsp"`
	AdjustmentFactor priceField `json:"adjustmentFactor"`
	RemovalDate      string     `json:"removalDate"`
}

// rawRunnerChange es el delta de precios de un runner.
// batl llega como triples [level, price, size].
type rawRunnerChange struct {
	ID      int64          `json:"id"`
	LTP     priceField     `json:"ltp"`
	BestLay [][]priceField `json:"batl"`
}

// --- requests salientes ---

type authRequest struct {
	Op      string `json:"op"`
	ID      int    `json:"id"`
	AppKey  string `json:"appKey"`
	Session string `json:"session"`
}

type marketSubscription struct {
	Op               string           `json:"op"`
	ID               int              `json:"id"`
	HeartbeatMs      int              `json:"heartbeatMs,omitempty"`
	MarketFilter     marketFilter     `json:"marketFilter"`
	MarketDataFilter marketDataFilter `json:"marketDataFilter"`
}

type marketFilter struct {
	MarketIDs []string `json:"marketIds"`
}

type marketDataFilter struct {
	Fields []string `json:"fields"`
}

// --- sentinels numéricos ---

// priceField tolera los sentinels del protocolo: además de un número JSON
// puede llegar null, "Infinity", "-Infinity", "NaN" (los archives viejos
// serializan así) o math.MaxFloat64 como "sin precio". Todos se normalizan
// a ausente, nunca a cero.
type priceField struct {
	value float64
	valid bool
}

func (p *priceField) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	switch s {
	case "", "null", "Infinity", "-Infinity", "NaN":
		*p = priceField{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("price field %q: %w", s, err)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) || v == math.MaxFloat64 {
		*p = priceField{}
		return nil
	}
	p.value, p.valid = v, true
	return nil
}

// Ptr devuelve el valor como puntero, o nil si el campo está ausente.
// Cada llamada devuelve una copia: los valores del store nunca se comparten
// por puntero con los DTOs.
func (p priceField) Ptr() *float64 {
	if !p.valid {
		return nil
	}
	v := p.value
	return &v
}
