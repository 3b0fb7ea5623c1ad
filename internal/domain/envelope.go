package domain

import "time"

// Envelope es una unidad parseada del protocolo de streaming: una línea
// del feed decodificada una sola vez en el boundary. El código downstream
// hace switch sobre el tipo concreto, nunca re-inspecciona JSON crudo.
type Envelope interface {
	// Op devuelve el operation tag del wire protocol.
	Op() string
}

// Connection es el primer envelope que envía el exchange al abrir el socket.
type Connection struct {
	ConnectionID string
}

func (Connection) Op() string { return "connection" }

// StatusCode es el resultado de un request (authentication, subscription).
type StatusCode string

const (
	StatusSuccess StatusCode = "SUCCESS"
	StatusFailure StatusCode = "FAILURE"
)

// Status es la respuesta del exchange a un request previo.
type Status struct {
	RequestID        int
	Code             StatusCode
	ErrorCode        string
	ErrorMessage     string
	ConnectionClosed bool
}

func (Status) Op() string { return "status" }

// OK devuelve true si el status indica éxito.
func (s Status) OK() bool { return s.Code == StatusSuccess }

// ChangeType clasifica un market-change message.
type ChangeType string

const (
	// ChangeDelta es el caso normal: solo los campos que cambiaron.
	ChangeDelta ChangeType = ""
	// ChangeSubImage es la imagen completa enviada al (re)suscribirse.
	ChangeSubImage ChangeType = "SUB_IMAGE"
	// ChangeHeartbeat es un mcm vacío que solo mantiene viva la conexión.
	ChangeHeartbeat ChangeType = "HEARTBEAT"
)

// MarketChange es un batch de cambios de mercado con su publish time.
// PublishTime es la clave de ordenación autoritativa para merges,
// no el orden de llegada.
type MarketChange struct {
	RequestID   int
	PublishTime time.Time
	ChangeType  ChangeType
	Changes     []MarketChangeFragment
}

func (MarketChange) Op() string { return "mcm" }

// Heartbeat devuelve true si el mensaje no transporta cambios.
func (mc MarketChange) Heartbeat() bool { return mc.ChangeType == ChangeHeartbeat }

// MarketChangeFragment es el cambio de un mercado dentro de un MarketChange.
// Definition solo está presente en snapshots completos o periódicos.
type MarketChangeFragment struct {
	MarketID      string
	Definition    *MarketDefinition
	RunnerChanges []RunnerChange
}

// RunnerChange es el delta de precios de un runner.
// Los punteros nil significan "campo no incluido en el delta".
type RunnerChange struct {
	RunnerID        int64
	LastTradedPrice *float64
	BestLay         []PriceLevel
}

// PriceLevel es un nivel del ladder best-available-to-lay.
type PriceLevel struct {
	Level int
	Price float64
	Size  float64
}
