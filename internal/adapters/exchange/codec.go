package exchange

// codec.go — boundary único del wire protocol.
//
// Decode es puro y stateless: una línea entra, un Envelope tipado sale.
// Una línea inválida devuelve un error que envuelve ErrProtocolDecode;
// el caller decide si la salta (stream, replay) o aborta. Nunca panic.

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alejandrodnm/betstream/internal/domain"
)

// Operation tags reconocidos del protocolo.
const (
	opConnection         = "connection"
	opStatus             = "status"
	opAuthentication     = "authentication"
	opMarketSubscription = "marketSubscription"
	opMarketChange       = "mcm"
)

// DefaultDataFields es el field filter por defecto de la suscripción:
// best offers (para batl), last traded price y market definition.
var DefaultDataFields = []string{"EX_BEST_OFFERS", "EX_LTP", "EX_MARKET_DEF"}

// ErrProtocolDecode marca una línea que no es un envelope válido.
var ErrProtocolDecode = errors.New("protocol decode error")

// Decode parsea una línea del feed en un Envelope tipado.
func Decode(line []byte) (domain.Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("exchange.Decode: %w: %s", ErrProtocolDecode, err)
	}

	switch raw.Op {
	case opConnection:
		return domain.Connection{ConnectionID: raw.ConnectionID}, nil
	case opStatus:
		return mapStatus(raw), nil
	case opMarketChange:
		return mapMarketChange(raw), nil
	case "":
		return nil, fmt.Errorf("exchange.Decode: %w: missing op tag", ErrProtocolDecode)
	default:
		return nil, fmt.Errorf("exchange.Decode: %w: unknown op %q", ErrProtocolDecode, raw.Op)
	}
}

// EncodeAuth serializa el request de autenticación, newline incluido.
func EncodeAuth(id int, appKey, sessionToken string) ([]byte, error) {
	return encodeLine(authRequest{
		Op:      opAuthentication,
		ID:      id,
		AppKey:  appKey,
		Session: sessionToken,
	})
}

// EncodeSubscribe serializa el request de suscripción a mercados.
// Si fields está vacío usa DefaultDataFields. heartbeatMs en 0 deja que
// el exchange use su intervalo por defecto.
func EncodeSubscribe(id int, marketIDs, fields []string, heartbeatMs int) ([]byte, error) {
	if len(marketIDs) == 0 {
		return nil, fmt.Errorf("exchange.EncodeSubscribe: empty market id list")
	}
	if len(fields) == 0 {
		fields = DefaultDataFields
	}
	return encodeLine(marketSubscription{
		Op:               opMarketSubscription,
		ID:               id,
		HeartbeatMs:      heartbeatMs,
		MarketFilter:     marketFilter{MarketIDs: marketIDs},
		MarketDataFilter: marketDataFilter{Fields: fields},
	})
}

// encodeLine serializa un request y le añade el newline del framing.
func encodeLine(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("exchange.encodeLine: marshal: %w", err)
	}
	return append(b, '\n'), nil
}
