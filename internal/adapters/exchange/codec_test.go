package exchange_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/betstream/internal/adapters/exchange"
	"github.com/alejandrodnm/betstream/internal/domain"
)

func TestDecode_Connection(t *testing.T) {
	env, err := exchange.Decode([]byte(`{"op":"connection","connectionId":"002-230915140112-174"}`))
	require.NoError(t, err)

	conn, ok := env.(domain.Connection)
	require.True(t, ok)
	assert.Equal(t, "002-230915140112-174", conn.ConnectionID)
}

func TestDecode_Status(t *testing.T) {
	env, err := exchange.Decode([]byte(
		`{"op":"status","id":1,"statusCode":"FAILURE","errorCode":"INVALID_SESSION_INFORMATION","errorMessage":"session expired","connectionClosed":true}`))
	require.NoError(t, err)

	status, ok := env.(domain.Status)
	require.True(t, ok)
	assert.Equal(t, 1, status.RequestID)
	assert.False(t, status.OK())
	assert.Equal(t, "INVALID_SESSION_INFORMATION", status.ErrorCode)
	assert.True(t, status.ConnectionClosed)
}

func TestDecode_MarketChange(t *testing.T) {
	line := `{"op":"mcm","id":2,"pt":1694786472000,"mc":[{"id":"1.218763398",` +
		`"marketDefinition":{"eventId":"32432255","eventTypeId":"7","venue":"Ascot",` +
		`"marketType":"WIN","marketTime":"2023-09-15T14:30:00.000Z","status":"OPEN",` +
		`"runners":[{"id":47972601,"name":"Alcazan","status":"ACTIVE","adjustmentFactor":12.5},` +
		`{"id":47972602,"name":"Bright Mist","status":"REMOVED","removalDate":"2023-09-15T13:02:11.000Z"}]},` +
		`"rc":[{"id":47972601,"ltp":2.5,"batl":[[0,2.52,120.5],[1,2.54,80.0]]}]}]}`

	env, err := exchange.Decode([]byte(line))
	require.NoError(t, err)

	mc, ok := env.(domain.MarketChange)
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1694786472000).UTC(), mc.PublishTime)
	assert.False(t, mc.Heartbeat())
	require.Len(t, mc.Changes, 1)

	f := mc.Changes[0]
	assert.Equal(t, "1.218763398", f.MarketID)

	require.NotNil(t, f.Definition)
	def := *f.Definition
	assert.Equal(t, "1.218763398", def.MarketID)
	assert.Equal(t, "32432255", def.EventID)
	assert.Equal(t, "Ascot", def.Venue)
	assert.Equal(t, domain.MarketOpen, def.Status)
	assert.Equal(t, time.Date(2023, 9, 15, 14, 30, 0, 0, time.UTC), def.MarketTime)
	require.Len(t, def.Runners, 2)

	removed := def.Runners[1]
	assert.Equal(t, domain.RunnerRemoved, removed.Status)
	require.NotNil(t, removed.RemovalDate)

	require.Len(t, f.RunnerChanges, 1)
	rc := f.RunnerChanges[0]
	assert.Equal(t, int64(47972601), rc.RunnerID)
	require.NotNil(t, rc.LastTradedPrice)
	assert.InDelta(t, 2.5, *rc.LastTradedPrice, 0.0001)
	require.Len(t, rc.BestLay, 2)
	assert.Equal(t, 0, rc.BestLay[0].Level)
	assert.InDelta(t, 2.52, rc.BestLay[0].Price, 0.0001)
	assert.InDelta(t, 120.5, rc.BestLay[0].Size, 0.0001)
}

func TestDecode_Heartbeat(t *testing.T) {
	env, err := exchange.Decode([]byte(`{"op":"mcm","id":2,"ct":"HEARTBEAT","pt":1694786480000}`))
	require.NoError(t, err)

	mc, ok := env.(domain.MarketChange)
	require.True(t, ok)
	assert.True(t, mc.Heartbeat())
	assert.Empty(t, mc.Changes)
}

// Los sentinels "infinito" del protocolo normalizan a ausente, nunca a 0.0
// ni a error de parseo.
func TestDecode_InfinitePriceSentinel(t *testing.T) {
	cases := []struct {
		name string
		ltp  string
	}{
		{"string infinity", `"Infinity"`},
		{"string nan", `"NaN"`},
		{"max float sentinel", `1.7976931348623157E308`},
		{"null", `null`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := `{"op":"mcm","pt":100,"mc":[{"id":"1.1","rc":[{"id":7,"ltp":` + tc.ltp + `}]}]}`
			env, err := exchange.Decode([]byte(line))
			require.NoError(t, err)

			mc := env.(domain.MarketChange)
			require.Len(t, mc.Changes, 1)
			require.Len(t, mc.Changes[0].RunnerChanges, 1)
			assert.Nil(t, mc.Changes[0].RunnerChanges[0].LastTradedPrice)
		})
	}
}

func TestDecode_StartingPriceSentinel(t *testing.T) {
	line := `{"op":"mcm","pt":100,"mc":[{"id":"1.1","marketDefinition":{"status":"OPEN",` +
		`"runners":[{"id":7,"name":"A","status":"ACTIVE","bsp":"Infinity"},` +
		`{"id":8,"name":"B","status":"ACTIVE","bsp":3.75}]}}]}`

	env, err := exchange.Decode([]byte(line))
	require.NoError(t, err)

	def := env.(domain.MarketChange).Changes[0].Definition
	require.NotNil(t, def)
	require.Len(t, def.Runners, 2)
	assert.Nil(t, def.Runners[0].StartingPrice)
	require.NotNil(t, def.Runners[1].StartingPrice)
	assert.InDelta(t, 3.75, *def.Runners[1].StartingPrice, 0.0001)
}

func TestDecode_Malformed(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"not json", "CSV,line,from,another,tool"},
		{"empty object", `{}`},
		{"unknown op", `{"op":"orderSubscription"}`},
		{"truncated", `{"op":"mcm","pt":100,"mc":[{"id"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := exchange.Decode([]byte(tc.line))
			require.Error(t, err)
			assert.ErrorIs(t, err, exchange.ErrProtocolDecode)
		})
	}
}

func TestEncodeAuth(t *testing.T) {
	b, err := exchange.EncodeAuth(1, "my-app-key", "SESSION123")
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), b[len(b)-1])

	var msg map[string]any
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, "authentication", msg["op"])
	assert.Equal(t, float64(1), msg["id"])
	assert.Equal(t, "my-app-key", msg["appKey"])
	assert.Equal(t, "SESSION123", msg["session"])
}

func TestEncodeSubscribe(t *testing.T) {
	b, err := exchange.EncodeSubscribe(2, []string{"1.1", "1.2"}, nil, 5000)
	require.NoError(t, err)

	var msg struct {
		Op           string `json:"op"`
		ID           int    `json:"id"`
		HeartbeatMs  int    `json:"heartbeatMs"`
		MarketFilter struct {
			MarketIDs []string `json:"marketIds"`
		} `json:"marketFilter"`
		MarketDataFilter struct {
			Fields []string `json:"fields"`
		} `json:"marketDataFilter"`
	}
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, "marketSubscription", msg.Op)
	assert.Equal(t, 2, msg.ID)
	assert.Equal(t, 5000, msg.HeartbeatMs)
	assert.Equal(t, []string{"1.1", "1.2"}, msg.MarketFilter.MarketIDs)
	assert.Equal(t, exchange.DefaultDataFields, msg.MarketDataFilter.Fields)
}

func TestEncodeSubscribe_EmptyMarkets(t *testing.T) {
	_, err := exchange.EncodeSubscribe(2, nil, nil, 0)
	assert.Error(t, err)
}
