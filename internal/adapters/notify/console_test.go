package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/betstream/internal/adapters/notify"
	"github.com/alejandrodnm/betstream/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func makeSnapshots() []domain.MarketSnapshot {
	asOf := time.Now().Add(-2 * time.Second)
	return []domain.MarketSnapshot{
		{
			MarketID:   "1.180737193",
			Venue:      "Ascot",
			MarketType: "WIN",
			Status:     domain.MarketOpen,
			Runners: []domain.RunnerSnapshot{
				{
					RunnerID:        7,
					Name:            "Sea Mist",
					Status:          domain.RunnerActive,
					LastTradedPrice: fptr(2.5),
					BestLayPrice:    fptr(2.52),
					BestLaySize:     fptr(120.5),
					AsOf:            asOf,
				},
				{
					RunnerID: 8,
					Name:     "Night Rally",
					Status:   domain.RunnerRemoved,
				},
			},
		},
	}
}

func TestConsole_CompactOutput(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, console.Notify(context.Background(), makeSnapshots()))

	out := buf.String()
	assert.Contains(t, out, "1.180737193")
	assert.Contains(t, out, "OPEN")
	assert.Contains(t, out, "Ascot")
	assert.Contains(t, out, "Sea Mist 2.50")
	// Sin precio conocido se muestra "-", nunca 0.00.
	assert.Contains(t, out, "Night Rally [REMOVED] -")
	assert.NotContains(t, out, "0.00")
}

func TestConsole_TableOutput(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, console.Notify(context.Background(), makeSnapshots()))

	out := buf.String()
	assert.Contains(t, out, "Sea Mist")
	assert.Contains(t, out, "2.52")
	assert.Contains(t, out, "120.50")
	// Una fila por runner.
	assert.Equal(t, 2, strings.Count(out, "1.180737193"))
}

func TestConsole_EmptySnapshots(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, console.Notify(context.Background(), nil))
	assert.Contains(t, buf.String(), "no market definitions yet")
}

func TestConsole_LongRunnerNameTruncated(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, false)

	snaps := []domain.MarketSnapshot{
		{
			MarketID: "1.1",
			Status:   domain.MarketOpen,
			Runners: []domain.RunnerSnapshot{
				{RunnerID: 1, Name: "An Extraordinarily Long Horse Name", Status: domain.RunnerActive},
			},
		},
	}
	require.NoError(t, console.Notify(context.Background(), snaps))

	assert.Contains(t, buf.String(), "An Extraordinarily Lo...")
	assert.NotContains(t, buf.String(), "Long Horse Name")
}

func TestConsole_PrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, false)

	console.PrintRun(domain.ReplayRun{
		RunID:         "run-1",
		Files:         3,
		FailedFiles:   1,
		Lines:         12480,
		DecodeErrors:  7,
		StaleDiscards: 42,
		Markets:       makeSnapshots(),
	})

	out := buf.String()
	assert.Contains(t, out, "replay run run-1")
	assert.Contains(t, out, "3 files (1 failed)")
	assert.Contains(t, out, "12480 lines")
	assert.Contains(t, out, "7 decode errors")
	assert.Contains(t, out, "42 stale discards")
	assert.Contains(t, out, "1 markets")
	// Sin modo tabla no se vuelca el detalle de mercados.
	assert.NotContains(t, out, "Sea Mist")
}

func TestConsole_PrintRunWithTable(t *testing.T) {
	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, true)

	console.PrintRun(domain.ReplayRun{RunID: "run-1", Files: 1, Markets: makeSnapshots()})

	out := buf.String()
	assert.Contains(t, out, "replay run run-1")
	assert.Contains(t, out, "Sea Mist")
}
