package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/betstream/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// Notify imprime los snapshots en el modo configurado.
func (c *Console) Notify(_ context.Context, snapshots []domain.MarketSnapshot) error {
	if len(snapshots) == 0 {
		fmt.Fprintf(c.out, "[%s] no market definitions yet\n", c.now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printTable(snapshots)
	} else {
		c.printCompact(snapshots)
	}
	return nil
}

// printCompact imprime lo esencial en una línea por mercado.
func (c *Console) printCompact(snaps []domain.MarketSnapshot) {
	now := c.now().Format("15:04:05")
	for _, m := range snaps {
		var sb strings.Builder
		for i, r := range m.Runners {
			if i > 0 {
				sb.WriteString(" | ")
			}
			sb.WriteString(fmt.Sprintf("%s %s", runnerLabel(r), priceLabel(r.LastTradedPrice)))
		}
		fmt.Fprintf(c.out, "[%s] %s %s (%s) %s\n", now, m.MarketID, m.Status, m.Venue, sb.String())
	}
}

// printTable imprime la tabla completa de runners por mercado.
func (c *Console) printTable(snaps []domain.MarketSnapshot) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Venue", "Type", "St", "Runner", "Name", "LTP", "Lay", "Size", "Age")

	now := c.now()
	for _, m := range snaps {
		for _, r := range m.Runners {
			table.Append(
				m.MarketID,
				m.Venue,
				m.MarketType,
				string(m.Status),
				fmt.Sprintf("%d", r.RunnerID),
				runnerLabel(r),
				priceLabel(r.LastTradedPrice),
				priceLabel(r.BestLayPrice),
				priceLabel(r.BestLaySize),
				ageLabel(now, r.AsOf),
			)
		}
	}
	table.Render()
}

// PrintRun imprime el resumen de un replay run del path batch.
func (c *Console) PrintRun(run domain.ReplayRun) {
	fmt.Fprintf(c.out, "replay run %s: %d files (%d failed), %d lines, %d decode errors, %d stale discards, %d markets\n",
		run.RunID, run.Files, run.FailedFiles, run.Lines, run.DecodeErrors, run.StaleDiscards, len(run.Markets))

	if !c.table || len(run.Markets) == 0 {
		return
	}
	c.printTable(run.Markets)
}

// runnerLabel trunca el nombre del runner para que la fila no explote.
func runnerLabel(r domain.RunnerSnapshot) string {
	name := r.Name
	if name == "" {
		name = fmt.Sprintf("runner %d", r.RunnerID)
	}
	if len(name) > 24 {
		name = name[:21] + "..."
	}
	if r.Status != domain.RunnerActive {
		name += " [" + string(r.Status) + "]"
	}
	return name
}

// priceLabel formatea un precio opcional; el ausente se muestra como "-",
// nunca como 0.00.
func priceLabel(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// ageLabel formatea la edad del último dato aplicado.
func ageLabel(now, asOf time.Time) string {
	if asOf.IsZero() {
		return "-"
	}
	return now.Sub(asOf).Round(time.Second).String()
}
