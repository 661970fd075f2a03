// Package tradingview emits Pine Script markers so fired signals and
// entries can be replayed on a TradingView chart for manual validation.
package tradingview

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AROMARkom/oil/internal/types"
)

func allowDump() bool {
	if os.Getenv("DEBUG_DUMP") == "1" {
		slog.Info("DEBUG_DUMP=1, dumping Pine Script to stdout")
		return true
	}
	return false
}

// Entry is one fired entry to mark on the chart.
type Entry struct {
	Seq       int
	Direction types.Direction
	Price     float64
	StopLoss  float64
	ATR       float64
	Time      time.Time
}

// DumpPineScript prints chart markers for the given entries when
// DEBUG_DUMP=1 is set.
func DumpPineScript(entries []Entry) {
	if !allowDump() {
		return
	}
	fmt.Println(generateEntryPinescript(entries))
}

// generateEntryPinescript renders one plotshape per entry, labelled with
// direction, fill price, stop and the ATR that sized the trade.
func generateEntryPinescript(entries []Entry) string {
	var sb strings.Builder

	sb.WriteString("// ============================================\n")
	sb.WriteString("// SIGNAL VALIDATION MARKERS\n")
	sb.WriteString("// ============================================\n\n")

	for _, e := range entries {
		markerColor := "color.blue"
		shape := "shape.labelup"
		location := "location.belowbar"
		if e.Direction == types.SELL {
			markerColor = "color.orange"
			shape = "shape.labeldown"
			location = "location.abovebar"
		}

		text := fmt.Sprintf("#%d %s\\nEntry: %.5f\\nSL: %.5f\\nATR: %.5f",
			e.Seq, e.Direction, e.Price, e.StopLoss, e.ATR)

		sb.WriteString(fmt.Sprintf("s%d_entry = time == %s\n", e.Seq, formatPineTimestamp(e.Time)))
		sb.WriteString(fmt.Sprintf("plotshape(s%d_entry, title=\"#%d %s\", location=%s, color=%s, style=%s, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			e.Seq, e.Seq, e.Direction, location, markerColor, shape, text))
	}

	return sb.String()
}

func formatPineTimestamp(t time.Time) string {
	utc := t.UTC()
	return fmt.Sprintf("timestamp(\"UTC\", %d, %d, %d, %d, %d)",
		utc.Year(), int(utc.Month()), utc.Day(), utc.Hour(), utc.Minute())
}
