package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/guregu/null/v6"

	"StockWatch/internal/model"
	"StockWatch/internal/refresher"
)

func fmtValue(v null.Float) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v.Float64)
}

// FormatSnapshot formats the headline figures and latest indicator values of a snapshot.
func FormatSnapshot(snap *model.Snapshot) string {
	var b strings.Builder
	sum := snap.Summary

	bar, _ := snap.Series.Last()
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", html.EscapeString(snap.Symbol), bar.Time.Format("2006-01-02")))

	// Price
	b.WriteString(fmt.Sprintf("Close: %.2f (%+.2f, %+.2f%%)\n", sum.LatestClose, sum.Change, sum.ChangePct))
	b.WriteString(fmt.Sprintf("52w range: %.2f – %.2f (position %.0f%%)\n", sum.Low52w, sum.High52w, sum.Position52w*100))
	b.WriteString(fmt.Sprintf("30d range: %.2f – %.2f\n\n", sum.Low30d, sum.High30d))

	// Indicators
	b.WriteString("📈 <b>Indicators:</b>\n")
	b.WriteString(fmt.Sprintf("  SMA20: %s | SMA50: %s\n", fmtValue(snap.SMA20.Last()), fmtValue(snap.SMA50.Last())))
	b.WriteString(fmt.Sprintf("  EMA20: %s\n", fmtValue(snap.EMA20.Last())))
	b.WriteString(fmt.Sprintf("  RSI14: %s\n", fmtValue(snap.RSI14.Last())))
	b.WriteString(fmt.Sprintf("  MACD: %s | signal %s | hist %s\n",
		fmtValue(snap.MACD.Line.Last()), fmtValue(snap.MACD.Signal.Last()), fmtValue(snap.MACD.Histogram.Last())))

	b.WriteString(fmt.Sprintf("\nData points: %d", sum.Points))
	return b.String()
}

var alertTitles = map[model.AlertKind]string{
	model.AlertOverbought:  "⚠️ <b>RSI overbought</b>",
	model.AlertOversold:    "🎣 <b>RSI oversold</b>",
	model.AlertMACDBullish: "🟢 <b>MACD turned bullish</b>",
	model.AlertMACDBearish: "🔴 <b>MACD turned bearish</b>",
	model.AlertGoldenCross: "✨ <b>Golden cross</b>",
	model.AlertDeathCross:  "☠️ <b>Death cross</b>",
}

// FormatAlert formats a single signal alert.
func FormatAlert(a *model.Alert) string {
	title, ok := alertTitles[a.Kind]
	if !ok {
		title = "<b>" + string(a.Kind) + "</b>"
	}
	return fmt.Sprintf("%s | %s\n\n%s\nPrice: %.2f\n%s",
		title, html.EscapeString(a.Symbol), a.Time.Format("2006-01-02"), a.Price, html.EscapeString(a.Detail))
}

// FormatStatus formats the refresh pipeline status.
func FormatStatus(st refresher.Status) string {
	var b strings.Builder
	b.WriteString("🔄 <b>Refresh status</b>\n\n")
	b.WriteString(html.EscapeString(st.Message) + "\n")
	auto := "off"
	if st.AutoRefresh {
		auto = "on"
	}
	b.WriteString(fmt.Sprintf("Auto-refresh: %s\n", auto))
	if !st.LastSuccess.IsZero() {
		b.WriteString(fmt.Sprintf("Last success: %s\n", st.LastSuccess.Format("2006-01-02 15:04:05")))
	}
	return b.String()
}

// FormatWatchlist formats the watchlist, or the sample symbols when it is empty.
func FormatWatchlist(symbols, samples []string) string {
	if len(symbols) == 0 {
		return "📋 Watchlist is empty.\nTry: " + strings.Join(samples, ", ")
	}
	var b strings.Builder
	b.WriteString("📋 <b>Watchlist</b>\n\n")
	for i, s := range symbols {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, html.EscapeString(s)))
	}
	return b.String()
}
