package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/model"
)

const defaultYahooURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL   string
	Range     string            // chart range, e.g. "1y"
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	http      *httpClient
	logger    zerolog.Logger
}

// NewYahooFetcher creates a new Yahoo Finance fetcher; an empty baseURL selects the public endpoint.
func NewYahooFetcher(baseURL string, opts ClientOptions) *YahooFetcher {
	if baseURL == "" {
		baseURL = defaultYahooURL
	}
	return &YahooFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Range:   "1y",
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		http:   newHTTPClient(opts),
		logger: log.With().Str("component", "yahoo").Logger(),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// Exchange suffixes in the Alpha Vantage convention and their Yahoo equivalents.
var yahooSuffixes = map[string]string{
	".BSE": ".BO",
	".NSE": ".NS",
	".LON": ".L",
}

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	for from, to := range yahooSuffixes {
		if strings.HasSuffix(symbol, from) {
			return strings.TrimSuffix(symbol, from) + to
		}
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(vals []interface{}, i int) float64 {
	if i >= len(vals) {
		return 0
	}
	return toFloat(vals[i])
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// FetchDailySeries returns daily bars as a raw table with plain field names.
func (f *YahooFetcher) FetchDailySeries(ctx context.Context, symbol string) (model.RawTable, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), f.Range)

	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0")
	body, err := f.http.get(ctx, u, header)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo %s: %w", model.ErrDataSource, symbol, err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("%w: yahoo decode: %w", model.ErrDataSource, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: yahoo api error: %s", model.ErrDataSource, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo %s: %w", model.ErrDataSource, symbol, ErrNoData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	table := make(model.RawTable, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		table = append(table, model.RawEntry{
			Date: time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Fields: map[string]string{
				"open":   formatFloat(o),
				"high":   formatFloat(h),
				"low":    formatFloat(l),
				"close":  formatFloat(c),
				"volume": formatFloat(at(quote.Volume, i)),
			},
		})
	}
	f.logger.Debug().Str("symbol", symbol).Int("entries", len(table)).Msg("fetched daily series")
	return table, nil
}
