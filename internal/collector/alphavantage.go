package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/model"
)

const defaultAlphaVantageURL = "https://www.alphavantage.co"

// Alpha Vantage has shipped the daily series under both spellings.
var alphaVantageSeriesKeys = map[string]bool{
	"Time Series (Daily)":  true,
	"Time Series (Daily) ": true,
}

// Payload keys Alpha Vantage uses instead of data when throttling or rejecting a call.
var alphaVantageNoticeKeys = map[string]bool{
	"Note":          true,
	"Information":   true,
	"Error Message": true,
}

// ErrNoData means the provider answered without a daily series.
var ErrNoData = errors.New("no data returned, check symbol & API key or rate limits")

// AlphaVantageFetcher implements Fetcher using the Alpha Vantage daily adjusted series.
type AlphaVantageFetcher struct {
	BaseURL    string
	APIKey     string
	OutputSize string // "compact" (100 bars) or "full"
	http       *httpClient
	logger     zerolog.Logger
}

// NewAlphaVantageFetcher creates a fetcher; an empty baseURL selects the public endpoint.
func NewAlphaVantageFetcher(baseURL, apiKey, outputSize string, opts ClientOptions) *AlphaVantageFetcher {
	if baseURL == "" {
		baseURL = defaultAlphaVantageURL
	}
	if outputSize == "" {
		outputSize = "compact"
	}
	return &AlphaVantageFetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		OutputSize: outputSize,
		http:       newHTTPClient(opts),
		logger:     log.With().Str("component", "alphavantage").Logger(),
	}
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

// FetchDailySeries returns the daily table in payload order.
func (f *AlphaVantageFetcher) FetchDailySeries(ctx context.Context, symbol string) (model.RawTable, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	q.Set("symbol", symbol)
	q.Set("outputsize", f.OutputSize)
	q.Set("apikey", f.APIKey)
	endpoint := f.BaseURL + "/query?" + q.Encode()

	f.logger.Debug().Str("symbol", symbol).Msg("fetching daily series")
	body, err := f.http.get(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: alphavantage %s: %w", model.ErrDataSource, symbol, err)
	}
	table, err := decodeAlphaVantage(body)
	if err != nil {
		return nil, fmt.Errorf("%w: alphavantage %s: %w", model.ErrDataSource, symbol, err)
	}
	f.logger.Debug().Str("symbol", symbol).Int("entries", len(table)).Msg("fetched daily series")
	return table, nil
}

// decodeAlphaVantage streams the top-level object so that series entries keep document order,
// duplicate date keys included.
func decodeAlphaVantage(body []byte) (model.RawTable, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var (
		table  model.RawTable
		found  bool
		notice string
	)
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		switch {
		case alphaVantageSeriesKeys[key] && !found:
			table, err = decodeSeriesObject(dec)
			if err != nil {
				return nil, fmt.Errorf("decode %q: %w", key, err)
			}
			found = true
		case alphaVantageNoticeKeys[key]:
			var msg string
			if err := dec.Decode(&msg); err != nil {
				return nil, fmt.Errorf("decode %q: %w", key, err)
			}
			notice = msg
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("decode %q: %w", key, err)
			}
		}
	}

	if !found {
		if notice != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoData, notice)
		}
		return nil, ErrNoData
	}
	return table, nil
}

func decodeSeriesObject(dec *json.Decoder) (model.RawTable, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var table model.RawTable
	for dec.More() {
		date, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var raw map[string]json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("entry %s: %w", date, err)
		}
		table = append(table, model.RawEntry{Date: date, Fields: fieldStrings(raw)})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return table, nil
}

// fieldStrings keeps string and number values as text. Anything else is left out, so the
// normalizer rejects the entry if a required field was affected.
func fieldStrings(raw map[string]json.RawMessage) map[string]string {
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if string(bytes.TrimSpace(v)) == "null" {
			continue
		}
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			fields[k] = str
			continue
		}
		var num json.Number
		if err := json.Unmarshal(v, &num); err == nil {
			fields[k] = num.String()
		}
	}
	return fields
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("unexpected end of payload")
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}
