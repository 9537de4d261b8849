package collector

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"StockWatch/internal/model"
)

// Accepted key spellings per field, in lookup order.
var (
	openKeys   = []string{"1. open", "open"}
	highKeys   = []string{"2. high", "high"}
	lowKeys    = []string{"3. low", "low"}
	closeKeys  = []string{"4. close", "close"}
	volumeKeys = []string{"6. volume", "5. volume", "volume"}
)

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05"}

// Normalize turns a raw table into a validated series, oldest first.
// Unparseable or inconsistent entries are dropped; duplicate dates keep the last entry.
// It fails with model.ErrMalformedData when nothing usable remains.
func Normalize(raw model.RawTable) (model.Series, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty table", model.ErrMalformedData)
	}

	byTime := make(map[int64]model.Candle, len(raw))
	for _, entry := range raw {
		c, ok := parseEntry(entry)
		if !ok {
			log.Debug().Str("component", "normalize").Str("date", entry.Date).Msg("dropping unusable entry")
			continue
		}
		byTime[c.Time.UnixNano()] = c
	}
	if len(byTime) == 0 {
		return nil, fmt.Errorf("%w: none of %d entries could be parsed", model.ErrMalformedData, len(raw))
	}

	series := make(model.Series, 0, len(byTime))
	for _, c := range byTime {
		series = append(series, c)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	return series, nil
}

func parseEntry(entry model.RawEntry) (model.Candle, bool) {
	t, ok := parseDate(entry.Date)
	if !ok {
		return model.Candle{}, false
	}
	c := model.Candle{Time: t}
	for _, f := range []struct {
		keys []string
		dst  *float64
	}{
		{openKeys, &c.Open},
		{highKeys, &c.High},
		{lowKeys, &c.Low},
		{closeKeys, &c.Close},
	} {
		v, found, ok := lookupFloat(entry.Fields, f.keys)
		if !found || !ok {
			return model.Candle{}, false
		}
		*f.dst = v
	}
	// Volume is optional and defaults to 0, but a present non-numeric value is rejected.
	if v, found, ok := lookupFloat(entry.Fields, volumeKeys); found {
		if !ok {
			return model.Candle{}, false
		}
		c.Volume = v
	}
	if !c.Valid() {
		return model.Candle{}, false
	}
	return c, true
}

// lookupFloat reads the first present key. found reports whether any key was present,
// ok whether its value parsed as a finite number.
func lookupFloat(fields map[string]string, keys []string) (v float64, found, ok bool) {
	for _, k := range keys {
		s, exists := fields[k]
		if !exists {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, true, false
		}
		return v, true, true
	}
	return 0, false, false
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
