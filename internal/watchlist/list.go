// Package watchlist keeps the user's ordered list of symbols and persists it through a Store.
package watchlist

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"StockWatch/internal/model"
)

// DefaultSymbols seed a watchlist that has never been saved.
var DefaultSymbols = []string{"AAPL", "TCS.BSE"}

// SampleSymbols are suggested to users picking a first symbol.
var SampleSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "INFY.BSE", "TCS.BSE", "RELIANCE.BSE"}

// Store persists the ordered symbol list. Load returns a nil slice when nothing was ever saved.
type Store interface {
	Load() ([]string, error)
	Save(symbols []string) error
}

// List is an ordered, de-duplicated set of upper-case symbols, saved on every change.
type List struct {
	mu      sync.Mutex
	store   Store
	symbols []string
}

// Open loads the list from store, falling back to defaults when the store is empty.
func Open(store Store, defaults []string) (*List, error) {
	stored, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	if stored == nil {
		stored = defaults
	}
	l := &List{store: store}
	for _, s := range stored {
		if sym := canonical(s); sym != "" && !slices.Contains(l.symbols, sym) {
			l.symbols = append(l.symbols, sym)
		}
	}
	return l, nil
}

func canonical(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Symbols returns a copy of the list.
func (l *List) Symbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.symbols)
}

// Contains reports whether symbol is on the list.
func (l *List) Contains(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.symbols, canonical(symbol))
}

// Add appends symbol. It reports false when the symbol was already present.
func (l *List) Add(symbol string) (bool, error) {
	sym := canonical(symbol)
	if sym == "" {
		return false, fmt.Errorf("%w: empty symbol", model.ErrInvalidParameter)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.symbols, sym) {
		return false, nil
	}
	next := append(slices.Clone(l.symbols), sym)
	if err := l.store.Save(next); err != nil {
		return false, fmt.Errorf("save watchlist: %w", err)
	}
	l.symbols = next
	return true, nil
}

// Remove deletes symbol. It reports false when the symbol was not present.
func (l *List) Remove(symbol string) (bool, error) {
	sym := canonical(symbol)
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.Index(l.symbols, sym)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(l.symbols), i, i+1)
	if err := l.store.Save(next); err != nil {
		return false, fmt.Errorf("save watchlist: %w", err)
	}
	l.symbols = next
	return true, nil
}
