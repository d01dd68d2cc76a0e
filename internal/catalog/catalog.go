package catalog

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Price describes how a single product is priced and presented.
type Price struct {
	Value       string `json:"value"`
	Currency    string `json:"currency"`
	Display     string `json:"display"`
	Description string `json:"description"`
}

// Store is the read/write surface for the product price catalog.
type Store interface {
	// Get returns the price for the product and whether it exists.
	Get(product string) (Price, bool)
	// Upsert inserts or replaces the price for the product.
	Upsert(product string, price Price)
	// Keys returns the known product identifiers in sorted order.
	Keys() []string
}

// MemoryStore is an in-process Store guarded by a read/write mutex.
type MemoryStore struct {
	mu     sync.RWMutex
	prices map[string]Price
}

// NewMemoryStore builds a MemoryStore seeded with the provided prices.
func NewMemoryStore(seed map[string]Price) *MemoryStore {
	prices := make(map[string]Price, len(seed))
	for product, price := range seed {
		prices[product] = price
	}
	return &MemoryStore{prices: prices}
}

// Get implements Store.
func (s *MemoryStore) Get(product string) (Price, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[product]
	return price, ok
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(product string, price Price) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[product] = price
}

// Keys implements Store.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.prices))
	for product := range s.prices {
		keys = append(keys, product)
	}
	sort.Strings(keys)
	return keys
}

// Defaults returns the catalog entries present at startup.
func Defaults() map[string]Price {
	return map[string]Price{
		"nft": {
			Value:       "5500.00",
			Currency:    "USD",
			Display:     "$5,500.00",
			Description: "Premium NFT Collection",
		},
	}
}

var displayPrinter = message.NewPrinter(language.AmericanEnglish)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatDisplay renders a decimal price value as a grouped display string, e.g. "$5,500.00".
func FormatDisplay(value, currencyCode string) string {
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	symbol, ok := currencySymbols[strings.ToUpper(currencyCode)]
	if !ok {
		symbol = strings.ToUpper(currencyCode) + " "
	}
	return displayPrinter.Sprintf("%s%.2f", symbol, amount)
}
