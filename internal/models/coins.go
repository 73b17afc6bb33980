package models

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Coin is a CoinGecko coin id with its ticker and a display name.
type Coin struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Symbol string `yaml:"symbol" json:"symbol"`
}

var defaultCoins = []Coin{
	{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"},
	{ID: "ethereum", Name: "Ethereum", Symbol: "ETH"},
	{ID: "tether", Name: "Tether", Symbol: "USDT"},
	{ID: "binancecoin", Name: "BNB", Symbol: "BNB"},
	{ID: "solana", Name: "Solana", Symbol: "SOL"},
	{ID: "ripple", Name: "XRP", Symbol: "XRP"},
	{ID: "cardano", Name: "Cardano", Symbol: "ADA"},
	{ID: "dogecoin", Name: "Dogecoin", Symbol: "DOGE"},
	{ID: "polkadot", Name: "Polkadot", Symbol: "DOT"},
	{ID: "matic-network", Name: "Polygon", Symbol: "MATIC"},
	{ID: "starknet", Name: "Starknet", Symbol: "STRK"},
	{ID: "zksync", Name: "ZkSync", Symbol: "ZK"},
	{ID: "scroll", Name: "Scroll", Symbol: "SCR"},
}

// Catalog maps coin ids and ticker aliases to coins. It is safe for
// concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	byID     map[string]Coin
	bySymbol map[string]string
}

// NewCatalog returns a catalog holding the built-in coins.
func NewCatalog() *Catalog {
	c := &Catalog{
		byID:     make(map[string]Coin),
		bySymbol: make(map[string]string),
	}
	for _, coin := range defaultCoins {
		c.add(coin)
	}
	return c
}

func (c *Catalog) add(coin Coin) {
	coin.ID = strings.ToLower(strings.TrimSpace(coin.ID))
	c.byID[coin.ID] = coin
	if coin.Symbol != "" {
		c.bySymbol[strings.ToLower(coin.Symbol)] = coin.ID
	}
}

type catalogFile struct {
	Coins []Coin `yaml:"coins"`
}

// LoadYAML merges the coins listed in a YAML file over the current entries.
// An empty path or a missing file leaves the catalog unchanged.
func (c *Catalog) LoadYAML(path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse coins file %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, coin := range file.Coins {
		if strings.TrimSpace(coin.ID) == "" {
			return i, fmt.Errorf("coins file %s: entry %d has no id", path, i)
		}
		c.add(coin)
	}
	return len(file.Coins), nil
}

// Resolve normalises user input to a coin id: ids and tickers known to the
// catalog are mapped, anything else is lower-cased and passed through.
func (c *Catalog) Resolve(input string) string {
	key := strings.ToLower(strings.TrimSpace(input))

	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.byID[key]; ok {
		return key
	}
	if id, ok := c.bySymbol[key]; ok {
		return id
	}
	return key
}

// DisplayName returns the catalog name, or the id with its first letter
// upper-cased.
func (c *Catalog) DisplayName(id string) string {
	c.mu.RLock()
	coin, ok := c.byID[id]
	c.mu.RUnlock()
	if ok && coin.Name != "" {
		return coin.Name
	}
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

// Coins returns every known coin, in no particular order.
func (c *Catalog) Coins() []Coin {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Coin, 0, len(c.byID))
	for _, coin := range c.byID {
		out = append(out, coin)
	}
	return out
}
