package feed

import (
	"sort"
	"strings"

	"deskcore/internal/book"
)

// Channel names the logical stream within a market.
type Channel string

const (
	ChannelDepth  Channel = "depth"
	ChannelTicker Channel = "ticker"
	ChannelTrades Channel = "trades"
)

// Key identifies one logical upstream stream. Two keys are equal iff all
// components are equal; Params compares order-independently.
type Key struct {
	Symbol  string
	Market  book.MarketType
	Channel Channel
	Params  map[string]string
}

func NewKey(symbol string, market book.MarketType, channel Channel) Key {
	return Key{
		Symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		Market:  market,
		Channel: channel,
	}
}

// Canonical renders the key as a stable string usable as a map key and as
// the upstream topic. Params are folded in sorted order so equal keys
// always canonicalize identically.
func (k Key) Canonical() string {
	var b strings.Builder
	b.WriteString(string(k.Channel))
	b.WriteByte(':')
	b.WriteString(strings.ToUpper(k.Symbol))
	b.WriteByte(':')
	b.WriteString(string(k.Market))
	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteByte('@')
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(k.Params[name])
		}
	}
	return b.String()
}
