package connection

import (
	"sort"
	"strings"
	"sync"
)

type subKey struct {
	symbol  string
	channel string
}

// Tracker records active subscriptions and maps correlation ids back to
// symbols. Safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	active map[subKey]string // -> latest correlation id
	byUUID map[string]string // correlation id -> symbol
	sent   map[subKey]uint64 // -> session the pair was last sent on
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		active: make(map[subKey]string),
		byUUID: make(map[string]string),
		sent:   make(map[subKey]uint64),
	}
}

func key(symbol, channel string) subKey {
	return subKey{symbol: strings.ToUpper(strings.TrimSpace(symbol)), channel: channel}
}

// Add records (symbol, channel) with its correlation id. Re-adding an
// existing pair replaces the id.
func (t *Tracker) Add(symbol, channel, channelUUID string) {
	t.Assign(symbol, channel, channelUUID)
}

// Assign sets the correlation id for a pair, dropping the previous id.
func (t *Tracker) Assign(symbol, channel, channelUUID string) {
	k := key(symbol, channel)

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.active[k]; ok {
		delete(t.byUUID, old)
	}
	t.active[k] = channelUUID
	if channelUUID != "" {
		t.byUUID[channelUUID] = k.symbol
	}
}

// MarkSent records that the pair is being sent on session and reports
// whether it had not been sent on that session yet. Session ids start at 1.
func (t *Tracker) MarkSent(symbol, channel string, session uint64) bool {
	k := key(symbol, channel)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sent[k] == session {
		return false
	}
	t.sent[k] = session
	return true
}

// Remove drops every channel of symbol and returns the channels removed.
func (t *Tracker) Remove(symbol string) []string {
	sym := key(symbol, "").symbol

	t.mu.Lock()
	defer t.mu.Unlock()

	var channels []string
	for k, id := range t.active {
		if k.symbol != sym {
			continue
		}
		channels = append(channels, k.channel)
		delete(t.byUUID, id)
		delete(t.active, k)
		delete(t.sent, k)
	}
	sort.Strings(channels)
	return channels
}

// Active returns every tracked subscription ordered by symbol then channel.
func (t *Tracker) Active() []Subscription {
	t.mu.RLock()
	subs := make([]Subscription, 0, len(t.active))
	for k, id := range t.active {
		subs = append(subs, Subscription{Symbol: k.symbol, Channel: k.channel, ChannelUUID: id})
	}
	t.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Symbol != subs[j].Symbol {
			return subs[i].Symbol < subs[j].Symbol
		}
		return subs[i].Channel < subs[j].Channel
	})
	return subs
}

// SymbolFor resolves a correlation id to its symbol.
func (t *Tracker) SymbolFor(channelUUID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sym, ok := t.byUUID[channelUUID]
	return sym, ok
}

// Symbols returns the distinct subscribed symbols in order.
func (t *Tracker) Symbols() []string {
	t.mu.RLock()
	seen := make(map[string]struct{})
	for k := range t.active {
		seen[k.symbol] = struct{}{}
	}
	t.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tracked pairs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}
