// Package correlate attributes captured network calls to the browser action
// that most likely triggered them.
package correlate

import (
	"net/url"
	"time"

	"github.com/awmpietro/golang-api-surface-inference/internal/eval"
	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

// Correlator returns the network entries attributable to one audit entry, in
// network-log order. Implementations must not panic on malformed input.
type Correlator interface {
	Correlate(entry traffic.AuditEntry, network []traffic.NetworkEntry) []traffic.NetworkEntry
}

// Func adapts a plain function to Correlator.
type Func func(entry traffic.AuditEntry, network []traffic.NetworkEntry) []traffic.NetworkEntry

func (f Func) Correlate(entry traffic.AuditEntry, network []traffic.NetworkEntry) []traffic.NetworkEntry {
	return f(entry, network)
}

// First attaches the first captured call to every action.
var First = Func(func(_ traffic.AuditEntry, network []traffic.NetworkEntry) []traffic.NetworkEntry {
	if len(network) == 0 {
		return []traffic.NetworkEntry{}
	}
	return []traffic.NetworkEntry{network[0]}
})

// Nearest anchors each action on the latest network call at or before it and,
// when Window is set, also attaches calls within Window on either side.
// Filter, when set, narrows the window candidates; the anchor is always kept.
type Nearest struct {
	Window time.Duration
	Filter *eval.Compiled
}

func NewNearest(window time.Duration, filter string) (*Nearest, error) {
	compiled, err := eval.Compile(filter)
	if err != nil {
		return nil, err
	}
	return &Nearest{Window: window, Filter: compiled}, nil
}

func (n *Nearest) Correlate(entry traffic.AuditEntry, network []traffic.NetworkEntry) []traffic.NetworkEntry {
	if len(network) == 0 {
		return []traffic.NetworkEntry{}
	}

	at, ok := traffic.ParseTimestamp(entry.Timestamp)
	if !ok {
		return []traffic.NetworkEntry{network[0]}
	}

	anchor := -1
	var anchorAt time.Time
	picked := make([]bool, len(network))

	for i, call := range network {
		callAt, ok := traffic.ParseTimestamp(call.Timestamp)
		if !ok {
			continue
		}
		if !callAt.After(at) && (anchor < 0 || !callAt.Before(anchorAt)) {
			anchor, anchorAt = i, callAt
		}
		if n.Window > 0 && absDuration(callAt.Sub(at)) <= n.Window && n.accept(call) {
			picked[i] = true
		}
	}

	if anchor < 0 {
		anchor = 0
	}
	picked[anchor] = true

	out := make([]traffic.NetworkEntry, 0, 1)
	for i, ok := range picked {
		if ok {
			out = append(out, network[i])
		}
	}
	return out
}

func (n *Nearest) accept(call traffic.NetworkEntry) bool {
	if n.Filter == nil {
		return true
	}
	ok, err := n.Filter.Run(FilterVars(call))
	return err == nil && ok
}

// FilterVars exposes a network entry to correlation filter expressions.
func FilterVars(call traffic.NetworkEntry) map[string]any {
	host := ""
	if u, err := url.Parse(call.URL); err == nil {
		host = u.Host
	}
	return map[string]any{
		"method":           call.Method,
		"url_host":         host,
		"status":           call.Status,
		"response_time_ms": call.ResponseTimeMs,
		"request_type":     call.RequestType,
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
