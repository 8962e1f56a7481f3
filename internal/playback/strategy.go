// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import "github.com/ManuGH/streamcheck/internal/relay"

// Strategy is one way of reaching a stream, tried in index order.
type Strategy int

const (
	StrategyProxied Strategy = iota
	StrategyDirect
	StrategyProxiedHeaders
	StrategyProxiedIdentity

	// LastStrategy is the final strategy before terminal failure.
	LastStrategy = StrategyProxiedIdentity
)

var strategyNames = [...]string{
	StrategyProxied:         "proxied",
	StrategyDirect:          "direct",
	StrategyProxiedHeaders:  "proxied_headers",
	StrategyProxiedIdentity: "proxied_identity",
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return "unknown"
	}
	return strategyNames[s]
}

// SourceURL is the address a player loads for target under s. Direct
// bypasses the relay entirely.
func (s Strategy) SourceURL(relayBase, target string) string {
	switch s {
	case StrategyDirect:
		return target
	case StrategyProxiedHeaders:
		return relay.URL(relayBase, target, relay.ProfileHeaders)
	case StrategyProxiedIdentity:
		return relay.URL(relayBase, target, relay.ProfileClientIdentity)
	default:
		return relay.URL(relayBase, target, relay.ProfileDefault)
	}
}
