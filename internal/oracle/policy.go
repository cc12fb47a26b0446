package oracle

import (
	"fmt"
	"strings"

	"PegSentinel/internal/hub"
)

// ReferenceTimeFunc returns the timestamp that elapsed time is measured from.
type ReferenceTimeFunc func(lastSampleTime int64, h *hub.Hub) int64

// AccumulationPolicy decides when, relative to a block's effects, the oracle
// commits prices into its accumulators and what elapsed time is measured from.
type AccumulationPolicy struct {
	Name string

	// SampleBeforeBlockEffects commits against the pre-block hub state.
	SampleBeforeBlockEffects bool

	// CommitOnRead commits on every block. Without it the accumulator only
	// moves when a conversion executes and reads are counterfactual.
	CommitOnRead  bool
	ReferenceTime ReferenceTimeFunc
}

func ownSampleTime(lastSampleTime int64, _ *hub.Hub) int64 { return lastSampleTime }

func laterOfSampleAndReward(lastSampleTime int64, h *hub.Hub) int64 {
	return max(lastSampleTime, h.LastRewardBlock().Time)
}

var (
	// Standard samples after the block's effects.
	Standard = AccumulationPolicy{
		Name:          "standard",
		CommitOnRead:  true,
		ReferenceTime: ownSampleTime,
	}
	// PreSample samples before the block's effects, like a keeper bot
	// poking the oracle at the start of every block.
	PreSample = AccumulationPolicy{
		Name:                     "pre_sample",
		SampleBeforeBlockEffects: true,
		CommitOnRead:             true,
		ReferenceTime:            ownSampleTime,
	}
	// HubReferenced samples after the block's effects but never counts time
	// from before the hub's last reward accrual.
	HubReferenced = AccumulationPolicy{
		Name:          "hub_referenced",
		CommitOnRead:  true,
		ReferenceTime: laterOfSampleAndReward,
	}
	// SwapTriggered only commits when a conversion executes, as an on-chain
	// pair contract does.
	SwapTriggered = AccumulationPolicy{
		Name:          "swap_triggered",
		ReferenceTime: ownSampleTime,
	}
)

// Policies lists every built-in policy.
func Policies() []AccumulationPolicy {
	return []AccumulationPolicy{Standard, PreSample, HubReferenced, SwapTriggered}
}

// PolicyByName resolves a built-in policy, case-insensitively.
func PolicyByName(name string) (AccumulationPolicy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range Policies() {
		if p.Name == key {
			return p, nil
		}
	}
	return AccumulationPolicy{}, fmt.Errorf("unknown accumulation policy %q", name)
}
