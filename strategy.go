package tiercache

import (
	"slices"

	"github.com/Keksclan/tiercache/tier"
)

// Hot categories served from every fast tier plus durable structured
// storage.
const (
	CategoryUser      = "user"
	CategoryFinancial = "financial"
	CategoryConfig    = "config"
)

// selectKinds is the storage strategy: a deterministic function of payload
// size, priority, category and persistence returning the target tier kinds,
// fastest first.
//
// Rationale: quota-limited tiers must not be flooded by large payloads, and
// critical data must not depend on any single backend being available.
func selectKinds(size int64, prio tier.Priority, category string, persistent bool, largeThreshold int64) []tier.Kind {
	// Critical entries go everywhere so they survive a single-tier loss.
	if prio == tier.Critical {
		return slices.Clone(tier.Kinds)
	}

	// Large payloads bypass the quota-limited tiers entirely.
	if largeThreshold > 0 && size > largeThreshold {
		if persistent {
			return []tier.Kind{tier.KindMemory, tier.KindDurableStructured}
		}
		return []tier.Kind{tier.KindDurableStructured}
	}

	var kinds []tier.Kind
	switch category {
	case CategoryUser, CategoryFinancial:
		// Hot, frequently read, must survive restarts.
		kinds = []tier.Kind{tier.KindMemory, tier.KindSession, tier.KindDurableStructured}
	case CategoryConfig:
		// Small, needed early, must survive a reload.
		kinds = []tier.Kind{tier.KindMemory, tier.KindSession, tier.KindDurableKV}
	default:
		kinds = []tier.Kind{tier.KindMemory, tier.KindSession}
	}

	// Persistent entries need at least one durable backing write.
	if persistent && !hasDurable(kinds) {
		kinds = append(kinds, tier.KindDurableStructured)
	}
	return kinds
}

func hasDurable(kinds []tier.Kind) bool {
	return slices.Contains(kinds, tier.KindDurableKV) ||
		slices.Contains(kinds, tier.KindDurableStructured)
}
