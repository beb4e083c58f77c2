// Package emulator holds the state of the local entitlement service emulator:
// the grant policy, the consumption ledger and the decision signer.
package emulator

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// wildcardItem is the policy entry applied to items without their own entry.
const wildcardItem = "*"

// Policy decides which items are granted. Items absent from the policy are
// denied unless a "*" entry says otherwise.
type Policy map[string]bool

// Granted reports whether item is granted.
func (p Policy) Granted(item string) bool {
	if granted, ok := p[item]; ok {
		return granted
	}
	return p[wildcardItem]
}

type consumption struct {
	Item      string
	MachineID string
}

// Ledger tracks consumed grants until they are released or expire.
type Ledger struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewLedger creates a ledger whose consumptions expire after ttl.
func NewLedger(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Ledger{cache: cache.New(ttl, ttl/2), ttl: ttl}
}

// TTL is the lifetime of a consumption.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Consume records a consumption of item by machineID and returns its token id.
func (l *Ledger) Consume(item, machineID string) string {
	jti := uuid.NewString()
	l.cache.Set(jti, consumption{Item: item, MachineID: machineID}, cache.DefaultExpiration)
	return jti
}

// ReleaseResult is the outcome of Ledger.Release.
type ReleaseResult int

const (
	// Released means the consumption ended.
	Released ReleaseResult = iota
	// ReleaseUnknown means no consumption with that id is outstanding.
	ReleaseUnknown
	// ReleaseNotOwner means another machine holds the consumption. It stays outstanding.
	ReleaseNotOwner
)

// Release ends the consumption jti. Only the consuming machine may release
// it; an empty machineID skips that check.
func (l *Ledger) Release(jti, machineID string) (string, ReleaseResult) {
	v, found := l.cache.Get(jti)
	if !found {
		return "", ReleaseUnknown
	}
	c := v.(consumption)
	if machineID != "" && c.MachineID != "" && c.MachineID != machineID {
		return "", ReleaseNotOwner
	}
	l.cache.Delete(jti)
	return c.Item, Released
}

// Outstanding is the number of unreleased consumptions.
func (l *Ledger) Outstanding() int {
	return l.cache.ItemCount()
}
