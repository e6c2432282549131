package compliance

import (
	"context"
	"fmt"
	"time"
)

// CallHistory answers the two trailing-window questions the gate asks of
// prior call traffic. Implemented by internal/calls.
type CallHistory interface {
	CountOutboundAttemptsSince(ctx context.Context, orgID, phoneNumber string, since time.Time) (int, error)
	HasConnectedOutboundSince(ctx context.Context, orgID, phoneNumber string, since time.Time) (bool, error)
}

const (
	// Reg F presumption: no more than seven attempts per number in any
	// rolling seven-day window, and no call within seven days of a
	// completed conversation.
	frequencyWindow  = 7 * 24 * time.Hour
	frequencyMaxCall = 7
	cooldownWindow   = 7 * 24 * time.Hour
)

// Oracle evaluates the three history- and clock-dependent checks. It is
// separate from Gate so the window arithmetic can be tested without
// standing up account state.
type Oracle struct {
	history CallHistory
	zones   ZoneConfig
	clock   func() time.Time
}

// ZoneConfig controls the time-of-day check.
type ZoneConfig struct {
	// DefaultZone is used when the account carries no loadable zone.
	DefaultZone string
	// StartHour and EndHour bound the permitted window as [start, end)
	// in the account's local time.
	StartHour int
	EndHour   int
}

func NewOracle(history CallHistory, zones ZoneConfig, clock func() time.Time) *Oracle {
	if clock == nil {
		clock = time.Now
	}
	return &Oracle{history: history, zones: zones, clock: clock}
}

// WithinCallWindow reports whether the current instant falls inside the
// permitted local-time window. An unknown or unloadable zone falls back to
// the configured default; a default that itself cannot be loaded is an
// error, never a silent pass in some other zone.
func (o *Oracle) WithinCallWindow(timezone string) (bool, error) {
	loc, err := o.resolveZone(timezone)
	if err != nil {
		return false, err
	}
	h := o.clock().In(loc).Hour()
	return h >= o.zones.StartHour && h < o.zones.EndHour, nil
}

func (o *Oracle) resolveZone(timezone string) (*time.Location, error) {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err == nil {
			return loc, nil
		}
	}
	loc, err := time.LoadLocation(o.zones.DefaultZone)
	if err != nil {
		return nil, fmt.Errorf("compliance: load default zone %q: %w", o.zones.DefaultZone, err)
	}
	return loc, nil
}

// UnderFrequencyCap reports whether another attempt to the number stays
// under the seven-in-seven cap. The attempt being evaluated is not yet
// recorded, so the check passes while the trailing count is strictly
// below the cap.
func (o *Oracle) UnderFrequencyCap(ctx context.Context, orgID, phoneNumber string) (bool, error) {
	since := o.clock().Add(-frequencyWindow)
	n, err := o.history.CountOutboundAttemptsSince(ctx, orgID, phoneNumber, since)
	if err != nil {
		return false, err
	}
	return n < frequencyMaxCall, nil
}

// OutsideConversationCooldown reports whether the number is clear of the
// post-conversation cooldown. A conversation is a completed outbound call
// with nonzero talk time.
func (o *Oracle) OutsideConversationCooldown(ctx context.Context, orgID, phoneNumber string) (bool, error) {
	since := o.clock().Add(-cooldownWindow)
	connected, err := o.history.HasConnectedOutboundSince(ctx, orgID, phoneNumber, since)
	if err != nil {
		return false, err
	}
	return !connected, nil
}
