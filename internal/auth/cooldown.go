package auth

import "time"

// Backoff escalates the cooldown a credential sits out after
// consecutive failures.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Minute,
		Max:        time.Hour,
		Multiplier: 5,
	}
}

func (b Backoff) duration(errorCount int) time.Duration {
	d := b.Initial
	for i := 1; i < errorCount; i++ {
		d *= time.Duration(b.Multiplier)
		if d > b.Max {
			return b.Max
		}
	}
	return d
}

// MarkFailed records a failure and puts the credential in cooldown,
// longer each consecutive time.
func (p *Profile) MarkFailed(b Backoff, now time.Time) {
	p.Stats.ErrorCount++
	p.Stats.CooldownUntil = now.Add(b.duration(p.Stats.ErrorCount))
}

// Disable takes the credential out of service for d, for failures a
// cooldown will not cure.
func (p *Profile) Disable(now time.Time, d time.Duration) {
	p.Stats.DisabledUntil = now.Add(d)
}

// MarkHealthy clears all failure state after a successful call.
func (p *Profile) MarkHealthy(now time.Time) {
	p.Stats.LastUsed = now
	p.Stats.ErrorCount = 0
	p.Stats.CooldownUntil = time.Time{}
	p.Stats.DisabledUntil = time.Time{}
}
