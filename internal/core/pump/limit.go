package pump

import "fmt"

type limitKind uint8

const (
	limitDefault limitKind = iota
	limitFixed
	limitAdaptive
)

// Limit is the admitted volume allowed per period. It is a tagged value:
// Fixed(n) caps admissions at n per period, Adaptive() discovers the
// effective size from observed throughput. The zero value selects the
// pump's default fixed limit.
type Limit struct {
	kind limitKind
	size int64
}

// Fixed returns a limit capped at size per period.
func Fixed(size int64) Limit {
	return Limit{kind: limitFixed, size: size}
}

// Adaptive returns a limit discovered from measured capacity.
func Adaptive() Limit {
	return Limit{kind: limitAdaptive}
}

// Value reports the configured size. ok is false for adaptive limits.
func (l Limit) Value() (size int64, ok bool) {
	return l.size, l.kind == limitFixed
}

// IsAdaptive reports whether the limit is discovered rather than configured.
func (l Limit) IsAdaptive() bool {
	return l.kind == limitAdaptive
}

func (l Limit) String() string {
	if l.kind == limitAdaptive {
		return "adaptive"
	}
	return fmt.Sprintf("%d/period", l.size)
}
