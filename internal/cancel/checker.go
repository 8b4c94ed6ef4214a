package cancel

// Default thresholds. They are tuning knobs, overridable from config.
const (
	DefaultSmallThreshold = 64
	DefaultLargeThreshold = 1024
	DefaultBatchSize      = 100
)

// Policy decides how often a long operation polls its Signal.
type Policy struct {
	SmallThreshold int // below: no checks at all
	LargeThreshold int // below: a single check at the midpoint
	BatchSize      int // at or above, and for streams: every BatchSize items
}

func DefaultPolicy() Policy {
	return Policy{
		SmallThreshold: DefaultSmallThreshold,
		LargeThreshold: DefaultLargeThreshold,
		BatchSize:      DefaultBatchSize,
	}
}

// Normalize fills zero fields with defaults and keeps Small <= Large.
func (p Policy) Normalize() Policy {
	d := DefaultPolicy()
	if p.SmallThreshold <= 0 {
		p.SmallThreshold = d.SmallThreshold
	}
	if p.LargeThreshold <= 0 {
		p.LargeThreshold = d.LargeThreshold
	}
	if p.BatchSize <= 0 {
		p.BatchSize = d.BatchSize
	}
	if p.LargeThreshold < p.SmallThreshold {
		p.LargeThreshold = p.SmallThreshold
	}
	return p
}

// Stream is the total to pass when the item count is not known up front.
const Stream = -1

// Checker amortizes signal polling over a sequence of items. A nil Checker
// never reports cancellation.
type Checker struct {
	sig    *Signal
	every  int // шаг проверки; 0 = только точка next
	next   int
	n      int
	checks int
	err    error
}

// Checker builds a checker for total items (or Stream).
func (p Policy) Checker(sig *Signal, total int) *Checker {
	p = p.Normalize()
	c := &Checker{sig: sig, next: -1}
	switch {
	case sig == nil:
	case total < 0:
		c.every = p.BatchSize
		c.next = p.BatchSize
	case total < p.SmallThreshold:
	case total < p.LargeThreshold:
		c.next = max(total/2, 1)
	default:
		c.every = p.BatchSize
		c.next = p.BatchSize
	}
	return c
}

// Step accounts for one item and polls the signal when the policy says so.
// Once cancellation has been observed every later call returns the same error.
func (c *Checker) Step() error {
	if c == nil {
		return nil
	}
	if c.err != nil {
		return c.err
	}
	c.n++
	if c.n != c.next {
		return nil
	}
	if c.every > 0 {
		c.next += c.every
	}
	return c.Check()
}

// Check polls the signal unconditionally.
func (c *Checker) Check() error {
	if c == nil || c.sig == nil {
		return nil
	}
	if c.err != nil {
		return c.err
	}
	c.checks++
	c.err = c.sig.Err()
	return c.err
}

// Items is the number of Step calls so far.
func (c *Checker) Items() int {
	if c == nil {
		return 0
	}
	return c.n
}

// Checks is the number of signal polls performed.
func (c *Checker) Checks() int {
	if c == nil {
		return 0
	}
	return c.checks
}

// Err returns the cancellation observed so far, if any.
func (c *Checker) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}
