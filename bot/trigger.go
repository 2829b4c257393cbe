package bot

// DefaultGenerateEvery is how many accepted messages pass between generation attempts.
const DefaultGenerateEvery = 35

// Trigger counts accepted messages and fires every threshold ticks.
type Trigger struct {
	threshold int
	count     int
}

// NewTrigger returns a Trigger firing every threshold ticks; threshold <= 0
// uses DefaultGenerateEvery.
func NewTrigger(threshold int) *Trigger {
	if threshold <= 0 {
		threshold = DefaultGenerateEvery
	}
	return &Trigger{threshold: threshold}
}

// Tick records one accepted message. It returns true when the threshold is
// reached, in which case the counter is already back at zero.
func (t *Trigger) Tick() bool {
	t.count++
	if t.count >= t.threshold {
		t.count = 0
		return true
	}
	return false
}

// Count returns accepted messages since the last fire.
func (t *Trigger) Count() int { return t.count }

// Threshold returns the configured fire interval.
func (t *Trigger) Threshold() int { return t.threshold }
