package crawler

import "time"

// Backoff retries an operation with its policy held as data rather than
// baked into the call site. Grow transforms the delay between attempts; nil
// keeps it fixed. The crawler applies this only at browser bootstrap; page
// fetches, parses and persists are never retried.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	Grow     func(time.Duration) time.Duration
}

// Do runs op until it succeeds or the attempts are spent, returning
// the last error.
func (b Backoff) Do(op func() error) error {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := b.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		time.Sleep(delay)
		if b.Grow != nil {
			delay = b.Grow(delay)
		}
	}
	return err
}
