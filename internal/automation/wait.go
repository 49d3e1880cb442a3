package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// Condition is polled by WaitAny. Errors count as "not yet".
type Condition func() (bool, error)

// WaitAny polls conds every poll interval until one holds or timeout
// elapses. It returns the index of the first condition that held.
func WaitAny(ctx context.Context, timeout, poll time.Duration, conds ...Condition) (int, error) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var lastErr error
	for {
		for i, cond := range conds {
			ok, err := cond()
			if err != nil {
				lastErr = err
				continue
			}
			if ok {
				return i, nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return -1, fmt.Errorf("%w after %s: %v", types.ErrTimeout, timeout, lastErr)
			}
			return -1, fmt.Errorf("%w after %s", types.ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// Present holds once sel matches at least one element.
func Present(s Session, sel config.Selector) Condition {
	return func() (bool, error) {
		els, err := s.FindAll(sel)
		if err != nil {
			return false, err
		}
		return len(els) > 0, nil
	}
}

// Detached holds once el is stale.
func Detached(el Element) Condition {
	return func() (bool, error) {
		return el.Stale(), nil
	}
}

// URLChanged holds once the session location differs from from.
func URLChanged(s Session, from string) Condition {
	return func() (bool, error) {
		cur, err := s.CurrentURL()
		if err != nil {
			return false, err
		}
		return cur != from, nil
	}
}
