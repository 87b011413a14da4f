package item

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	defaultCount    = 9
	defaultInterval = 1 * time.Second
)

type Source struct {
	count    int
	interval time.Duration
	newName  func() string
}

type SourceOption func(*Source)

// WithCount sets how many items each sequence yields. Non-positive values are ignored.
func WithCount(count int) SourceOption {
	return func(s *Source) {
		if count > 0 {
			s.count = count
		}
	}
}

// WithInterval sets the tick between two items. Non-positive values are ignored.
func WithInterval(interval time.Duration) SourceOption {
	return func(s *Source) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithNameGenerator replaces the uuid based name generator.
func WithNameGenerator(fn func() string) SourceOption {
	return func(s *Source) {
		if fn != nil {
			s.newName = fn
		}
	}
}

func NewSource(opts ...SourceOption) *Source {
	s := &Source{
		count:    defaultCount,
		interval: defaultInterval,
		newName:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Count() int { return s.count }

func (s *Source) Interval() time.Duration { return s.interval }

// Stream starts a fresh sequence and returns the channel it is delivered on.
// Item n is sent at roughly n*interval. The channel is closed once the last
// item has been received or ctx is done, whichever happens first.
func (s *Source) Stream(ctx context.Context) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 1; i <= s.count; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			it := Item{ID: strconv.Itoa(i), Name: s.newName()}
			select {
			case <-ctx.Done():
				return
			case out <- it:
			}
		}
	}()
	return out
}

// Collect drains a whole sequence. It returns ctx.Err() when the sequence
// was cut short, along with whatever had been received.
func (s *Source) Collect(ctx context.Context) ([]Item, error) {
	items := make([]Item, 0, s.count)
	for it := range s.Stream(ctx) {
		items = append(items, it)
	}
	if len(items) < s.count {
		if err := ctx.Err(); err != nil {
			return items, err
		}
	}
	return items, nil
}
