package domain

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/samber/lo"
)

// RecencyWindow is how far back a question still counts as recently published.
const RecencyWindow = 24 * time.Hour

// Publication dates are stored as Unix nanoseconds, which only cover this range.
var (
	MinPubDate = time.Unix(0, math.MinInt64).UTC()
	MaxPubDate = time.Unix(0, math.MaxInt64).UTC()
)

// ValidatePubDate rejects dates that cannot be stored without wrapping around.
func ValidatePubDate(t time.Time) error {
	if t.Before(MinPubDate) || t.After(MaxPubDate) {
		return fmt.Errorf("%w: publication date %s outside [%s, %s]",
			ErrInvalidInput, t.Format(time.RFC3339), MinPubDate.Format(time.RFC3339), MaxPubDate.Format(time.RFC3339))
	}
	return nil
}

type Question struct {
	ID          string
	Text        string
	Description string
	PubDate     time.Time
}

// IsPublished reports whether the question is visible at now.
func (q Question) IsPublished(now time.Time) bool {
	return !q.PubDate.After(now)
}

// WasPublishedRecently is true when PubDate lies within [now-24h, now].
func (q Question) WasPublishedRecently(now time.Time) bool {
	delta := now.Sub(q.PubDate)
	return delta >= 0 && delta <= RecencyWindow
}

// Published keeps the questions visible at now, most recent first.
// Equal publication dates are ordered by ID descending. It is the reference
// ordering: every store's ListPublished must return the same sequence.
func Published(questions []Question, now time.Time) []Question {
	published := lo.Filter(questions, func(q Question, _ int) bool {
		return q.IsPublished(now)
	})
	slices.SortStableFunc(published, CompareRecentFirst)
	return published
}

func CompareRecentFirst(a, b Question) int {
	if c := b.PubDate.Compare(a.PubDate); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}
