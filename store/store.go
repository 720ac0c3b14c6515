package store

import (
	"context"
	"fmt"
	"log/slog"
	"polls/domain"
	"time"

	"github.com/google/uuid"
)

// Store persists questions and their choices.
//
// ListPublished and GetPublished only see questions whose publication date is
// not after now. Questions that are missing and questions that are not
// published yet both yield domain.ErrNotFound.
type Store interface {
	CreateQuestion(ctx context.Context, text, description string, pubDate time.Time) (domain.Question, error)
	AddChoice(ctx context.Context, questionID, text string) (domain.Choice, error)
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListPublished(ctx context.Context, now time.Time, limit int) ([]domain.Question, error)
	GetPublished(ctx context.Context, id string, now time.Time) (domain.Question, error)
	Choices(ctx context.Context, questionID string) ([]domain.Choice, error)
	Vote(ctx context.Context, questionID, choiceID string, now time.Time) (domain.Choice, error)
	Close() error
}

const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Open returns the Store for driver. An empty dataSourceName selects the
// driver's default location.
func Open(driver, dataSourceName string, log *slog.Logger) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		if dataSourceName == "" {
			dataSourceName = "./polls.db?_pragma=foreign_keys(1)"
		}
		return OpenSQLite(dataSourceName, log)
	case DriverBadger:
		return OpenBadger(dataSourceName, log)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// normalizeTime drops the location and monotonic reading so that values
// read back from storage compare equal to the ones written.
func normalizeTime(t time.Time) time.Time {
	return time.Unix(0, t.UnixNano()).UTC()
}

// unixNanos clamps t into the storable range before converting it. Stored
// dates are always inside that range, so comparisons against a clamped now
// give the same answer as against now itself.
func unixNanos(t time.Time) int64 {
	switch {
	case t.Before(domain.MinPubDate):
		return domain.MinPubDate.UnixNano()
	case t.After(domain.MaxPubDate):
		return domain.MaxPubDate.UnixNano()
	}
	return t.UnixNano()
}
