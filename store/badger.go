package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"polls/domain"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	questionPrefix = "question:id:"
	pubIndexPrefix = "question:pub:"
	choicePrefix   = "choice:"
	maxVoteRetries = 5
)

// BadgerStore keeps questions in BadgerDB.
//
// Every question has a secondary key "question:pub:{ts}:{id}" where ts is the
// publication date encoded so that lexicographical order matches time order.
// Listing seeks to now and walks the index backwards, which yields the most
// recent question first and, for equal dates, the greater ID first.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

// OpenBadger opens the database at path. An empty path keeps everything in memory.
func OpenBadger(path string, log *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type diskQuestion struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description"`
	PubDate     int64  `json:"pub_date"`
}

type diskChoice struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
}

func questionKey(id string) []byte {
	return []byte(questionPrefix + id)
}

// pubTimestamp flips the sign bit so negative Unix times sort before positive ones.
func pubTimestamp(t time.Time) string {
	return fmt.Sprintf("%020d", uint64(unixNanos(t))^(1<<63))
}

func pubKey(q domain.Question) []byte {
	return []byte(pubIndexPrefix + pubTimestamp(q.PubDate) + ":" + q.ID)
}

func choiceKey(questionID, choiceID string) []byte {
	return []byte(choicePrefix + questionID + ":" + choiceID)
}

func (s *BadgerStore) CreateQuestion(_ context.Context, text, description string, pubDate time.Time) (domain.Question, error) {
	if err := domain.ValidatePubDate(pubDate); err != nil {
		return domain.Question{}, err
	}
	q := domain.Question{
		ID:          newID(),
		Text:        text,
		Description: description,
		PubDate:     normalizeTime(pubDate),
	}
	bytes, err := json.Marshal(fromQuestion(q))
	if err != nil {
		return domain.Question{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(questionKey(q.ID), bytes); err != nil {
			return err
		}
		return txn.Set(pubKey(q), nil)
	})
	if err != nil {
		return domain.Question{}, fmt.Errorf("error storing question: %w", err)
	}
	return q, nil
}

func (s *BadgerStore) AddChoice(_ context.Context, questionID, text string) (domain.Choice, error) {
	c := domain.Choice{
		ID:         newID(),
		QuestionID: questionID,
		Text:       text,
	}
	bytes, err := json.Marshal(fromChoice(c))
	if err != nil {
		return domain.Choice{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := getQuestion(txn, questionID); err != nil {
			return err
		}
		return txn.Set(choiceKey(questionID, c.ID), bytes)
	})
	if err != nil {
		return domain.Choice{}, err
	}
	return c, nil
}

func (s *BadgerStore) ListQuestions(_ context.Context) ([]domain.Question, error) {
	questions := []domain.Question{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(questionPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var q domain.Question
			err := it.Item().Value(func(value []byte) error {
				var err error
				q, err = decodeQuestion(value)
				return err
			})
			if err != nil {
				return err
			}
			questions = append(questions, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(questions, domain.CompareRecentFirst)
	return questions, nil
}

func (s *BadgerStore) ListPublished(_ context.Context, now time.Time, limit int) ([]domain.Question, error) {
	questions := []domain.Question{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(pubIndexPrefix)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// '~' sorts after every character of an ID, so the seek lands on the
		// last question published at or before now.
		seekKey := []byte(pubIndexPrefix + pubTimestamp(now) + ":~")
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(questions) == limit {
				break
			}
			key := string(it.Item().Key())
			id := key[len(pubIndexPrefix)+20+1:]
			q, err := getQuestion(txn, id)
			if err != nil {
				return err
			}
			questions = append(questions, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *BadgerStore) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	var q domain.Question
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		q, err = getQuestion(txn, id)
		return err
	})
	return q, err
}

func (s *BadgerStore) GetPublished(ctx context.Context, id string, now time.Time) (domain.Question, error) {
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if !q.IsPublished(now) {
		return domain.Question{}, domain.ErrNotFound
	}
	return q, nil
}

func (s *BadgerStore) Choices(_ context.Context, questionID string) ([]domain.Choice, error) {
	choices := []domain.Choice{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(choicePrefix + questionID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c domain.Choice
			err := it.Item().Value(func(value []byte) error {
				var err error
				c, err = decodeChoice(value)
				return err
			})
			if err != nil {
				return err
			}
			choices = append(choices, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return choices, nil
}

// Vote retries when a concurrent vote on the same choice wins the transaction.
func (s *BadgerStore) Vote(ctx context.Context, questionID, choiceID string, now time.Time) (domain.Choice, error) {
	var c domain.Choice
	var err error
	for attempt := 0; attempt < maxVoteRetries; attempt++ {
		c, err = s.vote(questionID, choiceID, now)
		if !errors.Is(err, badger.ErrConflict) {
			return c, err
		}
		s.log.Debug("Vote conflict, retrying", "choiceID", choiceID, "attempt", attempt)
		if ctx.Err() != nil {
			return domain.Choice{}, ctx.Err()
		}
	}
	return domain.Choice{}, err
}

func (s *BadgerStore) vote(questionID, choiceID string, now time.Time) (domain.Choice, error) {
	var c domain.Choice
	err := s.db.Update(func(txn *badger.Txn) error {
		q, err := getQuestion(txn, questionID)
		if err != nil {
			return err
		}
		if !q.IsPublished(now) {
			return domain.ErrNotFound
		}
		item, err := txn.Get(choiceKey(questionID, choiceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		err = item.Value(func(value []byte) error {
			c, err = decodeChoice(value)
			return err
		})
		if err != nil {
			return err
		}
		c.Votes++
		bytes, err := json.Marshal(fromChoice(c))
		if err != nil {
			return err
		}
		return txn.Set(choiceKey(questionID, choiceID), bytes)
	})
	if err != nil {
		return domain.Choice{}, err
	}
	return c, nil
}

func getQuestion(txn *badger.Txn, id string) (domain.Question, error) {
	item, err := txn.Get(questionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Question{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Question{}, err
	}
	var q domain.Question
	err = item.Value(func(value []byte) error {
		q, err = decodeQuestion(value)
		return err
	})
	return q, err
}

func fromQuestion(q domain.Question) diskQuestion {
	return diskQuestion{
		ID:          q.ID,
		Text:        q.Text,
		Description: q.Description,
		PubDate:     q.PubDate.UnixNano(),
	}
}

func decodeQuestion(value []byte) (domain.Question, error) {
	var dq diskQuestion
	if err := json.Unmarshal(value, &dq); err != nil {
		return domain.Question{}, err
	}
	return domain.Question{
		ID:          dq.ID,
		Text:        dq.Text,
		Description: dq.Description,
		PubDate:     time.Unix(0, dq.PubDate).UTC(),
	}, nil
}

func fromChoice(c domain.Choice) diskChoice {
	return diskChoice{ID: c.ID, QuestionID: c.QuestionID, Text: c.Text, Votes: c.Votes}
}

func decodeChoice(value []byte) (domain.Choice, error) {
	var dc diskChoice
	if err := json.Unmarshal(value, &dc); err != nil {
		return domain.Choice{}, err
	}
	return domain.Choice{ID: dc.ID, QuestionID: dc.QuestionID, Text: dc.Text, Votes: dc.Votes}, nil
}
