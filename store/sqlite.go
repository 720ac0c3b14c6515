package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"polls/domain"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLStore keeps questions in a SQL database. Publication dates are stored
// as UTC Unix nanoseconds so ordering and filtering are numeric.
type SQLStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens the database and runs the schema migrations.
func OpenSQLite(dataSourceName string, log *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer; one connection keeps votes from racing for the lock.
	db.SetMaxOpenConns(1)
	if err := migrateUp(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{db: db, log: log}, nil
}

func migrateUp(db *sql.DB, log *slog.Logger) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("error loading migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("error creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, DriverSQLite, driver)
	if err != nil {
		return fmt.Errorf("error creating migrator: %w", err)
	}
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No database schema migration ran. Database schema already in latest version")
		return nil
	}
	if err != nil {
		return fmt.Errorf("error during database schema migration: %w", err)
	}
	log.Info("Database schema migrated")
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateQuestion(ctx context.Context, text, description string, pubDate time.Time) (domain.Question, error) {
	if err := domain.ValidatePubDate(pubDate); err != nil {
		return domain.Question{}, err
	}
	q := domain.Question{
		ID:          newID(),
		Text:        text,
		Description: description,
		PubDate:     normalizeTime(pubDate),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO questions (id, text, description, pub_date, createdAt) VALUES (?, ?, ?, ?, ?)",
		q.ID, q.Text, q.Description, q.PubDate.UnixNano(), time.Now().UTC())
	if err != nil {
		return domain.Question{}, fmt.Errorf("error inserting question: %w", err)
	}
	return q, nil
}

func (s *SQLStore) AddChoice(ctx context.Context, questionID, text string) (domain.Choice, error) {
	if _, err := s.GetQuestion(ctx, questionID); err != nil {
		return domain.Choice{}, err
	}
	c := domain.Choice{
		ID:         newID(),
		QuestionID: questionID,
		Text:       text,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO choices (id, question_id, text, votes, createdAt) VALUES (?, ?, ?, 0, ?)",
		c.ID, c.QuestionID, c.Text, time.Now().UTC())
	if err != nil {
		return domain.Choice{}, fmt.Errorf("error inserting choice: %w", err)
	}
	return c, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.queryQuestions(ctx,
		"SELECT id, text, description, pub_date FROM questions ORDER BY pub_date DESC, id DESC")
}

func (s *SQLStore) ListPublished(ctx context.Context, now time.Time, limit int) ([]domain.Question, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryQuestions(ctx,
		"SELECT id, text, description, pub_date FROM questions WHERE pub_date <= ? ORDER BY pub_date DESC, id DESC LIMIT ?",
		unixNanos(now), limit)
}

func (s *SQLStore) queryQuestions(ctx context.Context, query string, args ...any) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying questions: %w", err)
	}
	defer rows.Close()
	questions := []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, text, description, pub_date FROM questions WHERE id = ?", id)
	return scanQuestion(row)
}

func (s *SQLStore) GetPublished(ctx context.Context, id string, now time.Time) (domain.Question, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, text, description, pub_date FROM questions WHERE id = ? AND pub_date <= ?",
		id, unixNanos(now))
	return scanQuestion(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row scanner) (domain.Question, error) {
	var q domain.Question
	var pubDate int64
	err := row.Scan(&q.ID, &q.Text, &q.Description, &pubDate)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("error scanning question: %w", err)
	}
	q.PubDate = time.Unix(0, pubDate).UTC()
	return q, nil
}

func (s *SQLStore) Choices(ctx context.Context, questionID string) ([]domain.Choice, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, question_id, text, votes FROM choices WHERE question_id = ? ORDER BY id", questionID)
	if err != nil {
		return nil, fmt.Errorf("error querying choices: %w", err)
	}
	defer rows.Close()
	choices := []domain.Choice{}
	for rows.Next() {
		var c domain.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.Votes); err != nil {
			return nil, fmt.Errorf("error scanning choice: %w", err)
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

func (s *SQLStore) Vote(ctx context.Context, questionID, choiceID string, now time.Time) (domain.Choice, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Choice{}, fmt.Errorf("error in begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE choices SET votes = votes + 1
        WHERE id = ? AND question_id = ?
        AND EXISTS (SELECT 1 FROM questions WHERE id = ? AND pub_date <= ?)`,
		choiceID, questionID, questionID, unixNanos(now))
	if err != nil {
		return domain.Choice{}, fmt.Errorf("error updating votes: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Choice{}, err
	}
	if affected == 0 {
		return domain.Choice{}, domain.ErrNotFound
	}

	c := domain.Choice{}
	err = tx.QueryRowContext(ctx,
		"SELECT id, question_id, text, votes FROM choices WHERE id = ?", choiceID).
		Scan(&c.ID, &c.QuestionID, &c.Text, &c.Votes)
	if err != nil {
		return domain.Choice{}, fmt.Errorf("error reading choice: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Choice{}, fmt.Errorf("error in commit transaction: %w", err)
	}
	return c, nil
}
