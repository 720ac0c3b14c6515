package fixtures

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"polls/domain"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Creator is the part of the store fixtures need.
type Creator interface {
	CreateQuestion(ctx context.Context, text, description string, pubDate time.Time) (domain.Question, error)
	AddChoice(ctx context.Context, questionID, text string) (domain.Choice, error)
}

type File struct {
	Questions []Question `yaml:"questions" validate:"dive"`
}

// Question is either published at an absolute PubDate or at an offset from
// load time given by Published (e.g. "-4h" for four hours ago).
type Question struct {
	Text        string     `yaml:"text" validate:"required"`
	Description string     `yaml:"description"`
	PubDate     *time.Time `yaml:"pub_date" validate:"required_without=Published,excluded_with=Published"`
	Published   string     `yaml:"published"`
	Choices     []string   `yaml:"choices" validate:"dive,required"`
}

// Parse decodes and validates a fixture file.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("error decoding fixtures: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return File{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	for i, q := range f.Questions {
		if q.PubDate != nil {
			if err := domain.ValidatePubDate(*q.PubDate); err != nil {
				return File{}, fmt.Errorf("question %d: %w", i, err)
			}
			continue
		}
		if _, err := time.ParseDuration(q.Published); err != nil {
			return File{}, fmt.Errorf("%w: question %d: %v", domain.ErrInvalidInput, i, err)
		}
	}
	return f, nil
}

func (q Question) pubDate(now time.Time) time.Time {
	if q.PubDate != nil {
		return *q.PubDate
	}
	offset, _ := time.ParseDuration(q.Published)
	return now.Add(offset)
}

// Load creates every question of f and its choices, resolving relative
// publication dates against now.
func Load(ctx context.Context, c Creator, f File, now time.Time, log *slog.Logger) error {
	for _, fq := range f.Questions {
		q, err := c.CreateQuestion(ctx, fq.Text, fq.Description, fq.pubDate(now))
		if err != nil {
			return err
		}
		for _, text := range fq.Choices {
			if _, err := c.AddChoice(ctx, q.ID, text); err != nil {
				return err
			}
		}
		log.Debug("Fixture loaded", "questionID", q.ID, "choices", len(fq.Choices))
	}
	log.Info("Fixtures loaded", "questions", len(f.Questions))
	return nil
}

// LoadFile reads path and loads it into c.
func LoadFile(ctx context.Context, c Creator, path string, now time.Time, log *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return Load(ctx, c, f, now, log)
}
