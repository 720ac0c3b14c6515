package handler

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"polls/domain"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

const noChoiceMessage = "You didn't select a choice."

var validate = validator.New()

type QuestionDTO struct {
	ID          string
	Text        template.HTML
	Description template.HTML
	PubDate     string
	PubDateISO  string
	Recent      bool
	Choices     []ChoiceDTO
}

type ChoiceDTO struct {
	ID    string
	Text  template.HTML
	Votes int
}

type DetailDTO struct {
	QuestionDTO
	ErrorMessage string
}

func toQuestionDTO(q domain.Question, now time.Time) QuestionDTO {
	return QuestionDTO{
		ID:          q.ID,
		Text:        plainText(q.Text),
		Description: safeMd(q.Description),
		PubDate:     q.PubDate.Format(time.DateOnly),
		PubDateISO:  q.PubDate.Format(time.RFC3339),
		Recent:      q.WasPublishedRecently(now),
	}
}

func toChoiceDTOs(choices []domain.Choice) []ChoiceDTO {
	return lo.Map(choices, func(c domain.Choice, _ int) ChoiceDTO {
		return ChoiceDTO{ID: c.ID, Text: plainText(c.Text), Votes: c.Votes}
	})
}

// GetQuestions renders the latest published questions.
func (h *Handler) GetQuestions(c echo.Context) error {
	now := h.Now()
	questions, err := h.Store.ListPublished(c.Request().Context(), now, h.IndexLimit)
	if err != nil {
		return fmt.Errorf("error listing questions: %w", err)
	}

	return c.Render(http.StatusOK, "index.html", struct {
		Questions []QuestionDTO
	}{
		Questions: lo.Map(questions, func(q domain.Question, _ int) QuestionDTO {
			return toQuestionDTO(q, now)
		}),
	})
}

// GetByID renders a published question with its choices.
func (h *Handler) GetByID(c echo.Context) error {
	dto, err := h.publishedQuestion(c, h.Now())
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "detail.html", DetailDTO{QuestionDTO: dto})
}

// GetResults renders the vote count of every choice of a published question.
func (h *Handler) GetResults(c echo.Context) error {
	dto, err := h.publishedQuestion(c, h.Now())
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "results.html", dto)
}

// Vote records a vote for the posted choice and redirects to the results.
// A missing or unknown choice re-renders the question with an error message.
func (h *Handler) Vote(c echo.Context) error {
	now := h.Now()
	dto, err := h.publishedQuestion(c, now)
	if err != nil {
		return err
	}

	choiceID := c.FormValue("choice")
	if err := validate.Var(choiceID, "required,uuid"); err != nil {
		return c.Render(http.StatusBadRequest, "detail.html", DetailDTO{dto, noChoiceMessage})
	}

	choice, err := h.Store.Vote(c.Request().Context(), dto.ID, choiceID, now)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Render(http.StatusBadRequest, "detail.html", DetailDTO{dto, noChoiceMessage})
	}
	if err != nil {
		return fmt.Errorf("error voting: %w", err)
	}
	h.Log.Debug("Vote recorded", "questionID", dto.ID, "choiceID", choice.ID, "votes", choice.Votes)

	return c.Redirect(http.StatusFound, "/polls/"+dto.ID+"/results/")
}

// publishedQuestion loads the question named by the id path parameter as
// seen at now. Malformed, unknown and not yet published ids all answer 404.
func (h *Handler) publishedQuestion(c echo.Context, now time.Time) (QuestionDTO, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return QuestionDTO{}, echo.NewHTTPError(http.StatusNotFound, "Question not found")
	}

	ctx := c.Request().Context()
	q, err := h.Store.GetPublished(ctx, id.String(), now)
	if errors.Is(err, domain.ErrNotFound) {
		return QuestionDTO{}, echo.NewHTTPError(http.StatusNotFound, "Question not found")
	}
	if err != nil {
		return QuestionDTO{}, fmt.Errorf("error getting question: %w", err)
	}

	choices, err := h.Store.Choices(ctx, q.ID)
	if err != nil {
		return QuestionDTO{}, fmt.Errorf("error listing choices: %w", err)
	}
	dto := toQuestionDTO(q, now)
	dto.Choices = toChoiceDTOs(choices)
	return dto, nil
}
