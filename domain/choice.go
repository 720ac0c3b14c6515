package domain

type Choice struct {
	ID         string
	QuestionID string
	Text       string
	Votes      int
}
