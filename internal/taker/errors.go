package taker

import "errors"

var (
	// ErrInvalidPhase means the operation is not available in the current
	// phase, e.g. answering before the test started.
	ErrInvalidPhase = errors.New("operation not valid in current phase")

	// ErrScoreOutOfRange is returned before any remote call when the score
	// falls outside the template's scale.
	ErrScoreOutOfRange = errors.New("score outside scale range")

	// ErrUnknownQuestion is returned when the question is not part of the
	// session's template.
	ErrUnknownQuestion = errors.New("question not in this assessment")

	// ErrUnansweredQuestions blocks manual completion until every question
	// has an answer.
	ErrUnansweredQuestions = errors.New("all questions must be answered")
)
