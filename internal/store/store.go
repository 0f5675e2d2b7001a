// Package store persists quiz and user records. The pipeline depends only
// on the Store interface; Mongo is the shipped implementation.
package store

import (
	"context"
	"errors"

	"github.com/minhle/quizrag/internal/quiz"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrQuizNotFound = errors.New("quiz not found")
)

// Quiz is a persisted question set owned by one user.
type Quiz struct {
	ID        string
	Name      string
	Questions []quiz.Question
}

// Store is the external document store the pipeline hands quiz results to.
type Store interface {
	// FindUserQuizIDs returns the quiz ids owned by the user.
	FindUserQuizIDs(ctx context.Context, owner string) ([]string, error)

	// GetQuiz finds a quiz by name among the given owner quiz ids. Returns
	// ErrQuizNotFound when no owned quiz has that name.
	GetQuiz(ctx context.Context, name string, ownerQuizIDs []string) (*Quiz, error)

	// UpsertQuiz replaces the questions of the owner's quiz with that name,
	// or creates the quiz and links it to the owner.
	UpsertQuiz(ctx context.Context, name string, questions []quiz.Question, owner string) error

	// AppendDocumentTag records an ingested document tag on the owner.
	AppendDocumentTag(ctx context.Context, owner, tag string) error
}
