package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minhle/quizrag/internal/quiz"
)

// MongoStore implements Store over a MongoDB database with "users" and
// "quizzes" collections.
type MongoStore struct {
	users   *mongo.Collection
	quizzes *mongo.Collection
	client  *mongo.Client
}

type userDoc struct {
	Username  string   `bson:"username"`
	QuizIDs   []string `bson:"quizzes"`
	Documents []string `bson:"documents,omitempty"`
}

type quizDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"quiz_name"`
	Questions []quiz.Question    `bson:"questions"`
}

// NewMongoStore connects to MongoDB and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	return &MongoStore{
		users:   db.Collection("users"),
		quizzes: db.Collection("quizzes"),
		client:  client,
	}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// FindUserQuizIDs returns the quiz ids owned by the user.
func (s *MongoStore) FindUserQuizIDs(ctx context.Context, owner string) ([]string, error) {
	var user userDoc
	err := s.users.FindOne(ctx, bson.M{"username": owner}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", owner, err)
	}
	return user.QuizIDs, nil
}

// GetQuiz finds a quiz by name among the given owner quiz ids.
func (s *MongoStore) GetQuiz(ctx context.Context, name string, ownerQuizIDs []string) (*Quiz, error) {
	ids := objectIDs(ownerQuizIDs)

	var doc quizDoc
	err := s.quizzes.FindOne(ctx, bson.M{
		"quiz_name": name,
		"_id":       bson.M{"$in": ids},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find quiz %s: %w", name, err)
	}

	return &Quiz{
		ID:        doc.ID.Hex(),
		Name:      doc.Name,
		Questions: doc.Questions,
	}, nil
}

// UpsertQuiz replaces the questions of the owner's quiz with that name, or
// inserts a new quiz and appends its id to the owner's quiz list.
func (s *MongoStore) UpsertQuiz(ctx context.Context, name string, questions []quiz.Question, owner string) error {
	quizIDs, err := s.FindUserQuizIDs(ctx, owner)
	if err != nil {
		return err
	}

	existing, err := s.GetQuiz(ctx, name, quizIDs)
	if err != nil && !errors.Is(err, ErrQuizNotFound) {
		return err
	}

	if existing != nil {
		id, err := primitive.ObjectIDFromHex(existing.ID)
		if err != nil {
			return fmt.Errorf("invalid quiz id %s: %w", existing.ID, err)
		}
		_, err = s.quizzes.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"questions": questions}},
		)
		if err != nil {
			return fmt.Errorf("update quiz %s: %w", name, err)
		}
		return nil
	}

	result, err := s.quizzes.InsertOne(ctx, quizDoc{
		Name:      name,
		Questions: questions,
	})
	if err != nil {
		return fmt.Errorf("insert quiz %s: %w", name, err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}

	_, err = s.users.UpdateOne(ctx,
		bson.M{"username": owner},
		bson.M{"$push": bson.M{"quizzes": insertedID.Hex()}},
	)
	if err != nil {
		return fmt.Errorf("link quiz to user %s: %w", owner, err)
	}
	return nil
}

// AppendDocumentTag records an ingested document tag on the owner.
func (s *MongoStore) AppendDocumentTag(ctx context.Context, owner, tag string) error {
	result, err := s.users.UpdateOne(ctx,
		bson.M{"username": owner},
		bson.M{"$addToSet": bson.M{"documents": tag}},
	)
	if err != nil {
		return fmt.Errorf("append document tag for %s: %w", owner, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, owner)
	}
	return nil
}

// objectIDs converts hex id strings, dropping malformed entries.
func objectIDs(hexIDs []string) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(hexIDs))
	for _, h := range hexIDs {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
