package services

import (
	"context"
	"fmt"
	"time"

	"taskhub/microservices/tasks-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDefinitionStore reads recurring definitions from the recurring_tasks
// collection.
type MongoDefinitionStore struct {
	collection *mongo.Collection
}

func NewMongoDefinitionStore(collection *mongo.Collection) *MongoDefinitionStore {
	return &MongoDefinitionStore{collection: collection}
}

// FindDueCandidates returns definitions whose validity window includes the
// given day: supported cadence, startDate at or before the day, endDate
// unset or not yet passed. The cadence predicate itself runs in the
// generator, not here.
func (s *MongoDefinitionStore) FindDueCandidates(ctx context.Context, today time.Time) ([]models.RecurringTask, error) {
	filter := bson.M{
		"cadence":   bson.M{"$in": []models.Cadence{models.CadenceDaily, models.CadenceWeekly, models.CadenceMonthly}},
		"startDate": bson.M{"$lte": endOfDay(today)},
		"$or": []bson.M{
			{"endDate": bson.M{"$exists": false}},
			{"endDate": nil},
			{"endDate": bson.M{"$gte": today}},
		},
	}

	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var defs []models.RecurringTask
	if err := cursor.All(ctx, &defs); err != nil {
		return nil, fmt.Errorf("failed to decode recurring tasks: %v", err)
	}
	return defs, nil
}

// MongoInstanceStore persists generated task instances in the tasks
// collection.
type MongoInstanceStore struct {
	collection *mongo.Collection
}

func NewMongoInstanceStore(collection *mongo.Collection) *MongoInstanceStore {
	return &MongoInstanceStore{collection: collection}
}

// ExistsForDay reports whether an instance of the definition already exists
// with a due date inside the given calendar day.
func (s *MongoInstanceStore) ExistsForDay(ctx context.Context, definitionID primitive.ObjectID, day time.Time) (bool, error) {
	start := toMidnight(day)
	filter := bson.M{
		"sourceTaskId": definitionID,
		"dueDate":      bson.M{"$gte": start, "$lte": endOfDay(start)},
	}

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing instance: %v", err)
	}
	return count > 0, nil
}

func (s *MongoInstanceStore) Insert(ctx context.Context, task *models.Task) (primitive.ObjectID, error) {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}

	result, err := s.collection.InsertOne(ctx, task)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to insert task: %v", err)
	}
	return result.InsertedID.(primitive.ObjectID), nil
}

// MongoUserStore resolves users and maintains their task counters in the
// shared users collection.
type MongoUserStore struct {
	collection *mongo.Collection
}

func NewMongoUserStore(collection *mongo.Collection) *MongoUserStore {
	return &MongoUserStore{collection: collection}
}

// FindByIdentifier accepts a hex ObjectID, an email or a username.
func (s *MongoUserStore) FindByIdentifier(ctx context.Context, idOrEmail string) (*models.User, error) {
	var filter bson.M
	if objectID, err := primitive.ObjectIDFromHex(idOrEmail); err == nil {
		filter = bson.M{"_id": objectID}
	} else {
		filter = bson.M{"$or": []bson.M{{"email": idOrEmail}, {"username": idOrEmail}}}
	}

	var user models.User
	if err := s.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("user not found: %s", idOrEmail)
		}
		return nil, fmt.Errorf("failed to fetch user: %v", err)
	}
	return &user, nil
}

func (s *MongoUserStore) IncrementCounters(ctx context.Context, userID primitive.ObjectID, tasksAssigned, tasksNotStarted int) error {
	update := bson.M{"$inc": bson.M{
		"tasksAssigned":   tasksAssigned,
		"tasksNotStarted": tasksNotStarted,
	}}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to update user counters: %v", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user not found for counter update")
	}
	return nil
}
