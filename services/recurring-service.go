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

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
)

// RecurringTaskService owns CRUD over recurring task definitions. The
// generator never mutates definitions; every change goes through here.
type RecurringTaskService struct {
	recurringCollection *mongo.Collection
	usersCollection     *mongo.Collection
}

func NewRecurringTaskService(recurringCollection, usersCollection *mongo.Collection) *RecurringTaskService {
	return &RecurringTaskService{
		recurringCollection: recurringCollection,
		usersCollection:     usersCollection,
	}
}

func (s *RecurringTaskService) findUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	filter := bson.M{"$or": []bson.M{{"email": identifier}, {"username": identifier}}}

	var user models.User
	if err := s.usersCollection.FindOne(ctx, filter).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("user not found: %s", identifier)
		}
		return nil, fmt.Errorf("failed to fetch user: %v", err)
	}
	return &user, nil
}

// CreateRecurringTask validates the definition and resolves the assigner and
// assignee identifiers (email or username) to user IDs. Creation fails if
// either identifier cannot be resolved.
func (s *RecurringTaskService) CreateRecurringTask(ctx context.Context, def models.RecurringTask, assignedBy, assignedTo string) (*models.RecurringTask, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("task name is required")
	}
	if len(def.Name) > maxNameLength {
		return nil, fmt.Errorf("task name exceeds %d characters", maxNameLength)
	}
	if len(def.Description) > maxDescriptionLength {
		return nil, fmt.Errorf("task description exceeds %d characters", maxDescriptionLength)
	}
	if !def.Cadence.IsValid() {
		return nil, fmt.Errorf("invalid cadence: %s", def.Cadence)
	}
	if def.StartDate.IsZero() {
		return nil, fmt.Errorf("start date is required")
	}
	if def.EndDate != nil && def.EndDate.Before(def.StartDate) {
		return nil, fmt.Errorf("end date must not be before start date")
	}
	if !def.Priority.IsValid() {
		def.Priority = models.PriorityMedium
	}

	assigner, err := s.findUserByIdentifier(ctx, assignedBy)
	if err != nil {
		return nil, fmt.Errorf("assigner could not be resolved: %v", err)
	}
	assignee, err := s.findUserByIdentifier(ctx, assignedTo)
	if err != nil {
		return nil, fmt.Errorf("assignee could not be resolved: %v", err)
	}

	def.ID = primitive.NewObjectID()
	def.AssignedByID = assigner.ID
	def.AssignedToID = assignee.ID
	def.AssignedTo = assignedTo
	def.CompletedDate = nil
	def.CreatedAt = time.Now()

	result, err := s.recurringCollection.InsertOne(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("failed to create recurring task: %v", err)
	}

	def.ID = result.InsertedID.(primitive.ObjectID)
	return &def, nil
}

func (s *RecurringTaskService) GetAllRecurringTasks(ctx context.Context) ([]models.RecurringTask, error) {
	cursor, err := s.recurringCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve recurring tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var defs []models.RecurringTask
	if err := cursor.All(ctx, &defs); err != nil {
		return nil, fmt.Errorf("failed to decode recurring tasks: %v", err)
	}
	return defs, nil
}

// MarkRecurringTaskComplete finishes the definition itself. The end date is
// stamped as well when unset, which is what actually stops future instance
// generation.
func (s *RecurringTaskService) MarkRecurringTaskComplete(ctx context.Context, recurringID primitive.ObjectID) (*models.RecurringTask, error) {
	var def models.RecurringTask
	if err := s.recurringCollection.FindOne(ctx, bson.M{"_id": recurringID}).Decode(&def); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("recurring task not found")
		}
		return nil, fmt.Errorf("failed to fetch recurring task: %v", err)
	}

	now := time.Now()
	set := bson.M{"completedDate": now}
	if def.EndDate == nil {
		set["endDate"] = now
	}

	if _, err := s.recurringCollection.UpdateOne(ctx, bson.M{"_id": recurringID}, bson.M{"$set": set}); err != nil {
		return nil, fmt.Errorf("failed to mark recurring task complete: %v", err)
	}

	def.CompletedDate = &now
	if def.EndDate == nil {
		def.EndDate = &now
	}
	return &def, nil
}

func (s *RecurringTaskService) DeleteRecurringTask(ctx context.Context, recurringID primitive.ObjectID) error {
	result, err := s.recurringCollection.DeleteOne(ctx, bson.M{"_id": recurringID})
	if err != nil {
		return fmt.Errorf("failed to delete recurring task: %v", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("recurring task not found")
	}
	return nil
}
