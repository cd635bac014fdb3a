package services

import (
	"context"
	"fmt"
	"time"

	"taskhub/microservices/tasks-service/logging"
	"taskhub/microservices/tasks-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TaskService owns CRUD over task instances, both generated ones and one-off
// tasks created directly by users.
type TaskService struct {
	tasksCollection *mongo.Collection
	usersCollection *mongo.Collection
}

func NewTaskService(tasksCollection, usersCollection *mongo.Collection) *TaskService {
	return &TaskService{
		tasksCollection: tasksCollection,
		usersCollection: usersCollection,
	}
}

// CreateTask creates a one-off task instance. It has no source definition;
// the generator never touches it.
func (s *TaskService) CreateTask(ctx context.Context, task models.Task, assignedTo string) (*models.Task, error) {
	if task.Name == "" {
		return nil, fmt.Errorf("task name is required")
	}
	if len(task.Name) > maxNameLength {
		return nil, fmt.Errorf("task name exceeds %d characters", maxNameLength)
	}
	if len(task.Description) > maxDescriptionLength {
		return nil, fmt.Errorf("task description exceeds %d characters", maxDescriptionLength)
	}
	if task.DueDate.IsZero() {
		return nil, fmt.Errorf("due date is required")
	}
	if !task.Priority.IsValid() {
		task.Priority = models.PriorityMedium
	}

	var user models.User
	filter := bson.M{"$or": []bson.M{{"email": assignedTo}, {"username": assignedTo}}}
	if err := s.usersCollection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, fmt.Errorf("assignee could not be resolved: %s", assignedTo)
	}

	task.ID = primitive.NewObjectID()
	task.AssignedToEmail = user.Email
	task.AssignedToName = user.DisplayName()
	task.DueDate = toMidnight(task.DueDate)
	task.SourceTaskID = nil
	task.CompletedDate = nil
	task.CreatedAt = time.Now()

	result, err := s.tasksCollection.InsertOne(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %v", err)
	}
	task.ID = result.InsertedID.(primitive.ObjectID)

	update := bson.M{"$inc": bson.M{"tasksAssigned": 1, "tasksNotStarted": 1}}
	if _, err := s.usersCollection.UpdateOne(ctx, bson.M{"_id": user.ID}, update); err != nil {
		logging.Logger.Warnf("Event ID: COUNTER_UPDATE_FAILED, Description: Failed to update counters for user %s: %v", user.ID.Hex(), err)
	}

	return &task, nil
}

func (s *TaskService) GetAllTasks(ctx context.Context) ([]models.Task, error) {
	cursor, err := s.tasksCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTasksByAssignee(ctx context.Context, email string) ([]models.Task, error) {
	cursor, err := s.tasksCollection.Find(ctx, bson.M{"assignedToEmail": email})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks for %s: %v", email, err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, nil
}

// CompleteTask stamps the completion date on an instance and moves the
// assignee's counters from not-started to completed. The counter update is
// best effort.
func (s *TaskService) CompleteTask(ctx context.Context, taskID primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	if err := s.tasksCollection.FindOne(ctx, bson.M{"_id": taskID}).Decode(&task); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("task not found")
		}
		return nil, fmt.Errorf("failed to fetch task: %v", err)
	}
	if task.CompletedDate != nil {
		return nil, fmt.Errorf("task is already completed")
	}

	now := time.Now()
	update := bson.M{"$set": bson.M{"completedDate": now}}
	if _, err := s.tasksCollection.UpdateOne(ctx, bson.M{"_id": taskID}, update); err != nil {
		return nil, fmt.Errorf("failed to complete task: %v", err)
	}
	task.CompletedDate = &now

	counterUpdate := bson.M{"$inc": bson.M{"tasksNotStarted": -1, "tasksCompleted": 1}}
	result, err := s.usersCollection.UpdateOne(ctx, bson.M{"email": task.AssignedToEmail}, counterUpdate)
	if err != nil || result.MatchedCount == 0 {
		logging.Logger.Warnf("Event ID: COUNTER_UPDATE_FAILED, Description: Failed to update counters for %s: %v", task.AssignedToEmail, err)
	}

	return &task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, taskID primitive.ObjectID) error {
	result, err := s.tasksCollection.DeleteOne(ctx, bson.M{"_id": taskID})
	if err != nil {
		return fmt.Errorf("failed to delete task: %v", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("task not found")
	}
	return nil
}
