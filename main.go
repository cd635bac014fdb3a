package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"taskhub/microservices/tasks-service/handlers"
	"taskhub/microservices/tasks-service/logging"
	"taskhub/microservices/tasks-service/services"
	"taskhub/microservices/tasks-service/utils"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Role")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// buildDailySpec converts an HH:MM time string into a cron expression.
func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func main() {
	logging.InitLogger()

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Tasks Service...")
	err := godotenv.Load(".env")
	if err != nil {
		logging.Logger.Fatalf("Event ID: ENV_LOAD_ERROR, Description: Error loading .env file: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	mongoDBName := os.Getenv("MONGO_DB_NAME")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	db := client.Database(mongoDBName)
	tasksCollection := db.Collection("tasks")
	recurringCollection := db.Collection("recurring_tasks")
	usersCollection := db.Collection("users")

	httpClient := utils.NewHTTPClient()

	notificationsBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifications-cb",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' state changed from %s to %s", name, from.String(), to.String())
		},
	})

	var notifier services.Notifier
	if notificationsURL := os.Getenv("NOTIFICATIONS_SERVICE_URL"); notificationsURL != "" {
		notifier = services.NewNotificationClient(notificationsURL, httpClient, notificationsBreaker)
	} else {
		logging.Logger.Info("Event ID: NOTIFICATIONS_DISABLED, Description: NOTIFICATIONS_SERVICE_URL not set, assignment notifications disabled.")
	}

	definitionStore := services.NewMongoDefinitionStore(recurringCollection)
	instanceStore := services.NewMongoInstanceStore(tasksCollection)
	userStore := services.NewMongoUserStore(usersCollection)

	generator := services.NewGeneratorService(definitionStore, instanceStore, userStore, notifier)
	taskService := services.NewTaskService(tasksCollection, usersCollection)
	recurringService := services.NewRecurringTaskService(recurringCollection, usersCollection)

	taskHandler := handlers.NewTaskHandler(taskService, generator)
	recurringHandler := handlers.NewRecurringHandler(recurringService, generator)

	// Scheduled trigger for the daily pass, in addition to the lazy one on
	// task reads. Both go through the staleness gate, so whichever fires
	// first does the work.
	generationTime := os.Getenv("GENERATION_TIME")
	if generationTime == "" {
		generationTime = "00:05"
	}
	spec, err := buildDailySpec(generationTime)
	if err != nil {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: Invalid GENERATION_TIME: %v", err)
	}
	scheduler := cron.New()
	_, err = scheduler.AddFunc(spec, func() {
		if _, _, err := generator.EnsureGeneratedToday(context.Background()); err != nil {
			logging.Logger.Warnf("Event ID: GENERATION_PASS_FAILED, Description: Scheduled generation pass failed: %v", err)
		}
	})
	if err != nil {
		logging.Logger.Fatalf("Event ID: SCHEDULER_ERROR, Description: Failed to schedule generation job: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	logging.Logger.Infof("Event ID: SCHEDULER_STARTED, Description: Daily generation scheduled at %s.", generationTime)

	r := mux.NewRouter()

	r.HandleFunc("/api/tasks/all", taskHandler.GetAllTasks).Methods("GET")
	r.HandleFunc("/api/tasks/create", taskHandler.CreateTask).Methods("POST")
	r.HandleFunc("/api/tasks/assignee/{email}", taskHandler.GetTasksByAssignee).Methods("GET")
	r.HandleFunc("/api/tasks/{taskID}/complete", taskHandler.CompleteTask).Methods("POST")
	r.HandleFunc("/api/tasks/{taskID}", taskHandler.DeleteTask).Methods(http.MethodDelete)

	r.HandleFunc("/api/recurring/all", recurringHandler.GetAllRecurringTasks).Methods("GET")
	r.HandleFunc("/api/recurring/create", recurringHandler.CreateRecurringTask).Methods("POST")
	r.HandleFunc("/api/recurring/generate", recurringHandler.GenerateInstances).Methods("POST")
	r.HandleFunc("/api/recurring/ensure-generated", recurringHandler.EnsureGenerated).Methods("POST")
	r.HandleFunc("/api/recurring/{recurringID}/complete", recurringHandler.MarkRecurringTaskComplete).Methods("POST")
	r.HandleFunc("/api/recurring/{recurringID}", recurringHandler.DeleteRecurringTask).Methods(http.MethodDelete)

	corsRouter := enableCORS(r)

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: SERVER_PORT is not set in the environment variables.")
	}

	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, corsRouter); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}
