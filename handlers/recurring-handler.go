package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"taskhub/microservices/tasks-service/models"
	"taskhub/microservices/tasks-service/services"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RecurringHandler struct {
	service   *services.RecurringTaskService
	generator *services.GeneratorService
}

func NewRecurringHandler(service *services.RecurringTaskService, generator *services.GeneratorService) *RecurringHandler {
	return &RecurringHandler{service: service, generator: generator}
}

func (h *RecurringHandler) CreateRecurringTask(w http.ResponseWriter, r *http.Request) {
	if err := checkRole(r, []string{"manager"}); err != nil {
		http.Error(w, "Access forbidden: insufficient permissions", http.StatusForbidden)
		return
	}

	var request struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Cadence     models.Cadence  `json:"cadence"`
		StartDate   string          `json:"startDate"`
		EndDate     string          `json:"endDate"`
		Priority    models.Priority `json:"priority"`
		AssignedBy  string          `json:"assignedBy"`
		AssignedTo  string          `json:"assignedTo"`
		CreatedBy   string          `json:"createdBy"`
		CommunityID string          `json:"communityId"`
		Department  string          `json:"department"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	startDate, err := time.Parse("2006-01-02", request.StartDate)
	if err != nil {
		http.Error(w, "Invalid startDate, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var endDate *time.Time
	if request.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", request.EndDate)
		if err != nil {
			http.Error(w, "Invalid endDate, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		endDate = &parsed
	}

	def := models.RecurringTask{
		Name:        request.Name,
		Description: request.Description,
		Cadence:     request.Cadence,
		StartDate:   startDate,
		EndDate:     endDate,
		Priority:    request.Priority,
		CreatedBy:   request.CreatedBy,
		CommunityID: request.CommunityID,
		Department:  request.Department,
	}

	created, err := h.service.CreateRecurringTask(r.Context(), def, request.AssignedBy, request.AssignedTo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *RecurringHandler) GetAllRecurringTasks(w http.ResponseWriter, r *http.Request) {
	if err := checkRole(r, []string{"manager", "member"}); err != nil {
		http.Error(w, "Access forbidden: insufficient permissions", http.StatusForbidden)
		return
	}

	defs, err := h.service.GetAllRecurringTasks(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(defs)
}

func (h *RecurringHandler) MarkRecurringTaskComplete(w http.ResponseWriter, r *http.Request) {
	if err := checkRole(r, []string{"manager"}); err != nil {
		http.Error(w, "Access forbidden: insufficient permissions", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	recurringID, err := primitive.ObjectIDFromHex(vars["recurringID"])
	if err != nil {
		http.Error(w, "Invalid recurring task ID format", http.StatusBadRequest)
		return
	}

	def, err := h.service.MarkRecurringTaskComplete(r.Context(), recurringID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(def)
}

func (h *RecurringHandler) DeleteRecurringTask(w http.ResponseWriter, r *http.Request) {
	if err := checkRole(r, []string{"manager"}); err != nil {
		http.Error(w, "Access forbidden: insufficient permissions", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	recurringID, err := primitive.ObjectIDFromHex(vars["recurringID"])
	if err != nil {
		http.Error(w, "Invalid recurring task ID format", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteRecurringTask(r.Context(), recurringID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "Recurring task deleted successfully"}`))
}

// GenerateInstances forces a generation pass, bypassing the staleness gate.
// An optional ?date=YYYY-MM-DD parameter runs the pass for another day,
// which is mainly useful for operational replays.
func (h *RecurringHandler) GenerateInstances(w http.ResponseWriter, r *http.Request) {
	if err := checkRole(r, []string{"manager"}); err != nil {
		http.Error(w, "Access forbidden: insufficient permissions", http.StatusForbidden)
		return
	}

	today := time.Now()
	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		parsed, err := time.Parse("2006-01-02", dateParam)
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		today = parsed
	}

	summary, err := h.generator.RunGenerationPass(r.Context(), today)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// EnsureGenerated exposes the staleness-gated entry point directly.
func (h *RecurringHandler) EnsureGenerated(w http.ResponseWriter, r *http.Request) {
	if err := checkRole(r, []string{"manager", "member"}); err != nil {
		http.Error(w, "Access forbidden: insufficient permissions", http.StatusForbidden)
		return
	}

	summary, alreadyGenerated, err := h.generator.EnsureGeneratedToday(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if alreadyGenerated {
		json.NewEncoder(w).Encode(map[string]bool{"alreadyGenerated": true})
		return
	}
	json.NewEncoder(w).Encode(summary)
}
