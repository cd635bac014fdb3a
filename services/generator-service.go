package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskhub/microservices/tasks-service/logging"
	"taskhub/microservices/tasks-service/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefinitionStore provides the recurring definitions that are candidates for
// instance generation on a given day.
type DefinitionStore interface {
	FindDueCandidates(ctx context.Context, today time.Time) ([]models.RecurringTask, error)
}

// InstanceStore persists generated task instances.
type InstanceStore interface {
	ExistsForDay(ctx context.Context, definitionID primitive.ObjectID, day time.Time) (bool, error)
	Insert(ctx context.Context, task *models.Task) (primitive.ObjectID, error)
}

// UserStore resolves assignees and keeps their aggregate task counters.
type UserStore interface {
	FindByIdentifier(ctx context.Context, idOrEmail string) (*models.User, error)
	IncrementCounters(ctx context.Context, userID primitive.ObjectID, tasksAssigned, tasksNotStarted int) error
}

// Notifier delivers a best-effort assignment notification.
type Notifier interface {
	TaskAssigned(userID, username, taskName string) error
}

const (
	reasonNotScheduled  = "Not scheduled today"
	reasonEndDatePassed = "End date passed"
	reasonAlreadyExists = "Already exists"
	reasonCreated       = "Created successfully"
)

// GeneratorService turns recurring task definitions into concrete dated
// instances. A pass runs at most once per calendar day through the staleness
// gate; duplicate prevention relies on the per-day existence check, never on
// the in-memory clock.
type GeneratorService struct {
	definitions DefinitionStore
	instances   InstanceStore
	users       UserStore
	notifier    Notifier

	mu                 sync.Mutex
	lastGenerationDate *time.Time
	now                func() time.Time
}

// NewGeneratorService creates a generator. The notifier may be nil, in which
// case assignment notifications are skipped.
func NewGeneratorService(definitions DefinitionStore, instances InstanceStore, users UserStore, notifier Notifier) *GeneratorService {
	return &GeneratorService{
		definitions: definitions,
		instances:   instances,
		users:       users,
		notifier:    notifier,
		now:         time.Now,
	}
}

// toMidnight normalizes a timestamp to 00:00 UTC of its calendar day. All
// due-date identity and cadence arithmetic happens on these values.
func toMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// endOfDay is the inclusive upper bound of the calendar day starting at the
// given midnight.
func endOfDay(midnight time.Time) time.Time {
	return midnight.Add(24*time.Hour - time.Millisecond)
}

// isDueOn decides whether a definition is due on the given midnight-normalized
// day. Daily skips Sundays. Weekly anchors to the start date, not to a fixed
// weekday. Monthly matches the start day-of-month, so an anchor of 29-31
// never fires in shorter months.
func isDueOn(def models.RecurringTask, day time.Time) bool {
	start := toMidnight(def.StartDate)
	if day.Before(start) {
		return false
	}

	switch def.Cadence {
	case models.CadenceDaily:
		return day.Weekday() != time.Sunday
	case models.CadenceWeekly:
		days := int(day.Sub(start) / (24 * time.Hour))
		return days%7 == 0
	case models.CadenceMonthly:
		return day.Day() == def.StartDate.Day()
	}
	return false
}

// RunGenerationPass processes every candidate definition for the given day
// and reports per-definition outcomes. Definitions fail independently; only
// an error from the candidate query aborts the pass.
func (s *GeneratorService) RunGenerationPass(ctx context.Context, today time.Time) (*models.GenerationSummary, error) {
	day := toMidnight(today)

	defs, err := s.definitions.FindDueCandidates(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recurring task definitions: %v", err)
	}

	summary := &models.GenerationSummary{Details: []models.GenerationDetail{}}
	for _, def := range defs {
		s.processDefinition(ctx, def, day, summary)
	}

	logging.Logger.Infof("Event ID: GENERATION_PASS_COMPLETED, Description: Generation pass for %s: %d created, %d skipped, %d errors",
		day.Format("2006-01-02"), summary.Created, summary.Skipped, summary.Errors)
	return summary, nil
}

func (s *GeneratorService) processDefinition(ctx context.Context, def models.RecurringTask, day time.Time, summary *models.GenerationSummary) {
	if def.EndDate != nil && day.After(toMidnight(*def.EndDate)) {
		summary.Skipped++
		summary.Details = append(summary.Details, models.GenerationDetail{Task: def.Name, Reason: reasonEndDatePassed})
		return
	}

	if !isDueOn(def, day) {
		summary.Skipped++
		summary.Details = append(summary.Details, models.GenerationDetail{Task: def.Name, Reason: reasonNotScheduled})
		return
	}

	exists, err := s.instances.ExistsForDay(ctx, def.ID, day)
	if err != nil {
		s.recordError(def, err, summary)
		return
	}
	if exists {
		summary.Skipped++
		summary.Details = append(summary.Details, models.GenerationDetail{Task: def.Name, Reason: reasonAlreadyExists})
		return
	}

	if err := s.materialize(ctx, def, day); err != nil {
		s.recordError(def, err, summary)
		return
	}

	summary.Created++
	summary.Details = append(summary.Details, models.GenerationDetail{
		Task:    def.Name,
		Reason:  reasonCreated,
		DueDate: day.Format("2006-01-02"),
	})
}

func (s *GeneratorService) recordError(def models.RecurringTask, err error, summary *models.GenerationSummary) {
	logging.Logger.Warnf("Event ID: GENERATION_DEFINITION_FAILED, Description: Definition '%s' failed: %v", def.Name, err)
	summary.Errors++
	summary.Details = append(summary.Details, models.GenerationDetail{
		Task:   def.Name,
		Reason: fmt.Sprintf("Error: %v", err),
	})
}

// materialize creates the instance for a due, non-duplicate definition and
// performs the counter and notification side effects. Field values are
// snapshots of the definition; later definition edits do not touch instances
// already generated.
func (s *GeneratorService) materialize(ctx context.Context, def models.RecurringTask, day time.Time) error {
	priority := def.Priority
	if !priority.IsValid() {
		priority = models.PriorityMedium
	}

	// Prefer the live user record for display fields; fall back to the raw
	// identifier stored on the definition.
	assignedEmail := def.AssignedTo
	assignedName := def.AssignedTo
	var assignee *models.User
	user, err := s.users.FindByIdentifier(ctx, def.AssignedToID.Hex())
	if err != nil {
		logging.Logger.Warnf("Event ID: ASSIGNEE_LOOKUP_FAILED, Description: Assignee for definition '%s' could not be resolved: %v", def.Name, err)
	} else if user != nil {
		assignee = user
		assignedEmail = user.Email
		assignedName = user.DisplayName()
	}

	sourceID := def.ID
	task := &models.Task{
		Name:            def.Name,
		Description:     def.Description,
		AssignedToEmail: assignedEmail,
		AssignedToName:  assignedName,
		Priority:        priority,
		Cadence:         string(def.Cadence),
		DueDate:         day,
		SourceTaskID:    &sourceID,
		CommunityID:     def.CommunityID,
		Department:      def.Department,
		CreatedAt:       s.now(),
	}

	if _, err := s.instances.Insert(ctx, task); err != nil {
		return fmt.Errorf("failed to insert task instance: %v", err)
	}

	if assignee != nil {
		if err := s.users.IncrementCounters(ctx, assignee.ID, 1, 1); err != nil {
			logging.Logger.Warnf("Event ID: COUNTER_UPDATE_FAILED, Description: Failed to update counters for user %s: %v", assignee.ID.Hex(), err)
		}
		if s.notifier != nil {
			if err := s.notifier.TaskAssigned(assignee.ID.Hex(), assignee.Username, def.Name); err != nil {
				logging.Logger.Warnf("Event ID: NOTIFICATION_FAILED, Description: Failed to notify user %s about task '%s': %v", assignee.Username, def.Name, err)
			}
		}
	}

	return nil
}

// EnsureGeneratedToday runs the generation pass at most once per calendar
// day. Callers on the request path use this so the first request after a day
// rollover (or a restart) pays for the pass and everyone else gets a cheap
// no-op. The whole method is serialized so concurrent first requests cannot
// double-run the pass.
//
// The returned bool reports whether today's pass had already run, in which
// case the summary is nil and no store access happened.
func (s *GeneratorService) EnsureGeneratedToday(ctx context.Context) (*models.GenerationSummary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := toMidnight(s.now())
	if s.lastGenerationDate != nil && !s.lastGenerationDate.Before(today) {
		return nil, true, nil
	}

	summary, err := s.RunGenerationPass(ctx, today)
	if err != nil {
		// Clock stays unstamped so the next call retries the pass.
		return nil, false, err
	}

	s.lastGenerationDate = &today
	return summary, false, nil
}
