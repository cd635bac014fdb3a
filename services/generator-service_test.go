package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskhub/microservices/tasks-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeDefinitionStore struct {
	defs       []models.RecurringTask
	err        error
	queryCalls int
}

func (f *fakeDefinitionStore) FindDueCandidates(ctx context.Context, today time.Time) ([]models.RecurringTask, error) {
	f.queryCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.defs, nil
}

type fakeInstanceStore struct {
	tasks       []models.Task
	existsCalls int
	insertCalls int
	failInsert  map[string]error
}

func (f *fakeInstanceStore) ExistsForDay(ctx context.Context, definitionID primitive.ObjectID, day time.Time) (bool, error) {
	f.existsCalls++
	start := toMidnight(day)
	end := endOfDay(start)
	for _, t := range f.tasks {
		if t.SourceTaskID != nil && *t.SourceTaskID == definitionID && !t.DueDate.Before(start) && !t.DueDate.After(end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInstanceStore) Insert(ctx context.Context, task *models.Task) (primitive.ObjectID, error) {
	f.insertCalls++
	if err, ok := f.failInsert[task.Name]; ok {
		return primitive.NilObjectID, err
	}
	task.ID = primitive.NewObjectID()
	f.tasks = append(f.tasks, *task)
	return task.ID, nil
}

type fakeUserStore struct {
	users          map[string]models.User
	lookupErr      error
	assignedIncs   int
	notStartedIncs int
}

func (f *fakeUserStore) FindByIdentifier(ctx context.Context, idOrEmail string) (*models.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	user, ok := f.users[idOrEmail]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", idOrEmail)
	}
	return &user, nil
}

func (f *fakeUserStore) IncrementCounters(ctx context.Context, userID primitive.ObjectID, tasksAssigned, tasksNotStarted int) error {
	f.assignedIncs += tasksAssigned
	f.notStartedIncs += tasksNotStarted
	return nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newDefinition(name string, cadence models.Cadence, start time.Time) models.RecurringTask {
	return models.RecurringTask{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Description:  "desc for " + name,
		Cadence:      cadence,
		StartDate:    start,
		Priority:     models.PriorityMedium,
		AssignedToID: primitive.NewObjectID(),
		AssignedTo:   name + "@taskhub.io",
	}
}

func newTestGenerator(defs *fakeDefinitionStore, instances *fakeInstanceStore, users *fakeUserStore) *GeneratorService {
	if users.users == nil {
		users.users = map[string]models.User{}
	}
	return NewGeneratorService(defs, instances, users, nil)
}

func TestRunGenerationPassIsIdempotent(t *testing.T) {
	def := newDefinition("standup notes", models.CadenceDaily, date(2024, time.January, 1))
	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}
	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})

	// Tuesday.
	today := date(2024, time.January, 2)

	first, err := gen.RunGenerationPass(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	require.Len(t, instances.tasks, 1)

	second, err := gen.RunGenerationPass(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	require.Len(t, second.Details, 1)
	assert.Equal(t, "Already exists", second.Details[0].Reason)
	assert.Len(t, instances.tasks, 1)
}

func TestDailyCadenceSkipsSunday(t *testing.T) {
	def := newDefinition("inbox sweep", models.CadenceDaily, date(2024, time.January, 1))
	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}

	sunday := date(2024, time.January, 7)
	saturday := date(2024, time.January, 6)

	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})

	summary, err := gen.RunGenerationPass(context.Background(), sunday)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, "Not scheduled today", summary.Details[0].Reason)

	summary, err = gen.RunGenerationPass(context.Background(), saturday)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
}

func TestWeeklyCadenceAnchorsToStartDate(t *testing.T) {
	// Monday anchor; the weekly cycle follows the start date, not a fixed
	// weekday.
	start := date(2024, time.January, 1)
	def := newDefinition("weekly report", models.CadenceWeekly, start)

	cases := []struct {
		day time.Time
		due bool
	}{
		{date(2024, time.January, 1), true},
		{date(2024, time.January, 2), false},
		{date(2024, time.January, 7), false},
		{date(2024, time.January, 8), true},
		{date(2024, time.January, 14), false},
		{date(2024, time.January, 15), true},
		{date(2024, time.February, 5), true},
		{date(2023, time.December, 25), false}, // before the start date
	}

	for _, tc := range cases {
		assert.Equal(t, tc.due, isDueOn(def, tc.day), "day %s", tc.day.Format("2006-01-02"))
	}
}

func TestMonthlyCadenceSkipsShortMonths(t *testing.T) {
	// A day-31 anchor never fires in months without a day 31.
	def := newDefinition("month-end closing", models.CadenceMonthly, date(2024, time.January, 31))
	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}
	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})

	// Leap-year February still has no day 31.
	for day := 1; day <= 29; day++ {
		summary, err := gen.RunGenerationPass(context.Background(), date(2024, time.February, day))
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Created)
		assert.Equal(t, 0, summary.Errors)
		require.Len(t, summary.Details, 1)
		assert.Equal(t, "Not scheduled today", summary.Details[0].Reason)
	}

	summary, err := gen.RunGenerationPass(context.Background(), date(2024, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, instances.tasks, 1)
	assert.Equal(t, date(2024, time.March, 31), instances.tasks[0].DueDate)
}

func TestEndDateBoundaryIsInclusive(t *testing.T) {
	end := date(2024, time.June, 1) // a Saturday
	def := newDefinition("sprint cleanup", models.CadenceDaily, date(2024, time.May, 1))
	def.EndDate = &end

	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}
	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})

	summary, err := gen.RunGenerationPass(context.Background(), date(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	summary, err = gen.RunGenerationPass(context.Background(), date(2024, time.June, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, "End date passed", summary.Details[0].Reason)
}

func TestErrorIsolationAcrossDefinitions(t *testing.T) {
	start := date(2024, time.January, 1)
	first := newDefinition("first", models.CadenceDaily, start)
	second := newDefinition("second", models.CadenceDaily, start)
	third := newDefinition("third", models.CadenceDaily, start)

	defs := &fakeDefinitionStore{defs: []models.RecurringTask{first, second, third}}
	instances := &fakeInstanceStore{failInsert: map[string]error{"second": fmt.Errorf("write conflict")}}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})

	summary, err := gen.RunGenerationPass(context.Background(), date(2024, time.January, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Errors)
	require.Len(t, summary.Details, 3)
	assert.Equal(t, "Created successfully", summary.Details[0].Reason)
	assert.Equal(t, "Error: failed to insert task instance: write conflict", summary.Details[1].Reason)
	assert.Equal(t, "Created successfully", summary.Details[2].Reason)
	assert.Len(t, instances.tasks, 2)
}

func TestEnsureGeneratedTodayRunsOncePerDay(t *testing.T) {
	def := newDefinition("daily digest", models.CadenceDaily, date(2024, time.January, 1))
	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}
	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})

	current := date(2024, time.January, 2)
	gen.now = func() time.Time { return current }

	summary, already, err := gen.EnsureGeneratedToday(context.Background())
	require.NoError(t, err)
	assert.False(t, already)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Created)

	// Same day again: no store access at all.
	queryCalls, existsCalls, insertCalls := defs.queryCalls, instances.existsCalls, instances.insertCalls
	summary, already, err = gen.EnsureGeneratedToday(context.Background())
	require.NoError(t, err)
	assert.True(t, already)
	assert.Nil(t, summary)
	assert.Equal(t, queryCalls, defs.queryCalls)
	assert.Equal(t, existsCalls, instances.existsCalls)
	assert.Equal(t, insertCalls, instances.insertCalls)

	// Day rollover: the gate goes stale and a fresh pass runs.
	current = date(2024, time.January, 3)
	summary, already, err = gen.EnsureGeneratedToday(context.Background())
	require.NoError(t, err)
	assert.False(t, already)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Created)
	assert.Len(t, instances.tasks, 2)
}

func TestEnsureGeneratedTodayRetriesAfterFailure(t *testing.T) {
	def := newDefinition("daily digest", models.CadenceDaily, date(2024, time.January, 1))
	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}, err: fmt.Errorf("connection reset")}
	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})
	gen.now = func() time.Time { return date(2024, time.January, 2) }

	_, already, err := gen.EnsureGeneratedToday(context.Background())
	require.Error(t, err)
	assert.False(t, already)

	// The clock was not stamped, so the next call retries instead of
	// silently skipping the day.
	defs.err = nil
	summary, already, err := gen.EnsureGeneratedToday(context.Background())
	require.NoError(t, err)
	assert.False(t, already)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Created)
}

func TestForcedPassDoesNotStampTheClock(t *testing.T) {
	def := newDefinition("daily digest", models.CadenceDaily, date(2024, time.January, 1))
	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}
	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})
	gen.now = func() time.Time { return date(2024, time.January, 2) }

	_, err := gen.RunGenerationPass(context.Background(), date(2024, time.January, 2))
	require.NoError(t, err)

	// The gated entry point still runs its own pass; the duplicate guard
	// makes it a no-op.
	summary, already, err := gen.EnsureGeneratedToday(context.Background())
	require.NoError(t, err)
	assert.False(t, already)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, instances.tasks, 1)
}

func TestMaterializeSnapshotsDefinitionFields(t *testing.T) {
	def := newDefinition("ops review", models.CadenceDaily, date(2024, time.January, 1))
	def.Priority = models.PriorityHigh
	def.CommunityID = "community-7"
	def.Department = "operations"

	assigneeID := def.AssignedToID
	users := &fakeUserStore{users: map[string]models.User{
		assigneeID.Hex(): {ID: assigneeID, Name: "Mila", LastName: "Petrov", Username: "mila", Email: "mila@taskhub.io"},
	}}
	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}
	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, users)

	day := date(2024, time.January, 2)
	summary, err := gen.RunGenerationPass(context.Background(), day)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)
	assert.Equal(t, "2024-01-02", summary.Details[0].DueDate)

	require.Len(t, instances.tasks, 1)
	task := instances.tasks[0]
	assert.Equal(t, "ops review", task.Name)
	assert.Equal(t, models.PriorityHigh, task.Priority)
	assert.Equal(t, "daily", task.Cadence)
	assert.Equal(t, "mila@taskhub.io", task.AssignedToEmail)
	assert.Equal(t, "Mila Petrov", task.AssignedToName)
	assert.Equal(t, "community-7", task.CommunityID)
	assert.Equal(t, "operations", task.Department)
	assert.Equal(t, day, task.DueDate)
	require.NotNil(t, task.SourceTaskID)
	assert.Equal(t, def.ID, *task.SourceTaskID)

	assert.Equal(t, 1, users.assignedIncs)
	assert.Equal(t, 1, users.notStartedIncs)
}

func TestMaterializeDefaultsAndFallbacks(t *testing.T) {
	def := newDefinition("no priority", models.CadenceDaily, date(2024, time.January, 1))
	def.Priority = ""
	def.AssignedTo = "ghost@taskhub.io"

	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}
	instances := &fakeInstanceStore{}
	users := &fakeUserStore{lookupErr: fmt.Errorf("user service unavailable")}
	gen := newTestGenerator(defs, instances, users)

	summary, err := gen.RunGenerationPass(context.Background(), date(2024, time.January, 2))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)

	task := instances.tasks[0]
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, "ghost@taskhub.io", task.AssignedToEmail)
	assert.Equal(t, "ghost@taskhub.io", task.AssignedToName)

	// Unresolved assignee means no counter updates either.
	assert.Equal(t, 0, users.assignedIncs)
	assert.Equal(t, 0, users.notStartedIncs)
}

func TestDefinitionBeforeStartDateIsNotDue(t *testing.T) {
	def := newDefinition("future work", models.CadenceDaily, date(2024, time.June, 1))
	defs := &fakeDefinitionStore{defs: []models.RecurringTask{def}}
	instances := &fakeInstanceStore{}
	gen := newTestGenerator(defs, instances, &fakeUserStore{})

	summary, err := gen.RunGenerationPass(context.Background(), date(2024, time.May, 31))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, instances.tasks)
}
