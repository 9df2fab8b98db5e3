package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

type fakeTracker struct {
	progress  [][3]int
	items     []db.JobItem
	finalized *db.JobStatus
	finalMsg  *string
	itemErr   error
}

func (f *fakeTracker) RecordProgress(_ context.Context, _ uuid.UUID, processed, success, failed int) error {
	f.progress = append(f.progress, [3]int{processed, success, failed})
	return nil
}

func (f *fakeTracker) Finalize(_ context.Context, _ uuid.UUID, status db.JobStatus, msg *string) error {
	f.finalized = &status
	f.finalMsg = msg
	return nil
}

func (f *fakeTracker) CreateJobItem(_ context.Context, item *db.JobItem) error {
	if f.itemErr != nil {
		return f.itemErr
	}
	f.items = append(f.items, *item)
	return nil
}

type fakeCatalog struct {
	foods       map[int64]*db.Food
	servings    map[int64]*db.Serving
	nextID      int64
	lookupErr   error
	createErr   error
	defaultSets [][2]int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		foods:    make(map[int64]*db.Food),
		servings: make(map[int64]*db.Serving),
	}
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (f *fakeCatalog) CreateFood(_ context.Context, food *db.Food) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.foods {
		if fold(existing.Name) == fold(food.Name) && fold(existing.Brand) == fold(food.Brand) {
			return db.ErrDuplicate
		}
	}
	f.nextID++
	food.ID = f.nextID
	f.foods[food.ID] = food
	return nil
}

func (f *fakeCatalog) GetFoodByID(_ context.Context, id int64) (*db.Food, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.foods[id], nil
}

func (f *fakeCatalog) GetFoodByName(_ context.Context, name string) (*db.Food, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, food := range f.foods {
		if fold(food.Name) == fold(name) {
			return food, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) FindFoodByNameBrand(_ context.Context, name, brand string) (*db.Food, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, food := range f.foods {
		if fold(food.Name) == fold(name) && fold(food.Brand) == fold(brand) {
			return food, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) CreateServing(_ context.Context, s *db.Serving) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.servings {
		if existing.FoodID == s.FoodID &&
			fold(existing.ServingName) == fold(s.ServingName) &&
			fold(existing.Unit) == fold(s.Unit) {
			return db.ErrDuplicate
		}
	}
	f.nextID++
	s.ID = f.nextID
	f.servings[s.ID] = s
	return nil
}

func (f *fakeCatalog) FindServing(_ context.Context, foodID int64, servingName, unit string) (*db.Serving, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, s := range f.servings {
		if s.FoodID == foodID && fold(s.ServingName) == fold(servingName) && fold(s.Unit) == fold(unit) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) SetDefaultServing(_ context.Context, foodID, servingID int64) error {
	f.defaultSets = append(f.defaultSets, [2]int64{foodID, servingID})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func foodRow(name, brand, calories string) Row {
	return Row{
		"name": name, "brand": brand, "category": "Grains", "base_unit": "g",
		"calories_per_100g": calories, "protein_per_100g": "10",
		"carbs_per_100g": "50", "fat_per_100g": "5",
	}
}

func TestPipeline_FoodIngestion(t *testing.T) {
	catalog := newFakeCatalog()
	tracker := &fakeTracker{}
	owner := uuid.New()
	pipeline := NewPipeline(tracker, discardLogger())
	proc := NewFoodProcessor(catalog, owner)

	// seed an existing food so the second row is a duplicate
	require.NoError(t, catalog.CreateFood(context.Background(), &db.Food{Name: "Oats", Brand: "Quaker"}))

	rows := []Row{
		foodRow("Brown Rice", "Generic", "370"),
		foodRow("oats", "QUAKER", "389"), // duplicate, case-insensitive
		foodRow("", "NoName", "100"),     // invalid: missing name
	}

	err := pipeline.Run(context.Background(), uuid.New(), rows, proc)
	require.NoError(t, err)

	require.NotNil(t, tracker.finalized)
	assert.Equal(t, db.JobCompleted, *tracker.finalized)

	require.Len(t, tracker.items, 3)
	assert.Equal(t, db.ItemSuccess, tracker.items[0].Status)
	assert.Equal(t, db.ItemSkipped, tracker.items[1].Status)
	assert.Equal(t, db.ItemFailed, tracker.items[2].Status)
	assert.Equal(t, 2, tracker.items[1].RowNumber)
	assert.NotNil(t, tracker.items[1].EntityID)

	// final flush carries the full tally; skipped rows count as success
	last := tracker.progress[len(tracker.progress)-1]
	assert.Equal(t, [3]int{3, 2, 1}, last)

	created, err := catalog.GetFoodByName(context.Background(), "Brown Rice")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, created.IsVerified)
	assert.Equal(t, owner, *created.CreatedBy)
	assert.Equal(t, 370.0, created.Per100g.Calories)
}

func TestPipeline_CounterInvariant(t *testing.T) {
	catalog := newFakeCatalog()
	tracker := &fakeTracker{}
	pipeline := NewPipeline(tracker, discardLogger())
	proc := NewFoodProcessor(catalog, uuid.New())

	var rows []Row
	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("Food %d", i)
		if i%3 == 0 {
			name = "" // invalid
		}
		rows = append(rows, foodRow(name, "B", "100"))
	}

	require.NoError(t, pipeline.Run(context.Background(), uuid.New(), rows, proc))

	for _, p := range tracker.progress {
		assert.Equal(t, p[0], p[1]+p[2], "success+failed must equal processed at every flush")
	}
	assert.Equal(t, 25, tracker.progress[len(tracker.progress)-1][0])
}

func TestPipeline_AllRowsFailStillCompletes(t *testing.T) {
	tracker := &fakeTracker{}
	pipeline := NewPipeline(tracker, discardLogger())
	proc := NewFoodProcessor(newFakeCatalog(), uuid.New())

	rows := []Row{
		foodRow("", "B", "100"),
		foodRow("Too Hot", "B", "5000"), // calories out of range
	}

	require.NoError(t, pipeline.Run(context.Background(), uuid.New(), rows, proc))

	require.NotNil(t, tracker.finalized)
	assert.Equal(t, db.JobCompleted, *tracker.finalized)
	assert.Equal(t, [3]int{2, 0, 2}, tracker.progress[len(tracker.progress)-1])
}

func TestPipeline_FlushEveryTenRows(t *testing.T) {
	tracker := &fakeTracker{}
	pipeline := NewPipeline(tracker, discardLogger())
	proc := NewFoodProcessor(newFakeCatalog(), uuid.New())

	var rows []Row
	for i := 0; i < 23; i++ {
		rows = append(rows, foodRow(fmt.Sprintf("Food %d", i), "B", "100"))
	}

	require.NoError(t, pipeline.Run(context.Background(), uuid.New(), rows, proc))

	var processedAt []int
	for _, p := range tracker.progress {
		processedAt = append(processedAt, p[0])
	}
	assert.Equal(t, []int{10, 20, 23}, processedAt)
}

func TestPipeline_StoreErrorAbortsJob(t *testing.T) {
	tracker := &fakeTracker{itemErr: fmt.Errorf("connection reset")}
	pipeline := NewPipeline(tracker, discardLogger())
	proc := NewFoodProcessor(newFakeCatalog(), uuid.New())

	err := pipeline.Run(context.Background(), uuid.New(), []Row{foodRow("Oats", "B", "100")}, proc)
	require.Error(t, err)
	assert.Nil(t, tracker.finalized, "pipeline must not finalize when the store is unusable")
}

func TestPipeline_LookupErrorAbortsJob(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.lookupErr = fmt.Errorf("connection refused")
	tracker := &fakeTracker{}
	pipeline := NewPipeline(tracker, discardLogger())
	proc := NewFoodProcessor(catalog, uuid.New())

	err := pipeline.Run(context.Background(), uuid.New(), []Row{foodRow("Oats", "B", "100")}, proc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}
