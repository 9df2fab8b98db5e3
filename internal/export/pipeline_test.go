package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
	"github.com/bh-srinivasan/nutri-tracker/internal/nutrition"
)

type fakeExportStore struct {
	foods    []db.FoodExportRow
	servings []db.ServingExportRow
	queryErr error

	completed struct {
		called    bool
		format    string
		location  string
		size      int64
		total     int
		retention time.Duration
	}
}

func (f *fakeExportStore) ForEachFood(_ context.Context, _ db.FoodFilter, fn func(*db.FoodExportRow) error) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	for i := range f.foods {
		if err := fn(&f.foods[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeExportStore) ForEachServing(_ context.Context, _ db.ServingFilter, fn func(*db.ServingExportRow) error) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	for i := range f.servings {
		if err := fn(&f.servings[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeExportStore) CompleteExport(_ context.Context, _ uuid.UUID, format, location string, size int64, total int, retention time.Duration) error {
	f.completed.called = true
	f.completed.format = format
	f.completed.location = location
	f.completed.size = size
	f.completed.total = total
	f.completed.retention = retention
	return nil
}

func testFoodRow(name string) db.FoodExportRow {
	return db.FoodExportRow{Food: db.Food{
		ID: 1, Name: name, Brand: "Generic", Category: "Grains", BaseUnit: "g",
		Per100g:   nutrition.Vector{Calories: 389, Protein: 16.9},
		CreatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExporter_CSVFood(t *testing.T) {
	store := &fakeExportStore{foods: []db.FoodExportRow{
		testFoodRow("Oats"),
		testFoodRow("=HYPERLINK(evil)"),
	}}
	exp := NewExporter(store, t.TempDir(), 24*time.Hour, quietLogger())

	require.NoError(t, exp.RunFoods(context.Background(), uuid.New(), FormatCSV, db.FoodFilter{}))
	require.True(t, store.completed.called)
	assert.Equal(t, FormatCSV, store.completed.format)
	assert.Equal(t, 2, store.completed.total)
	assert.Equal(t, 24*time.Hour, store.completed.retention)
	assert.True(t, strings.HasPrefix(filepath.Base(store.completed.location), "food_export_"))

	f, err := os.Open(store.completed.location)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows
	assert.Equal(t, foodCSVHeader, records[0])
	assert.Equal(t, "Oats", records[1][1])
	assert.Equal(t, "'=HYPERLINK(evil)", records[2][1])

	info, err := os.Stat(store.completed.location)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), store.completed.size)
}

func TestExporter_JSONFood(t *testing.T) {
	store := &fakeExportStore{foods: []db.FoodExportRow{testFoodRow("Oats")}}
	exp := NewExporter(store, t.TempDir(), time.Hour, quietLogger())

	require.NoError(t, exp.RunFoods(context.Background(), uuid.New(), FormatJSON, db.FoodFilter{}))

	data, err := os.ReadFile(store.completed.location)
	require.NoError(t, err)

	var doc struct {
		Records    []map[string]any `json:"records"`
		ExportInfo struct {
			Type         string `json:"type"`
			TotalRecords int    `json:"total_records"`
		} `json:"export_info"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "Oats", doc.Records[0]["name"])
	assert.Equal(t, "foods", doc.ExportInfo.Type)
	assert.Equal(t, 1, doc.ExportInfo.TotalRecords)
}

func TestExporter_JSONEmptyResult(t *testing.T) {
	store := &fakeExportStore{}
	exp := NewExporter(store, t.TempDir(), time.Hour, quietLogger())

	require.NoError(t, exp.RunFoods(context.Background(), uuid.New(), FormatJSON, db.FoodFilter{}))
	assert.Equal(t, 0, store.completed.total)

	data, err := os.ReadFile(store.completed.location)
	require.NoError(t, err)
	assert.True(t, json.Valid(data), "empty export must still be valid JSON: %s", data)
}

func TestExporter_CSVServings(t *testing.T) {
	store := &fakeExportStore{servings: []db.ServingExportRow{{
		Serving: db.Serving{
			ID: 7, FoodID: 1, ServingName: "1 cup", Unit: "cup", GramsPerUnit: 81,
			CreatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		},
		FoodName: "Oats", FoodBrand: "Generic", FoodCategory: "Grains", FoodVerified: true,
	}}}
	exp := NewExporter(store, t.TempDir(), time.Hour, quietLogger())

	require.NoError(t, exp.RunServings(context.Background(), uuid.New(), FormatCSV, db.ServingFilter{}))
	assert.True(t, strings.HasPrefix(filepath.Base(store.completed.location), "serving_export_"))

	f, err := os.Open(store.completed.location)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, servingCSVHeader, records[0])
	assert.Equal(t, []string{"7", "1", "Oats", "Generic", "Grains", "true", "1 cup", "cup", "81", "2026-02-01T12:00:00Z"}, records[1])
}

func TestExporter_QueryFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	store := &fakeExportStore{queryErr: fmt.Errorf("connection reset")}
	exp := NewExporter(store, dir, time.Hour, quietLogger())

	err := exp.RunFoods(context.Background(), uuid.New(), FormatCSV, db.FoodFilter{})
	require.Error(t, err)
	assert.False(t, store.completed.called)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed export must not leave a partial file")
}
