package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateMealLog inserts one logged meal with its pre-computed nutrients.
func (db *DB) CreateMealLog(ctx context.Context, m *MealLog) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO meal_logs (user_id, food_id, grams, meal_type,
		        calories, protein, carbs, fat, fiber, sugar, sodium)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, logged_at`,
		m.UserID, m.FoodID, m.Grams, m.MealType,
		m.Nutrients.Calories, m.Nutrients.Protein, m.Nutrients.Carbs, m.Nutrients.Fat,
		m.Nutrients.Fiber, m.Nutrients.Sugar, m.Nutrients.Sodium,
	).Scan(&m.ID, &m.LoggedAt)
	if err != nil {
		return fmt.Errorf("failed to create meal log: %w", err)
	}
	return nil
}

// ListMealLogs retrieves a user's meal logs for one day, newest first.
func (db *DB) ListMealLogs(ctx context.Context, userID uuid.UUID, day time.Time) ([]MealLog, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, food_id, grams, meal_type,
		        calories, protein, carbs, fat, fiber, sugar, sodium, logged_at
		 FROM meal_logs
		 WHERE user_id = $1 AND logged_at >= $2 AND logged_at < $3
		 ORDER BY logged_at DESC`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal logs: %w", err)
	}
	defer rows.Close()

	var logs []MealLog
	for rows.Next() {
		var m MealLog
		if err := rows.Scan(&m.ID, &m.UserID, &m.FoodID, &m.Grams, &m.MealType,
			&m.Nutrients.Calories, &m.Nutrients.Protein, &m.Nutrients.Carbs, &m.Nutrients.Fat,
			&m.Nutrients.Fiber, &m.Nutrients.Sugar, &m.Nutrients.Sodium, &m.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal log: %w", err)
		}
		logs = append(logs, m)
	}
	return logs, rows.Err()
}
