package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bh-srinivasan/nutri-tracker/internal/db"
	"github.com/bh-srinivasan/nutri-tracker/internal/nutrition"
	"github.com/bh-srinivasan/nutri-tracker/internal/server/middleware"
)

func (s *Server) foodFromPath(w http.ResponseWriter, r *http.Request) (*db.Food, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid food id")
		return nil, false
	}
	food, err := s.db.GetFoodByID(r.Context(), id)
	if err != nil {
		s.log.Error("failed to load food", "food_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not load food")
		return nil, false
	}
	if food == nil {
		s.errorResponse(w, http.StatusNotFound, "food not found")
		return nil, false
	}
	return food, true
}

// quantityFromQuery builds a nutrition quantity from ?grams= or from
// ?serving_id= plus optional ?quantity= (default 1). Grams wins when
// both are supplied.
func (s *Server) quantityFromQuery(w http.ResponseWriter, r *http.Request, food *db.Food) (nutrition.Quantity, bool) {
	q := r.URL.Query()

	if gramsStr := q.Get("grams"); gramsStr != "" {
		grams, err := strconv.ParseFloat(gramsStr, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "grams must be a number")
			return nutrition.Quantity{}, false
		}
		return nutrition.Grams(grams), true
	}

	servingIDStr := q.Get("serving_id")
	if servingIDStr == "" {
		s.errorResponse(w, http.StatusBadRequest, "grams or serving_id is required")
		return nutrition.Quantity{}, false
	}
	servingID, err := strconv.ParseInt(servingIDStr, 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid serving_id")
		return nutrition.Quantity{}, false
	}

	serving, err := s.db.GetServingByID(r.Context(), servingID)
	if err != nil {
		s.log.Error("failed to load serving", "serving_id", servingID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not load serving")
		return nutrition.Quantity{}, false
	}
	if serving == nil || serving.FoodID != food.ID {
		s.errorResponse(w, http.StatusNotFound, "serving not found for this food")
		return nutrition.Quantity{}, false
	}

	count := 1.0
	if countStr := q.Get("quantity"); countStr != "" {
		count, err = strconv.ParseFloat(countStr, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "quantity must be a number")
			return nutrition.Quantity{}, false
		}
	}
	return nutrition.Quantity{Serving: serving.Conversion(), Quantity: &count}, true
}

// handleFoodNutrition computes the nutrient panel for a quantity of a
// food, expressed either in grams or in servings.
func (s *Server) handleFoodNutrition(w http.ResponseWriter, r *http.Request) {
	food, ok := s.foodFromPath(w, r)
	if !ok {
		return
	}
	quantity, ok := s.quantityFromQuery(w, r, food)
	if !ok {
		return
	}

	normalized, err := nutrition.Normalize(quantity)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"food_id":        food.ID,
		"name":           food.Name,
		"source_unit":    normalized.SourceUnit,
		"source_value":   normalized.SourceValue,
		"resolved_grams": normalized.ResolvedGrams,
		"nutrients":      food.Per100g.Scale(normalized.ResolvedGrams / 100),
	})
}

// handleListFoodServings lists a food's servings.
func (s *Server) handleListFoodServings(w http.ResponseWriter, r *http.Request) {
	food, ok := s.foodFromPath(w, r)
	if !ok {
		return
	}
	servings, err := s.db.ListServingsByFood(r.Context(), food.ID)
	if err != nil {
		s.log.Error("failed to list servings", "food_id", food.ID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not list servings")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"servings": servings})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.db.ListCategories(r.Context())
	if err != nil {
		s.log.Error("failed to list categories", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not list categories")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.db.ListServingUnits(r.Context())
	if err != nil {
		s.log.Error("failed to list units", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not list units")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"units": units})
}

// createMealRequest logs a consumed quantity of a food.
type createMealRequest struct {
	FoodID    int64    `json:"food_id" validate:"required"`
	MealType  string   `json:"meal_type" validate:"required,oneof=breakfast lunch dinner snack"`
	Grams     *float64 `json:"grams,omitempty"`
	ServingID *int64   `json:"serving_id,omitempty"`
	Quantity  *float64 `json:"quantity,omitempty"`
}

// handleCreateMeal logs a meal, resolving the quantity to grams and
// persisting the scaled nutrient panel.
func (s *Server) handleCreateMeal(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createMealRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := requestValidator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "food_id and a valid meal_type are required")
		return
	}

	food, err := s.db.GetFoodByID(r.Context(), req.FoodID)
	if err != nil {
		s.log.Error("failed to load food", "food_id", req.FoodID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not load food")
		return
	}
	if food == nil {
		s.errorResponse(w, http.StatusNotFound, "food not found")
		return
	}

	quantity := nutrition.Quantity{Grams: req.Grams, Quantity: req.Quantity}
	if req.ServingID != nil {
		serving, err := s.db.GetServingByID(r.Context(), *req.ServingID)
		if err != nil {
			s.log.Error("failed to load serving", "serving_id", *req.ServingID, "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "could not load serving")
			return
		}
		if serving == nil || serving.FoodID != food.ID {
			s.errorResponse(w, http.StatusNotFound, "serving not found for this food")
			return
		}
		quantity.Serving = serving.Conversion()
	}

	normalized, err := nutrition.Normalize(quantity)
	if err != nil {
		if errors.Is(err, nutrition.ErrInvalidQuantity) || errors.Is(err, nutrition.ErrIncompleteServingSpec) {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "could not resolve quantity")
		return
	}

	meal := &db.MealLog{
		UserID:    owner,
		FoodID:    food.ID,
		Grams:     normalized.ResolvedGrams,
		MealType:  req.MealType,
		Nutrients: food.Per100g.Scale(normalized.ResolvedGrams / 100),
	}
	if err := s.db.CreateMealLog(r.Context(), meal); err != nil {
		s.log.Error("failed to create meal log", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not log meal")
		return
	}

	s.jsonResponse(w, http.StatusCreated, meal)
}

// handleListMeals lists the caller's meals for one day (default today)
// with a nutrient total.
func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	day := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		day, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	meals, err := s.db.ListMealLogs(r.Context(), owner, day)
	if err != nil {
		s.log.Error("failed to list meals", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not list meals")
		return
	}

	var total nutrition.Vector
	for _, m := range meals {
		total = total.Add(m.Nutrients)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"meals":  meals,
		"totals": total,
	})
}
