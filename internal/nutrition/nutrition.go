// Package nutrition computes nutrient amounts for food quantities.
// Nutrient panels are stored per 100 grams; every quantity, however
// expressed, is resolved to grams before scaling, so equivalent
// quantities always yield identical nutrient vectors.
package nutrition

import "errors"

var (
	// ErrInvalidQuantity means a gram amount, conversion factor or
	// serving count was negative or otherwise unusable.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrIncompleteServingSpec means a serving-based quantity was
	// missing either the conversion or the count.
	ErrIncompleteServingSpec = errors.New("incomplete serving specification")
)

// Vector is a nutrient panel. Values are amounts, not percentages;
// sodium is in milligrams, everything else in grams or kcal.
type Vector struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugar    float64 `json:"sugar"`
	Sodium   float64 `json:"sodium"`
}

// Scale multiplies every nutrient by factor.
func (v Vector) Scale(factor float64) Vector {
	return Vector{
		Calories: v.Calories * factor,
		Protein:  v.Protein * factor,
		Carbs:    v.Carbs * factor,
		Fat:      v.Fat * factor,
		Fiber:    v.Fiber * factor,
		Sugar:    v.Sugar * factor,
		Sodium:   v.Sodium * factor,
	}
}

// Add returns the nutrient-wise sum of two panels.
func (v Vector) Add(o Vector) Vector {
	return Vector{
		Calories: v.Calories + o.Calories,
		Protein:  v.Protein + o.Protein,
		Carbs:    v.Carbs + o.Carbs,
		Fat:      v.Fat + o.Fat,
		Fiber:    v.Fiber + o.Fiber,
		Sugar:    v.Sugar + o.Sugar,
		Sodium:   v.Sodium + o.Sodium,
	}
}

// ServingConversion converts one named serving unit to grams.
type ServingConversion struct {
	GramsPerUnit float64
}

// Quantity expresses how much of a food was consumed. Grams takes
// precedence when both forms are present; otherwise Serving and
// Quantity must both be set.
type Quantity struct {
	Grams    *float64
	Serving  *ServingConversion
	Quantity *float64 // number of servings
}

// Grams builds a gram-based quantity.
func Grams(g float64) Quantity {
	return Quantity{Grams: &g}
}

// Servings builds a serving-based quantity.
func Servings(gramsPerUnit, count float64) Quantity {
	return Quantity{
		Serving:  &ServingConversion{GramsPerUnit: gramsPerUnit},
		Quantity: &count,
	}
}

// NormalizedQuantity is a quantity resolved to grams, with the source
// expression retained for display.
type NormalizedQuantity struct {
	SourceUnit    string  // "g" or "serving"
	SourceValue   float64 // grams, or serving count
	ResolvedGrams float64
}

// Normalize resolves a quantity to grams. Zero is a valid amount;
// anything negative is not.
func Normalize(q Quantity) (*NormalizedQuantity, error) {
	if q.Grams != nil {
		if *q.Grams < 0 {
			return nil, ErrInvalidQuantity
		}
		return &NormalizedQuantity{
			SourceUnit:    "g",
			SourceValue:   *q.Grams,
			ResolvedGrams: *q.Grams,
		}, nil
	}

	if q.Serving == nil || q.Quantity == nil {
		return nil, ErrIncompleteServingSpec
	}
	if q.Serving.GramsPerUnit <= 0 || *q.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return &NormalizedQuantity{
		SourceUnit:    "serving",
		SourceValue:   *q.Quantity,
		ResolvedGrams: q.Serving.GramsPerUnit * *q.Quantity,
	}, nil
}

// Compute scales a per-100g panel to the given quantity.
func Compute(per100g Vector, q Quantity) (Vector, error) {
	n, err := Normalize(q)
	if err != nil {
		return Vector{}, err
	}
	return per100g.Scale(n.ResolvedGrams / 100), nil
}
