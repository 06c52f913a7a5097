// Package recipes provides the recipe lookup collaborator: given a recipe
// id it returns the ordered step identifiers used to pre-populate a cooking
// session. Recipe content itself lives in the recipe service.
package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// RecipeLookup resolves a recipe id to its ordered step identifiers.
type RecipeLookup interface {
	StepIDs(ctx context.Context, recipeID string) ([]string, error)
}

// HTTPLookup queries the recipe service over HTTP.
type HTTPLookup struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLookup creates a lookup client against the recipe service base URL.
func NewHTTPLookup(baseURL string) *HTTPLookup {
	return &HTTPLookup{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type recipeStepsResponse struct {
	RecipeID string   `json:"recipe_id"`
	StepIDs  []string `json:"step_ids"`
}

// StepIDs fetches the ordered step ids for a recipe. An unknown recipe
// yields an empty list, not an error.
func (l *HTTPLookup) StepIDs(ctx context.Context, recipeID string) ([]string, error) {
	url := fmt.Sprintf("%s/api/recipes/%s/steps", l.baseURL, recipeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build recipe request")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call recipe service")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("recipe service returned status %d", resp.StatusCode)
	}

	var body recipeStepsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to decode recipe response")
	}

	return body.StepIDs, nil
}

// StaticLookup serves step ids from a fixed map, for development and tests.
type StaticLookup struct {
	Recipes map[string][]string
}

// NewStaticLookup creates a lookup over a fixed recipe map.
func NewStaticLookup(recipes map[string][]string) *StaticLookup {
	return &StaticLookup{Recipes: recipes}
}

// StepIDs returns the configured step ids for the recipe.
func (l *StaticLookup) StepIDs(_ context.Context, recipeID string) ([]string, error) {
	return l.Recipes[recipeID], nil
}
