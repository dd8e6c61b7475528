package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fTr0ut/shelvesai/internal/model"
)

// HTTPRecommendationSource pulls ranked discovery items from an external
// recommendation service.
type HTTPRecommendationSource struct {
	client *resty.Client
}

func NewHTTPRecommendationSource(baseURL string) *HTTPRecommendationSource {
	return &HTTPRecommendationSource{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(5 * time.Second),
	}
}

func (s *HTTPRecommendationSource) Recommend(ctx context.Context, viewerID string, limit int) ([]model.RecommendedItem, error) {
	var out struct {
		Items []model.RecommendedItem `json:"items"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("viewer", viewerID).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get("/recommendations")
	if err != nil {
		return nil, fmt.Errorf("fetch recommendations: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch recommendations: status %d", resp.StatusCode())
	}
	return out.Items, nil
}
