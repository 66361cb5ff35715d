package repository

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"wisefido-census/internal/domain"
)

// wardDirectoryResponse envelope returned by the facility service
// ({code, type, message, result}, code 2000 on success).
type wardDirectoryResponse struct {
	Code    int            `json:"code"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Result  []*domain.Ward `json:"result"`
}

const wardDirectorySuccess = 2000

// HTTPWardsRepository reads wards from the facility service over HTTP.
// The directory is kept for cacheTTL; concurrent refreshes share one request.
type HTTPWardsRepository struct {
	client   *resty.Client
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	wards     []domain.Ward
	fetchedAt time.Time
}

// NewHTTPWardsRepository baseURL points at the facility service; the directory is read from GET {baseURL}/wards.
// cacheTTL <= 0 reads the directory on every call.
func NewHTTPWardsRepository(baseURL string, timeout time.Duration, retries int, cacheTTL time.Duration, logger *zap.Logger) *HTTPWardsRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPWardsRepository{client: client, logger: logger, cacheTTL: cacheTTL, now: time.Now}
}

var _ WardsRepository = (*HTTPWardsRepository)(nil)

// directory returns the cached ward list, refreshing it once cacheTTL has passed.
func (r *HTTPWardsRepository) directory(ctx context.Context) ([]domain.Ward, error) {
	if r.cacheTTL > 0 {
		r.mu.RLock()
		wards, fetchedAt := r.wards, r.fetchedAt
		r.mu.RUnlock()
		if wards != nil && r.now().Sub(fetchedAt) < r.cacheTTL {
			return wards, nil
		}
	}

	v, err, _ := r.group.Do("wards", func() (interface{}, error) {
		wards, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.wards, r.fetchedAt = wards, r.now()
		r.mu.Unlock()
		return wards, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Ward), nil
}

func (r *HTTPWardsRepository) fetch(ctx context.Context) ([]domain.Ward, error) {
	var body wardDirectoryResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/wards")
	if err != nil {
		r.logger.Error("Ward directory call failed", zap.Error(err))
		return nil, fmt.Errorf("failed to call ward directory: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ward directory returned http %d", resp.StatusCode())
	}
	if body.Code != wardDirectorySuccess {
		r.logger.Error("Ward directory returned error",
			zap.Int("code", body.Code),
			zap.String("message", body.Message),
		)
		return nil, fmt.Errorf("ward directory error: %s (code: %d)", body.Message, body.Code)
	}

	wards := make([]domain.Ward, 0, len(body.Result))
	for _, w := range body.Result {
		if w != nil {
			wards = append(wards, *w)
		}
	}
	sort.Slice(wards, func(i, j int) bool { return wards[i].WardID < wards[j].WardID })
	return wards, nil
}

func (r *HTTPWardsRepository) GetWard(ctx context.Context, wardID string) (*domain.Ward, error) {
	wards, err := r.directory(ctx)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(wards), func(i int) bool { return wards[i].WardID >= wardID })
	if i < len(wards) && wards[i].WardID == wardID {
		w := wards[i]
		return &w, nil
	}
	return nil, fmt.Errorf("ward %s: %w", wardID, domain.ErrNotFound)
}

func (r *HTTPWardsRepository) ListWards(ctx context.Context, activeOnly bool) ([]*domain.Ward, error) {
	wards, err := r.directory(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Ward, 0, len(wards))
	for _, w := range wards {
		if activeOnly && !w.Active {
			continue
		}
		w := w
		out = append(out, &w)
	}
	return out, nil
}
