package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/luftujha/luftujha-core/internal/infrastructure/config"
)

// defaultRequestTimeout bounds REST calls when the config leaves the
// timeout unset.
const defaultRequestTimeout = 10 * time.Second

// Client wraps the controller's REST API.
//
// Thread Safety: safe for concurrent use; resty clients are.
type Client struct {
	http   *resty.Client
	prefix string
}

// NewClient creates a REST client from the upstream configuration.
func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.Token).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   http,
		prefix: cfg.EntityPrefix,
	}
}

// ListValveEntities fetches all entity states and returns those whose
// ID carries the configured prefix. Used for the startup bulk fetch.
func (c *Client) ListValveEntities(ctx context.Context) ([]EntityState, error) {
	var all []EntityState

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&all).
		Get("/api/states")
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: GET /api/states: status %d", ErrRequestFailed, resp.StatusCode())
	}

	filtered := make([]EntityState, 0, len(all))
	for _, entity := range all {
		if strings.HasPrefix(entity.EntityID, c.prefix) {
			filtered = append(filtered, entity)
		}
	}
	return filtered, nil
}

// setValueRequest is the service call body for number entities.
type setValueRequest struct {
	EntityID string  `json:"entity_id"`
	Value    float64 `json:"value"`
}

// SetNumericValue asks the controller to set a number entity.
//
// Returns once the controller acknowledges the service call. The
// resulting state change arrives asynchronously on the event stream;
// this method does not wait for it.
func (c *Client) SetNumericValue(ctx context.Context, entityID string, value float64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(setValueRequest{EntityID: entityID, Value: value}).
		Post("/api/services/number/set_value")
	if err != nil {
		return fmt.Errorf("set value %s=%v: %w", entityID, value, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: set value %s=%v: status %d", ErrRequestFailed, entityID, value, resp.StatusCode())
	}
	return nil
}
