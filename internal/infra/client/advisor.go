// Package client holds HTTP clients for downstream services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// AdvisorClient calls the LLM advice service.
type AdvisorClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewAdvisorClient creates a new AdvisorClient.
func NewAdvisorClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *AdvisorClient {
	return &AdvisorClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// Advise sends the aggregated financial context and returns generated
// advice. Callers degrade to an inline error message on failure; the
// advisor is never allowed to break a dashboard render.
func (c *AdvisorClient) Advise(ctx context.Context, req *domain.AdviceRequest) (*domain.AdviceResponse, error) {
	ctx, span := tracer.Start(ctx, "AdvisorClient.Advise")
	defer span.End()
	span.SetAttributes(attribute.String("advice.tier", string(req.Tier)))

	var adviceResp domain.AdviceResponse

	result, err := c.cb.Execute(func() (any, error) {
		var innerErr error
		innerErr = resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/advice", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("advisor API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&adviceResp)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &adviceResp, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "advisor", Err: err}
	}

	return result.(*domain.AdviceResponse), nil
}
