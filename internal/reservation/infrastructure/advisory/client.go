// Package advisory is the HTTP adapter for the external AI insight service.
// The service is advisory in the literal sense: any failure here is degraded
// to defaults by the application layer, never surfaced to stats consumers.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
)

const requestTimeout = 3 * time.Second

type Client struct {
	log      *slog.Logger
	endpoint string
	http     *http.Client
}

func NewClient(log *slog.Logger, endpoint string) *Client {
	return &Client{
		log:      log,
		endpoint: endpoint,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

type statsPayload struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
	Reserved  int    `json:"reserved"`
	Sold      int    `json:"sold"`
}

type insightPayload struct {
	SKU            string `json:"sku"`
	Recommendation string `json:"recommendation"`
	RiskLevel      string `json:"riskLevel"`
}

// Insights posts the stats snapshot and decodes per-SKU recommendations.
func (c *Client) Insights(ctx context.Context, stats []domain.SKUStats) ([]domain.Insight, error) {
	payload := make([]statsPayload, 0, len(stats))
	for _, st := range stats {
		payload = append(payload, statsPayload{SKU: st.SKU, Available: st.Available, Reserved: st.Reserved, Sold: st.Sold})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisory returned %d", resp.StatusCode)
	}

	var decoded []insightPayload
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode advisory response: %w", err)
	}

	insights := make([]domain.Insight, 0, len(decoded))
	for _, in := range decoded {
		insights = append(insights, domain.Insight{
			SKU:            in.SKU,
			Recommendation: in.Recommendation,
			RiskLevel:      riskLevel(in.RiskLevel),
		})
	}
	return insights, nil
}

// riskLevel normalizes the wire value; anything unrecognized is low.
func riskLevel(s string) domain.RiskLevel {
	switch domain.RiskLevel(s) {
	case domain.RiskMedium:
		return domain.RiskMedium
	case domain.RiskHigh:
		return domain.RiskHigh
	default:
		return domain.RiskLow
	}
}
