package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
)

var (
	reserveOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_reserve_total",
		Help: "Reserve requests by outcome.",
	}, []string{"outcome"})
	confirmOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_confirm_total",
		Help: "Confirm requests by outcome.",
	}, []string{"outcome"})
	cancelTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_cancel_total",
		Help: "Cancel requests.",
	})
)

func init() {
	prometheus.MustRegister(reserveOutcomes, confirmOutcomes, cancelTotal)
}

// StatsCache is an optional read-side cache for the stats payload.
type StatsCache interface {
	Get(ctx context.Context) ([]byte, bool)
	Set(ctx context.Context, body []byte)
}

type Handler struct {
	log    *slog.Logger
	svc    *application.Service
	cache  StatsCache // may be nil
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, svc *application.Service, cache StatsCache) *Handler {
	return &Handler{
		log:    log,
		svc:    svc,
		cache:  cache,
		tracer: otel.Tracer("reservation-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/inventory/reserve", h.reserve)
	r.Get("/inventory/availability/{sku}", h.availability)
	r.Get("/inventory/stats", h.stats)
	r.Post("/checkout/confirm", h.confirm)
	r.Post("/checkout/cancel", h.cancel)
	r.Get("/products", h.listProducts)
	r.Get("/products/{sku}", h.getProduct)
	r.Get("/reservations/{id}", h.getReservation)

	return r
}

type reserveReq struct {
	SKU      string `json:"sku"`
	UserID   string `json:"user_id"`
	Quantity int    `json:"quantity"`
}

type reservationResp struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	UserID    string    `json:"user_id"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toReservationResp(r domain.Reservation) reservationResp {
	return reservationResp{
		ID:        r.ID,
		SKU:       r.SKU,
		UserID:    r.UserID,
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "Reserve")
	defer span.End()

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		reserveOutcomes.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "Idempotency-Key header is required")
		return
	}

	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reserveOutcomes.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	span.SetAttributes(
		attribute.String("reservation.sku", req.SKU),
		attribute.Int("reservation.quantity", req.Quantity),
	)

	res, err := h.svc.Reserve(ctx, application.ReserveRequest{
		SKU:            req.SKU,
		UserID:         req.UserID,
		Quantity:       req.Quantity,
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeReserveError(w, err)
		return
	}

	reserveOutcomes.WithLabelValues("reserved").Inc()
	writeJSON(w, http.StatusCreated, toReservationResp(res))
}

func (h *Handler) writeReserveError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientStockError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		reserveOutcomes.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownSKU):
		reserveOutcomes.WithLabelValues("unknown_sku").Inc()
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &insufficient):
		reserveOutcomes.WithLabelValues("insufficient_stock").Inc()
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     insufficient.Error(),
			"available": insufficient.Available,
		})
	default:
		reserveOutcomes.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type checkoutReq struct {
	ReservationID string `json:"reservation_id"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "Confirm")
	defer span.End()

	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReservationID == "" {
		confirmOutcomes.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "reservation_id is required")
		return
	}
	span.SetAttributes(attribute.String("reservation.id", req.ReservationID))

	res, err := h.svc.Confirm(ctx, req.ReservationID)
	if err != nil {
		h.writeConfirmError(w, req.ReservationID, err)
		return
	}

	confirmOutcomes.WithLabelValues("confirmed").Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"reservation_id": res.ID,
		"status":         string(res.Status),
	})
}

func (h *Handler) writeConfirmError(w http.ResponseWriter, id string, err error) {
	var invalid *domain.InvalidStateError
	var expired *domain.ExpiredError
	var depleted *domain.StockDepletedError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		confirmOutcomes.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		confirmOutcomes.WithLabelValues("invalid_state").Inc()
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  invalid.Error(),
			"status": string(invalid.Status),
		})
	case errors.As(err, &expired):
		confirmOutcomes.WithLabelValues("expired").Inc()
		writeError(w, http.StatusGone, err.Error())
	case errors.As(err, &depleted):
		confirmOutcomes.WithLabelValues("stock_depleted").Inc()
		h.log.Error("invariant breach surfaced on confirm", "reservation_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		confirmOutcomes.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Cancel")
	defer span.End()

	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReservationID == "" {
		writeError(w, http.StatusBadRequest, "reservation_id is required")
		return
	}

	// Cancel is idempotent and tolerant by contract: missing or already
	// terminal reservations still answer 200. The response echoes the
	// reservation's actual state, which stays CONFIRMED or EXPIRED when the
	// cancel was a no-op; a missing id gets no status at all.
	h.svc.Cancel(ctx, req.ReservationID)
	cancelTotal.Inc()
	resp := map[string]string{"reservation_id": req.ReservationID}
	if res, err := h.svc.Get(req.ReservationID); err == nil {
		resp["status"] = string(res.Status)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	available, err := h.svc.Availability(sku)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sku": sku, "available": available})
}

type statsResp struct {
	SKU            string `json:"sku"`
	Available      int    `json:"available"`
	Reserved       int    `json:"reserved"`
	Sold           int    `json:"sold"`
	Recommendation string `json:"recommendation,omitempty"`
	RiskLevel      string `json:"risk_level,omitempty"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Stats")
	defer span.End()

	withInsights := r.URL.Query().Get("insights") == "true"
	if withInsights {
		entries := h.svc.StatsWithInsights(ctx)
		out := make([]statsResp, 0, len(entries))
		for _, e := range entries {
			out = append(out, statsResp{
				SKU:            e.SKU,
				Available:      e.Available,
				Reserved:       e.Reserved,
				Sold:           e.Sold,
				Recommendation: e.Recommendation,
				RiskLevel:      string(e.RiskLevel),
			})
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	if h.cache != nil {
		if body, ok := h.cache.Get(ctx); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
			return
		}
	}

	stats := h.svc.Stats()
	out := make([]statsResp, 0, len(stats))
	for _, st := range stats {
		out = append(out, statsResp{SKU: st.SKU, Available: st.Available, Reserved: st.Reserved, Sold: st.Sold})
	}
	body, err := json.Marshal(out)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.cache != nil {
		h.cache.Set(ctx, body)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

type productResp struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
}

func toProductResp(p domain.Product) productResp {
	return productResp{SKU: p.SKU, Name: p.Name, Description: p.Description, PriceCents: p.PriceCents, Stock: p.Stock}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products := h.svc.Products()
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResp(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Product(chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProductResp(p))
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toReservationResp(res))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
