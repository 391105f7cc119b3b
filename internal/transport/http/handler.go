package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow/inventory-engine/internal/engine"
	invapp "github.com/orderflow/inventory-engine/internal/inventory/application"
	orderapp "github.com/orderflow/inventory-engine/internal/order/application"
	orderdomain "github.com/orderflow/inventory-engine/internal/order/domain"
)

type Handler struct {
	log      *slog.Logger
	engine   *engine.Engine
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, eng *engine.Engine) *Handler {
	return &Handler{
		log:      log,
		engine:   eng,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("inventory-engine-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.createProduct)
		r.Get("/", h.listProducts)
		r.Get("/low-stock", h.listLowStock)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Post("/{id}/stock", h.adjustStock)
		r.Delete("/{id}", h.deactivateProduct)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.updateOrderStatus)
		r.Delete("/{id}", h.cancelOrder)
	})

	return r
}

// decode unmarshals and validates the request body. Validation failures
// stop here; the engine only ever sees well-formed input.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond(w, http.StatusBadRequest, errorResp{Error: "invalid request body"})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		respond(w, http.StatusUnprocessableEntity, errorResp{Error: "validation failed", Details: err.Error()})
		return false
	}
	return true
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond(w, http.StatusBadRequest, errorResp{Error: "invalid product id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var req createProductReq
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.engine.CreateProduct(ctx, invapp.CreateProductInput{
		SKU:               req.SKU,
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateProduct")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req updateProductReq
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.engine.UpdateProduct(ctx, id, invapp.UpdateProductInput{
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdjustStock")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req adjustStockReq
	if !h.decode(w, r, &req) {
		return
	}
	ch, err := h.engine.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toStockChangeResp(ch))
}

func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeactivateProduct")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeactivateProduct(ctx, id); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.engine.GetProduct(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	products, err := h.engine.GetProducts(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, products)
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListLowStockProducts")
	defer span.End()

	products, err := h.engine.GetLowStockProducts(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, products)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]orderapp.LineInput, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, orderapp.LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	o, err := h.engine.CreateOrder(ctx, orderapp.CreateOrderInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         items,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, toOrderResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.engine.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req updateStatusReq
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.engine.UpdateOrderStatus(ctx, chi.URLParam(r, "id"), orderdomain.Status(req.Status))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	o, err := h.engine.CancelOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"cancelled": true, "order": toOrderResp(o)})
}
