package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/services"
)

type cartItemRequest struct {
	ProductID   int64    `json:"product_id" validate:"required,gt=0"`
	ProductType string   `json:"product_type" validate:"required,oneof=Album Cancion Merchandising"`
	Quantity    int      `json:"quantity" validate:"required,gte=1,lte=1000"`
	UnitPrice   *float64 `json:"unit_price" validate:"omitempty,gte=0"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=1000"`
}

type checkoutRequest struct {
	TaxPercent    float64 `json:"tax_percent" validate:"gte=0,lte=100"`
	Discount      float64 `json:"discount" validate:"gte=0"`
	PaymentMethod *string `json:"payment_method" validate:"omitempty,max=50"`
}

type saleRequest struct {
	Lines         []cartItemRequest `json:"lines" validate:"required,min=1,dive"`
	TaxPercent    float64           `json:"tax_percent" validate:"gte=0,lte=100"`
	Discount      float64           `json:"discount" validate:"gte=0"`
	PaymentMethod *string           `json:"payment_method" validate:"omitempty,max=50"`
}

type paymentRequest struct {
	Status    string  `json:"payment_status" validate:"required,oneof=Pendiente Pagado Cancelado Reembolsado"`
	Method    *string `json:"payment_method" validate:"omitempty,max=50"`
	Reference *string `json:"payment_reference" validate:"omitempty,max=100"`
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	cart, err := s.Carts.Get(ctx, ident.UserID)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, cart)
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	cart, err := s.Carts.AddItem(ctx, ident.UserID, services.CartItemInput{
		ProductID:   req.ProductID,
		ProductType: models.ProductType(req.ProductType),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeCreated(w, "item added", cart)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var req cartQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	cart, err := s.Carts.UpdateItem(ctx, ident.UserID, itemID, req.Quantity)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, cart)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	cart, err := s.Carts.RemoveItem(ctx, ident.UserID, itemID)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, cart)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	n, err := s.Carts.Clear(ctx, ident.UserID)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "cart cleared", Data: map[string]int64{"removed": n}})
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(s.logger, w, r, err)
			return
		}
	}

	sale, err := s.Carts.Checkout(ctx, ident.UserID, services.CheckoutInput{
		TaxPercent:    req.TaxPercent,
		Discount:      req.Discount,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeCreated(w, "order placed", sale)
}

func (s *Server) createSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	var req saleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	in := services.SaleInput{
		TaxPercent:    req.TaxPercent,
		Discount:      req.Discount,
		PaymentMethod: req.PaymentMethod,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, services.SaleLineInput{
			ProductID:   l.ProductID,
			ProductType: models.ProductType(l.ProductType),
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}

	sale, err := s.Sales.Create(ctx, ident.UserID, in)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeCreated(w, "sale created", sale)
}

func (s *Server) getSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	sale, err := s.Sales.Get(ctx, ident.UserID, id)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, sale)
}

func (s *Server) listSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, _ := identityFrom(ctx)

	filter := models.SaleFilter{PaymentStatus: models.PaymentStatus(r.URL.Query().Get("payment_status"))}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		writeError(s.logger, w, r, common.NewValidationError(
			common.FieldError{Field: "payment_status", Message: "is not a known payment status"}))
		return
	}
	err := queryInt64s(r, map[string]*int64{"user_id": &filter.UserID})
	if err == nil {
		filter.From, filter.To, err = queryRange(r)
	}
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	page := pageRequest(r)
	sales, total, err := s.Sales.List(ctx, ident.UserID, filter, page)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writePage(w, sales, page, total)
}

func (s *Server) updatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	if err := s.requireAdmin(ctx); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	sale, err := s.Sales.UpdatePayment(ctx, id, models.PaymentStatus(req.Status), req.Method, req.Reference)
	if err != nil {
		writeError(s.logger, w, r, err)
		return
	}
	writeOK(w, sale)
}

// queryRange parses optional RFC 3339 or yyyy-mm-dd "from" and "to"
// parameters.
func queryRange(r *http.Request) (from, to *time.Time, err error) {
	var fields []common.FieldError
	parse := func(name string) *time.Time {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339, dateLayout} {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
		fields = append(fields, common.FieldError{Field: name, Message: "must be an RFC 3339 timestamp or a yyyy-mm-dd date"})
		return nil
	}

	from, to = parse("from"), parse("to")
	if len(fields) > 0 {
		return nil, nil, common.NewValidationError(fields...)
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, common.NewValidationError(common.FieldError{Field: "to", Message: "must not be before from"})
	}
	return from, to, nil
}
