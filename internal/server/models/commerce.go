package models

import (
	"math"
	"time"
)

type CartStatus string

const (
	CartActive    CartStatus = "Activo"
	CartAbandoned CartStatus = "Abandonado"
	CartProcessed CartStatus = "Procesado"
)

type ProductType string

const (
	ProductAlbum         ProductType = "Album"
	ProductSong          ProductType = "Cancion"
	ProductMerchandising ProductType = "Merchandising"
)

// Valid reports whether t is one of the known product types.
func (t ProductType) Valid() bool {
	switch t {
	case ProductAlbum, ProductSong, ProductMerchandising:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pendiente"
	PaymentPaid     PaymentStatus = "Pagado"
	PaymentCanceled PaymentStatus = "Cancelado"
	PaymentRefunded PaymentStatus = "Reembolsado"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentCanceled, PaymentRefunded:
		return true
	}
	return false
}

type Cart struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Status    CartStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
}

type CartItem struct {
	ID          int64       `json:"id"`
	CartID      int64       `json:"cart_id"`
	UserID      int64       `json:"user_id"`
	ProductID   int64       `json:"product_id"`
	ProductType ProductType `json:"product_type"`
	Quantity    int         `json:"quantity"`
	UnitPrice   float64     `json:"unit_price"`
	AddedAt     time.Time   `json:"added_at"`
}

// CartTotal sums quantity * unit price over items.
func CartTotal(items []CartItem) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Quantity) * it.UnitPrice
	}
	return RoundMoney(total)
}

type Sale struct {
	ID               int64         `json:"id"`
	UserID           int64         `json:"user_id"`
	Subtotal         float64       `json:"subtotal"`
	Tax              float64       `json:"tax"`
	Discount         float64       `json:"discount"`
	Total            float64       `json:"total"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentMethod    *string       `json:"payment_method,omitempty"`
	PaymentReference *string       `json:"payment_reference,omitempty"`
	StateID          int64         `json:"state_id"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Lines            []SaleLine    `json:"lines,omitempty"`
}

type SaleLine struct {
	ID          int64       `json:"id"`
	SaleID      int64       `json:"sale_id"`
	ProductID   int64       `json:"product_id"`
	ProductType ProductType `json:"product_type"`
	Quantity    int         `json:"quantity"`
	UnitPrice   float64     `json:"unit_price"`
	LineTotal   float64     `json:"line_total"`
}

type SaleFilter struct {
	UserID        int64
	PaymentStatus PaymentStatus
	From          *time.Time
	To            *time.Time
}

// SaleTotals is the price breakdown of a sale.
type SaleTotals struct {
	Subtotal float64
	Tax      float64
	Discount float64
	Total    float64
}

// ComputeSaleTotals prices lines: subtotal = sum(qty*unit),
// tax = subtotal*taxPercent/100, total = subtotal + tax - discount.
// LineTotal is filled in on each line.
func ComputeSaleTotals(lines []SaleLine, taxPercent, discount float64) SaleTotals {
	var subtotal float64
	for i := range lines {
		lines[i].LineTotal = RoundMoney(float64(lines[i].Quantity) * lines[i].UnitPrice)
		subtotal += lines[i].LineTotal
	}
	subtotal = RoundMoney(subtotal)
	tax := RoundMoney(subtotal * taxPercent / 100)
	return SaleTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: RoundMoney(discount),
		Total:    RoundMoney(subtotal + tax - discount),
	}
}

// RoundMoney rounds to two decimal places.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
