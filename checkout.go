package folio

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eringen/folio/content"
)

const maxLineQuantity = 99

var (
	// ErrOutOfStock is returned when a cart asks for more than is in stock.
	ErrOutOfStock = errors.New("folio: insufficient stock")
	// ErrCheckoutDisabled is returned when no CheckoutProvider is configured.
	ErrCheckoutDisabled = errors.New("folio: checkout is not configured")
)

// CartItem is one requested product.
type CartItem struct {
	Slug     string `json:"slug"`
	Quantity int    `json:"quantity"`
}

// LineItem is a priced cart line.
type LineItem struct {
	ProductID  string `json:"productId"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	UnitAmount int64  `json:"unitAmount"`
	Quantity   int    `json:"quantity"`
	Amount     int64  `json:"amount"`
}

// Order is a validated cart ready to hand to a payment provider.
type Order struct {
	Items    []LineItem `json:"items"`
	Total    int64      `json:"total"`
	Currency string     `json:"currency"`
}

// CheckoutSession is what a provider returns: where to send the buyer.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutProvider creates hosted payment sessions, e.g. with Stripe.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, order Order) (CheckoutSession, error)
}

// BuildOrder prices items against published products. Lines for the same
// slug are merged. lookup returns ErrNotFound for unknown or unpublished
// products.
func BuildOrder(items []CartItem, lookup func(slug string) (*Product, error)) (Order, error) {
	if len(items) == 0 {
		return Order{}, &content.ValidationError{Field: "items", Reason: "cart is empty"}
	}

	var order []string
	qty := make(map[string]int)
	for _, it := range items {
		slug := strings.TrimSpace(it.Slug)
		if slug == "" {
			return Order{}, &content.ValidationError{Field: "items", Reason: "slug is required"}
		}
		if it.Quantity < 1 {
			return Order{}, &content.ValidationError{Field: "items", Reason: fmt.Sprintf("quantity for %q must be at least 1", slug)}
		}
		if _, ok := qty[slug]; !ok {
			order = append(order, slug)
		}
		qty[slug] += it.Quantity
		if qty[slug] > maxLineQuantity {
			return Order{}, &content.ValidationError{Field: "items", Reason: fmt.Sprintf("quantity for %q exceeds %d", slug, maxLineQuantity)}
		}
	}

	var out Order
	for _, slug := range order {
		p, err := lookup(slug)
		if errors.Is(err, ErrNotFound) {
			return Order{}, &content.ValidationError{Field: "items", Reason: fmt.Sprintf("unknown product %q", slug)}
		}
		if err != nil {
			return Order{}, err
		}
		n := qty[slug]
		if p.Stock < n {
			return Order{}, errors.Wrapf(ErrOutOfStock, "%s has %d left", slug, p.Stock)
		}
		switch {
		case out.Currency == "":
			out.Currency = p.Currency
		case out.Currency != p.Currency:
			return Order{}, &content.ValidationError{Field: "items", Reason: "products use different currencies"}
		}
		line := LineItem{
			ProductID:  p.ID,
			Slug:       p.Slug,
			Title:      p.Title,
			UnitAmount: p.Price,
			Quantity:   n,
			Amount:     p.Price * int64(n),
		}
		out.Items = append(out.Items, line)
		out.Total += line.Amount
	}
	return out, nil
}

type checkoutRequest struct {
	Items []CartItem `json:"items"`
}

type checkoutResponse struct {
	CheckoutSession
	Order
}

func (a *App) handleCheckout(c echo.Context) error {
	if a.Checkout == nil {
		return ErrCheckoutDisabled
	}
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed checkout request")
	}
	ctx := c.Request().Context()
	order, err := BuildOrder(req.Items, func(slug string) (*Product, error) {
		return a.Products.GetBySlug(ctx, slug)
	})
	if err != nil {
		return err
	}
	sess, err := a.Checkout.CreateSession(ctx, order)
	if err != nil {
		return fmt.Errorf("folio: create checkout session: %w", err)
	}
	a.Log.WithField("session", sess.ID).WithField("total", order.Total).Info("checkout session created")
	return c.JSON(http.StatusOK, checkoutResponse{CheckoutSession: sess, Order: order})
}
