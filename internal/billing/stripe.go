package billing

import (
	"context"
	"errors"

	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// CheckoutInput describes a one-off card payment for a plan.
type CheckoutInput struct {
	Plan   string
	UserID string
	Origin string
}

// Session is the part of a checkout session the engine cares about.
type Session struct {
	ID     string
	URL    string
	Paid   bool
	Plan   string
	UserID string
}

// Gateway is the card payment provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, in CheckoutInput) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
}

// StripeGateway implements Gateway with Stripe Checkout.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway returns a nil Gateway when key is empty so callers can
// report the missing configuration per request.
func NewStripeGateway(key string, backends *stripe.Backends) Gateway {
	if key == "" {
		return nil
	}
	return &StripeGateway{api: client.New(key, backends)}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, in CheckoutInput) (Session, error) {
	price := PriceFor(in.Plan)
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(price.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(price.Name),
				},
				UnitAmount: stripe.Int64(price.Amount),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(in.Origin + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(in.Origin + "/billing/cancel"),
	}
	params.Context = ctx
	params.AddMetadata("plan", in.Plan)
	params.AddMetadata("userId", in.UserID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, stripeError(err)
	}
	return toSession(s), nil
}

func (g *StripeGateway) GetSession(ctx context.Context, id string) (Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return Session{}, stripeError(err)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) Session {
	plan := s.Metadata["plan"]
	if plan == "" {
		plan = "pro"
	}
	return Session{
		ID:     s.ID,
		URL:    s.URL,
		Paid:   s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Plan:   plan,
		UserID: s.Metadata["userId"],
	}
}

func stripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		code := appErr.CodeUpstream
		switch se.HTTPStatusCode {
		case 404:
			code = appErr.CodeNotFound
		case 400:
			code = appErr.CodeInvalid
		}
		return appErr.Wrap(err, code, se.Msg)
	}
	return appErr.Wrap(err, appErr.CodeUpstream, "payment provider request failed")
}
