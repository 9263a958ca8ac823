package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const checkoutProductName = "Appointment Payment"

type StripeProcessor struct {
	api         *client.API
	frontendURL string
	timeout     time.Duration
}

func NewStripeProcessor(secretKey, frontendURL string, timeout time.Duration) *StripeProcessor {
	httpClient := &http.Client{Timeout: timeout}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
	}

	api := &client.API{}
	api.Init(secretKey, backends)

	return &StripeProcessor{
		api:         api,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		timeout:     timeout,
	}
}

func (p *StripeProcessor) CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error) {
	minor, err := ToMinorUnits(req.Amount)
	if err != nil {
		return Session{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:     stripe.String(checkoutProductName),
						Metadata: map[string]string{"userId": req.UserID},
					},
					UnitAmount: stripe.Int64(minor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.UserID),
		SuccessURL:        stripe.String(p.frontendURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(p.frontendURL),
	}
	params.Context = ctx
	params.AddMetadata("userId", req.UserID)
	if req.AppointmentID != "" {
		params.AddMetadata("appointmentId", req.AppointmentID)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, upstreamError("create checkout session", err)
	}
	return toSession(s), nil
}

func (p *StripeProcessor) GetSession(ctx context.Context, id string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return Session{}, upstreamError(fmt.Sprintf("retrieve checkout session %s", id), err)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) Session {
	out := Session{
		ID:     s.ID,
		URL:    s.URL,
		Status: StatusUnpaid,
		UserID: s.ClientReferenceID,
	}
	if s.Metadata != nil {
		out.AppointmentID = s.Metadata["appointmentId"]
	}
	if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		out.Status = StatusPaid
	}
	return out
}
