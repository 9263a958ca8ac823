package payment

import (
	"testing"

	"github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
)

func TestStripeToSession(t *testing.T) {
	paid := toSession(&stripe.CheckoutSession{
		ID:                "cs_1",
		URL:               "https://checkout.stripe.com/c/pay/cs_1",
		ClientReferenceID: "user-1",
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:          map[string]string{"userId": "user-1", "appointmentId": "appt-1"},
	})
	assert.Equal(t, Session{
		ID:            "cs_1",
		URL:           "https://checkout.stripe.com/c/pay/cs_1",
		Status:        StatusPaid,
		UserID:        "user-1",
		AppointmentID: "appt-1",
	}, paid)

	open := toSession(&stripe.CheckoutSession{
		ID:            "cs_2",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
	})
	assert.Equal(t, StatusUnpaid, open.Status)
	assert.Empty(t, open.AppointmentID)
}
