package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

// razorpayOrders is the part of the Razorpay order client used here.
type razorpayOrders interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayProcessor maps checkout sessions onto Razorpay orders. The returned
// URL sends the client back to the frontend with the order id so it can open
// the Razorpay widget.
type RazorpayProcessor struct {
	orders      razorpayOrders
	frontendURL string
	timeout     time.Duration
}

func NewRazorpayProcessor(keyID, keySecret, frontendURL string, timeout time.Duration) *RazorpayProcessor {
	c := razorpay.NewClient(keyID, keySecret)
	return &RazorpayProcessor{
		orders:      c.Order,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		timeout:     timeout,
	}
}

// call runs fn and gives up when ctx or the processor timeout ends first.
// The client has no context support, so an abandoned call finishes in the background.
func (p *RazorpayProcessor) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		body map[string]interface{}
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		body, err := fn()
		ch <- result{body, err}
	}()

	select {
	case r := <-ch:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *RazorpayProcessor) CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error) {
	minor, err := ToMinorUnits(req.Amount)
	if err != nil {
		return Session{}, err
	}

	receipt := req.AppointmentID
	if receipt == "" {
		receipt = req.UserID
	}
	data := map[string]interface{}{
		"amount":   minor,
		"currency": strings.ToUpper(req.Currency),
		"receipt":  receipt,
		"notes":    map[string]interface{}{"userId": req.UserID},
	}
	if req.AppointmentID != "" {
		data["notes"].(map[string]interface{})["appointmentId"] = req.AppointmentID
	}

	body, err := p.call(ctx, func() (map[string]interface{}, error) {
		return p.orders.Create(data, nil)
	})
	if err != nil {
		return Session{}, upstreamError("create razorpay order", err)
	}

	s, err := orderToSession(body)
	if err != nil {
		return Session{}, err
	}
	s.URL = p.frontendURL + "?order_id=" + url.QueryEscape(s.ID)
	return s, nil
}

func (p *RazorpayProcessor) GetSession(ctx context.Context, id string) (Session, error) {
	body, err := p.call(ctx, func() (map[string]interface{}, error) {
		return p.orders.Fetch(id, nil, nil)
	})
	if err != nil {
		return Session{}, upstreamError(fmt.Sprintf("fetch razorpay order %s", id), err)
	}
	return orderToSession(body)
}

func orderToSession(body map[string]interface{}) (Session, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return Session{}, fmt.Errorf("%w: order response without id", ErrUpstream)
	}

	s := Session{ID: id, Status: StatusUnpaid}
	if status, _ := body["status"].(string); status == "paid" {
		s.Status = StatusPaid
	}
	if notes, ok := body["notes"].(map[string]interface{}); ok {
		s.UserID, _ = notes["userId"].(string)
		s.AppointmentID, _ = notes["appointmentId"].(string)
	}
	return s, nil
}
