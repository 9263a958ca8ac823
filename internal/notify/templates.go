package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"github.com/healthline/booking/internal/appointment"
)

const (
	confirmationSubject = "Your Appointment Confirmation - Health-Line+"
	receiptSubject      = "Your Payment Receipt - Health-Line+"
	logoURL             = "https://res.cloudinary.com/dfph32nsq/image/upload/v1748760472/logo_pw176p.png"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<div style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f9f9f9; padding: 30px;">
  <div style="max-width: 600px; margin: auto; background: white; border-radius: 10px; overflow: hidden;">
    <div style="background-color: #5F6FFF; padding: 20px; text-align: center;">
      <img src="{{.Logo}}" alt="Health-Line+" style="height: 50px; margin-bottom: 10px;">
      <h1 style="color: white; margin: 0; font-size: 24px;">Appointment Confirmed</h1>
    </div>
    <div style="padding: 25px;">
      <p style="font-size: 18px;">Hi <strong>{{.Name}}</strong>,</p>
      <p style="font-size: 16px;">Thank you for choosing <strong>Health-Line+</strong>. Your appointment details are as follows:</p>
      <table style="width: 100%; border-collapse: collapse; margin-top: 20px;">
        <tr><td style="padding: 8px; border-bottom: 1px solid #ddd;"><strong>Doctor</strong></td><td style="padding: 8px; border-bottom: 1px solid #ddd;">{{.Doctor}}</td></tr>
        <tr><td style="padding: 8px; border-bottom: 1px solid #ddd;"><strong>Date</strong></td><td style="padding: 8px; border-bottom: 1px solid #ddd;">{{.Date}}</td></tr>
        <tr><td style="padding: 8px; border-bottom: 1px solid #ddd;"><strong>Time</strong></td><td style="padding: 8px; border-bottom: 1px solid #ddd;">{{.Time}}</td></tr>
        <tr><td style="padding: 8px; border-bottom: 1px solid #ddd;"><strong>Payment Status</strong></td><td style="padding: 8px; border-bottom: 1px solid #ddd;">{{if .Paid}}Paid{{else}}Pending{{end}}</td></tr>
      </table>
      {{if not .Paid}}<div style="margin-top: 20px; padding: 15px; background-color: #fff3cd; border-left: 6px solid #ffecb5;">
        <p><strong>Note:</strong> You can pay online via the Health-Line+ website or in cash at the hospital during your visit.</p>
      </div>{{end}}
      <p style="color: #777;">Warm regards,<br/>Team Health-Line+</p>
    </div>
  </div>
</div>`))

var receiptTmpl = template.Must(template.New("receipt").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px; border: 1px solid #e0e0e0; border-radius: 10px;">
  <div style="background-color: #5F6FFF; padding: 15px; border-radius: 10px 10px 0 0; text-align: center;">
    <img src="{{.Logo}}" alt="Health-Line+" style="height: 40px; vertical-align: middle;" />
    <h2 style="color: white; margin: 10px 0;">Payment Receipt</h2>
  </div>
  <p>Hi <strong>{{.Name}}</strong>,</p>
  <p>We've received your payment for your upcoming appointment. Here are the details:</p>
  <table style="width: 100%; border-collapse: collapse; margin: 10px 0;">
    <tr><td><strong>Doctor</strong></td><td>{{.Doctor}}</td></tr>
    <tr><td><strong>Date</strong></td><td>{{.Date}}</td></tr>
    <tr><td><strong>Time</strong></td><td>{{.Time}}</td></tr>
    <tr><td><strong>Amount Paid</strong></td><td>{{.Currency}} {{.Amount}}</td></tr>
    <tr><td><strong>Status</strong></td><td style="color: green;"><strong>Paid</strong></td></tr>
  </table>
  <div style="margin: 20px 0; padding: 10px; background: #e8f5e9; border-left: 5px solid #4caf50;">
    <strong>Note:</strong> This receipt confirms that your payment has been successfully processed via Health-Line+.
  </div>
  <p>Thank you for trusting <strong>Health-Line+</strong>. We look forward to serving you.</p>
  <p style="color: #777;">Warm regards,<br/>Team Health-Line+</p>
</div>`))

type emailData struct {
	Logo     string
	Name     string
	Doctor   string
	Date     string
	Time     string
	Paid     bool
	Currency string
	Amount   string
}

func newEmailData(a appointment.Appointment) emailData {
	return emailData{
		Logo:   logoURL,
		Name:   a.UserData.Name,
		Doctor: a.DocData.Name,
		Date:   appointment.FormatSlotDate(a.SlotDate),
		Time:   a.SlotTime,
		Paid:   a.Payment,
	}
}

func render(t *template.Template, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// ConfirmationMessage renders the booking confirmation for the patient.
func ConfirmationMessage(a appointment.Appointment) (Message, error) {
	body, err := render(confirmationTmpl, newEmailData(a))
	if err != nil {
		return Message{}, err
	}
	return Message{To: a.UserData.Email, Subject: confirmationSubject, HTML: body}, nil
}

// ReceiptMessage renders the payment receipt for a paid appointment.
func ReceiptMessage(a appointment.Appointment, currency string) (Message, error) {
	data := newEmailData(a)
	data.Currency = currency
	data.Amount = decimal.NewFromFloat(a.Amount).StringFixed(2)

	body, err := render(receiptTmpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: a.UserData.Email, Subject: receiptSubject, HTML: body}, nil
}
