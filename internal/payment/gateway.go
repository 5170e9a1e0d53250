// Package payment creates hosted checkout sessions for direct bookings and
// verifies the gateway's payment notifications.
package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"tourdesk/internal/model"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured is returned when no gateway keys are set.
var ErrNotConfigured = errors.New("payment gateway not configured")

type Customer struct {
	Name  string
	Email string
	Phone string
}

// CheckoutRequest describes one payment to collect.
type CheckoutRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Description string
	Customer    Customer
}

// Checkout is what the embedded checkout widget needs to take the payment.
type Checkout struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	ClientKey   string `json:"client_key"`
}

// Notification is the gateway's asynchronous payment status callback.
type Notification struct {
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
}

// Gateway is the payment processor seen by the booking flow.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	Verify(n Notification) bool
}

// Status maps a notification onto a booking payment status. ok is false for
// statuses that leave the booking unchanged.
func Status(n Notification) (status string, ok bool) {
	switch strings.ToLower(n.TransactionStatus) {
	case "capture":
		switch strings.ToLower(n.FraudStatus) {
		case "accept", "":
			return model.PaymentPaid, true
		case "challenge":
			return model.PaymentPending, true
		}
		return model.PaymentFailed, true
	case "settlement":
		return model.PaymentPaid, true
	case "pending":
		return model.PaymentPending, true
	case "deny", "cancel", "expire", "failure":
		return model.PaymentFailed, true
	}
	return "", false
}

// Signature is SHA512(order_id + status_code + gross_amount + server_key), hex encoded.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// Midtrans implements Gateway with Snap hosted checkout.
type Midtrans struct {
	client    snap.Client
	serverKey string
	clientKey string
}

func NewMidtrans(serverKey, clientKey string, production bool) *Midtrans {
	m := &Midtrans{serverKey: serverKey, clientKey: clientKey}
	if production {
		m.client.New(serverKey, midtrans.Production)
	} else {
		m.client.New(serverKey, midtrans.Sandbox)
	}
	return m
}

func (m *Midtrans) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	if m.serverKey == "" {
		return nil, ErrNotConfigured
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("invalid checkout amount %s", req.Amount)
	}

	// Snap takes whole currency units.
	amount := req.Amount.Round(0).IntPart()
	first, last := splitName(req.Customer.Name)
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: first,
			LName: last,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.OrderID,
				Price: amount,
				Qty:   1,
				Name:  truncate(req.Description, 50),
			},
		},
	}

	resp, merr := m.client.CreateTransaction(snapReq)
	if merr != nil {
		return nil, fmt.Errorf("midtrans create transaction: %w", merr)
	}
	return &Checkout{Token: resp.Token, RedirectURL: resp.RedirectURL, ClientKey: m.clientKey}, nil
}

// Verify checks the notification signature against the server key.
func (m *Midtrans) Verify(n Notification) bool {
	if m.serverKey == "" || n.SignatureKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, m.serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(n.SignatureKey))) == 1
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, " "); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
