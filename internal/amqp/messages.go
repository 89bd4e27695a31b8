package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AMQP message types, carried in the Publishing.Type header.
const (
	TypeLedgerChanged      = "ledger.changed"
	TypeInstallmentSettled = "installment.settled"
)

// ErrMalformedMessage marks deliveries that can never be processed.
var ErrMalformedMessage = errors.New("malformed message")

// LedgerChangedMessage announces a new ledger entry. Consumers re-read the
// affected month from storage; the message only says where to look.
type LedgerChangedMessage struct {
	EntryID     string    `json:"entry_id"`
	Direction   string    `json:"direction"`
	AmountCents int64     `json:"amount_cents"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	Timestamp   time.Time `json:"timestamp"`
}

// InstallmentSettledMessage announces a settled installment.
type InstallmentSettledMessage struct {
	SeriesID        string    `json:"series_id"`
	Sequence        int       `json:"sequence"`
	Strategy        string    `json:"strategy"`
	PaidOn          string    `json:"paid_on"`
	DifferenceCents int64     `json:"difference_cents"`
	ResidualCents   int64     `json:"residual_cents"`
	Timestamp       time.Time `json:"timestamp"`
}

// Handler reacts to decoded messages. Returning an error requeues the delivery.
type Handler interface {
	HandleLedgerChanged(ctx context.Context, msg *LedgerChangedMessage) error
	HandleInstallmentSettled(ctx context.Context, msg *InstallmentSettledMessage) error
}

// Dispatch decodes body according to msgType and calls the matching handler.
// Unknown types and undecodable bodies return ErrMalformedMessage.
func Dispatch(ctx context.Context, msgType string, body []byte, h Handler) error {
	switch msgType {
	case TypeLedgerChanged:
		var msg LedgerChangedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if msg.Year == 0 || msg.Month < 1 || msg.Month > 12 {
			return fmt.Errorf("%w: invalid period %d-%d", ErrMalformedMessage, msg.Year, msg.Month)
		}
		return h.HandleLedgerChanged(ctx, &msg)
	case TypeInstallmentSettled:
		var msg InstallmentSettledMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if msg.SeriesID == "" {
			return fmt.Errorf("%w: missing series id", ErrMalformedMessage)
		}
		return h.HandleInstallmentSettled(ctx, &msg)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, msgType)
	}
}
