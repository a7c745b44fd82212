package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventPaymentFailed    EventKind = "payment_failed"
	EventRefund           EventKind = "refund"
	EventIgnored          EventKind = "ignored"
)

// Intent is the processor-side charge attempt; ClientSecret is handed to the
// client to confirm the payment.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
}

// Event is a verified processor callback reduced to what reconciliation needs.
type Event struct {
	ID       string
	Kind     EventKind
	IntentID string
	Reason   string
}

type CreateIntentInput struct {
	AmountCents     int64
	Currency        string
	PaymentMethodID *string
	BookingID       int64
}

type Gateway interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	Refund(ctx context.Context, intentID string, amountCents *int64, reason string) (string, error)
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

// Cents converts a major-unit amount to processor minor units.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.AmountCents),
		Currency: stripe.String(input.Currency),
	}
	params.Context = ctx
	params.AddMetadata("booking_id", fmt.Sprintf("%d", input.BookingID))

	if input.PaymentMethodID != nil {
		params.PaymentMethod = stripe.String(*input.PaymentMethodID)
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.Amount,
	}, nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}

	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.Amount,
	}, nil
}

func (g *StripeGateway) Refund(
	ctx context.Context,
	intentID string,
	amountCents *int64,
	reason string,
) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	if amountCents != nil {
		params.Amount = stripe.Int64(*amountCents)
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("create refund: %w", err)
	}
	return refund.ID, nil
}

// VerifyEvent checks the signature over the raw body and maps the Stripe
// event onto the reconciler's vocabulary. Verification fails closed.
func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}

	event := &Event{ID: stripeEvent.ID, Kind: EventIgnored}

	switch string(stripeEvent.Type) {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent struct {
			ID               string `json:"id"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		}
		if err := json.Unmarshal(stripeEvent.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("decode payment intent event: %w", err)
		}
		event.IntentID = intent.ID
		if string(stripeEvent.Type) == "payment_intent.succeeded" {
			event.Kind = EventPaymentSucceeded
		} else {
			event.Kind = EventPaymentFailed
			if intent.LastPaymentError != nil {
				event.Reason = intent.LastPaymentError.Message
			}
		}
	case "charge.refunded":
		var charge struct {
			PaymentIntent string `json:"payment_intent"`
			Refunds       struct {
				Data []struct {
					Reason string `json:"reason"`
				} `json:"data"`
			} `json:"refunds"`
		}
		if err := json.Unmarshal(stripeEvent.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("decode charge event: %w", err)
		}
		event.Kind = EventRefund
		event.IntentID = charge.PaymentIntent
		if len(charge.Refunds.Data) > 0 {
			event.Reason = charge.Refunds.Data[0].Reason
		}
	}

	return event, nil
}
