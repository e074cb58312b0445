// Package payment holds the payment-gateway collaborator consumed by
// the booking flow. The shipped implementation simulates a charge:
// it validates the instrument the way the original terminal did and
// returns an accept/decline decision without moving money. Swapping
// in a real provider only requires another Gateway implementation.
package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Payment methods accepted by the simulated gateway.
const (
	MethodCard   = "card"
	MethodWallet = "wallet"
)

// Wallet providers accepted for MethodWallet.
var wallets = map[string]bool{
	"tngo":      true,
	"grabpay":   true,
	"shopeepay": true,
}

// Request describes one charge attempt for the aggregate amount of a
// booking transaction.
type Request struct {
	AmountCents uint32
	Method      string
	CardNumber  string // 16 digits when Method is card
	Wallet      string // provider key when Method is wallet
}

// Decision is the gateway's verdict. Reference is set only on
// acceptance and ends up in operator logs; Reason explains declines.
type Decision struct {
	Accepted  bool
	Reference string
	Reason    string
}

// Gateway is the collaborator interface the booking flow depends on.
type Gateway interface {
	Charge(ctx context.Context, req Request) (Decision, error)
}

// Simulated implements Gateway without an external provider.
type Simulated struct{}

// NewSimulated returns the simulated gateway.
func NewSimulated() *Simulated { return &Simulated{} }

// Charge validates the payment instrument and accepts the charge.
// A card must carry exactly 16 digits; a wallet must name a known
// provider. Validation failures decline without error: a decline is
// a normal outcome, not a fault.
func (g *Simulated) Charge(_ context.Context, req Request) (Decision, error) {
	switch req.Method {
	case MethodCard:
		digits := strings.TrimSpace(req.CardNumber)
		if len(digits) != 16 || strings.IndexFunc(digits, notDigit) >= 0 {
			return Decision{Reason: "card number must be 16 digits"}, nil
		}
	case MethodWallet:
		if !wallets[strings.ToLower(strings.TrimSpace(req.Wallet))] {
			return Decision{Reason: "unknown wallet provider"}, nil
		}
	default:
		return Decision{Reason: "unsupported payment method"}, nil
	}
	if req.AmountCents == 0 {
		return Decision{Reason: "zero amount"}, nil
	}
	ref, err := paymentRef()
	if err != nil {
		return Decision{}, err
	}
	return Decision{Accepted: true, Reference: ref}, nil
}

func notDigit(r rune) bool { return r < '0' || r > '9' }

func paymentRef() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "pay_" + hex.EncodeToString(b), nil
}
