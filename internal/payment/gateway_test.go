package payment

import (
	"context"
	"strings"
	"testing"
)

func TestChargeAcceptsValidCard(t *testing.T) {
	g := NewSimulated()
	d, err := g.Charge(context.Background(), Request{
		AmountCents: 15900,
		Method:      MethodCard,
		CardNumber:  "4111111111111111",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Accepted {
		t.Fatalf("expected acceptance, declined with %q", d.Reason)
	}
	if !strings.HasPrefix(d.Reference, "pay_") {
		t.Fatalf("reference: got %q want pay_ prefix", d.Reference)
	}
}

func TestChargeDeclinesBadInstruments(t *testing.T) {
	g := NewSimulated()
	cases := []struct {
		name string
		req  Request
	}{
		{"short card", Request{AmountCents: 100, Method: MethodCard, CardNumber: "1234"}},
		{"card with letters", Request{AmountCents: 100, Method: MethodCard, CardNumber: "41111111111111ab"}},
		{"unknown wallet", Request{AmountCents: 100, Method: MethodWallet, Wallet: "paypal"}},
		{"unknown method", Request{AmountCents: 100, Method: "cash"}},
		{"zero amount", Request{AmountCents: 0, Method: MethodCard, CardNumber: "4111111111111111"}},
	}
	for _, tc := range cases {
		d, err := g.Charge(context.Background(), tc.req)
		if err != nil {
			t.Fatalf("%s: declines must not error, got %v", tc.name, err)
		}
		if d.Accepted {
			t.Errorf("%s: expected decline", tc.name)
		}
		if d.Reason == "" {
			t.Errorf("%s: decline carries no reason", tc.name)
		}
	}
}

func TestChargeAcceptsKnownWallets(t *testing.T) {
	g := NewSimulated()
	for _, w := range []string{"tngo", "GrabPay", " shopeepay "} {
		d, err := g.Charge(context.Background(), Request{AmountCents: 5300, Method: MethodWallet, Wallet: w})
		if err != nil {
			t.Fatalf("wallet %q: unexpected error: %v", w, err)
		}
		if !d.Accepted {
			t.Errorf("wallet %q: expected acceptance, got %q", w, d.Reason)
		}
	}
}
