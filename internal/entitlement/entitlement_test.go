package entitlement

import (
	"errors"
	"testing"
	"time"
)

func TestPlanByType(t *testing.T) {
	for _, planType := range []string{PlanWeekly, PlanMonthly, PlanYearly} {
		p, err := PlanByType(planType)
		if err != nil {
			t.Fatalf("PlanByType(%q) error: %v", planType, err)
		}
		if p.Type != planType {
			t.Errorf("PlanByType(%q) returned %q", planType, p.Type)
		}
		if p.Duration <= 0 {
			t.Errorf("plan %q has non-positive duration", planType)
		}
	}

	if _, err := PlanByType("lifetime"); !errors.Is(err, ErrUnknownPlan) {
		t.Errorf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestPriceFor(t *testing.T) {
	cases := []struct {
		plan     string
		country  string
		price    float64
		currency string
	}{
		{PlanWeekly, "US", 2.49, "USD"},
		{PlanWeekly, "IN", 199, "INR"},
		{PlanMonthly, "DE", 5.99, "USD"},
		{PlanMonthly, "IN", 799, "INR"},
		{PlanYearly, "", 29.99, "USD"},
		{PlanYearly, "IN", 2499, "INR"},
	}
	for _, tc := range cases {
		p, err := PlanByType(tc.plan)
		if err != nil {
			t.Fatalf("PlanByType(%q) error: %v", tc.plan, err)
		}
		price, currency := p.PriceFor(tc.country)
		if price != tc.price || currency != tc.currency {
			t.Errorf("%s/%s: got %v %s, want %v %s",
				tc.plan, tc.country, price, currency, tc.price, tc.currency)
		}
	}
}

func TestSubscriptionActive(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		sub    Subscription
		active bool
	}{
		{"active unexpired", Subscription{Status: StatusActive, ExpiresAt: now.Add(time.Hour)}, true},
		{"active expired", Subscription{Status: StatusActive, ExpiresAt: now.Add(-time.Hour)}, false},
		{"cancelled unexpired", Subscription{Status: StatusCancelled, ExpiresAt: now.Add(time.Hour)}, true},
		{"cancelled expired", Subscription{Status: StatusCancelled, ExpiresAt: now.Add(-time.Hour)}, false},
		{"expired", Subscription{Status: StatusExpired, ExpiresAt: now.Add(-time.Hour)}, false},
	}
	for _, tc := range cases {
		if got := tc.sub.Active(now); got != tc.active {
			t.Errorf("%s: Active() = %v, want %v", tc.name, got, tc.active)
		}
	}
}
