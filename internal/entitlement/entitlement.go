// Package entitlement manages premium subscriptions. Filtered matching is
// gated on an active subscription; everything else in the app is free.
package entitlement

import (
	"errors"
	"time"
)

// Plan durations and identifiers.
const (
	PlanWeekly  = "weekly"
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"

	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

var (
	ErrUnknownPlan  = errors.New("entitlement: unknown plan")
	ErrNoActivePlan = errors.New("entitlement: no active subscription")
)

// Plan describes a purchasable subscription tier with regional pricing.
type Plan struct {
	Type     string        `json:"type"`
	Duration time.Duration `json:"-"`
	PriceUSD float64       `json:"price_usd"`
	PriceINR float64       `json:"price_inr"`
}

// Plans is the fixed catalog. India gets dedicated INR pricing; every
// other region is billed in USD.
var Plans = []Plan{
	{Type: PlanWeekly, Duration: 7 * 24 * time.Hour, PriceUSD: 2.49, PriceINR: 199},
	{Type: PlanMonthly, Duration: 30 * 24 * time.Hour, PriceUSD: 5.99, PriceINR: 799},
	{Type: PlanYearly, Duration: 365 * 24 * time.Hour, PriceUSD: 29.99, PriceINR: 2499},
}

// PlanByType looks up a plan in the catalog.
func PlanByType(planType string) (Plan, error) {
	for _, p := range Plans {
		if p.Type == planType {
			return p, nil
		}
	}
	return Plan{}, ErrUnknownPlan
}

// PriceFor returns the plan price and currency for a country code.
func (p Plan) PriceFor(country string) (float64, string) {
	if country == "IN" {
		return p.PriceINR, "INR"
	}
	return p.PriceUSD, "USD"
}

// Subscription is one subscription row.
type Subscription struct {
	ID            string
	UserID        string
	PlanType      string
	Status        string
	StartsAt      time.Time
	ExpiresAt     time.Time
	Amount        float64
	Currency      string
	PaymentMethod string
	PaymentID     string
}

// Active reports whether the subscription currently grants entitlements.
// Cancelled plans stay active until their paid period runs out.
func (s *Subscription) Active(now time.Time) bool {
	return s.Status != StatusExpired && s.ExpiresAt.After(now)
}
