// Package billing prices plans, talks to the card payment provider and
// interprets bank-transfer notifications.
package billing

import (
	"regexp"
	"strings"

	"github.com/aether-os/engine/internal/models"
	"github.com/google/uuid"
)

// Price is what a plan costs through card checkout.
type Price struct {
	Plan     string
	Amount   int64 // cents
	Currency string
	Name     string
	Features []string
}

var prices = map[string]Price{
	models.PlanPro: {
		Plan: models.PlanPro, Amount: 1200, Currency: "usd", Name: "Pro Architect",
		Features: []string{"Unlimited Projects", "Claude 3.5 Sonnet", "Priority Build Queue"},
	},
	models.PlanEnterprise: {
		Plan: models.PlanEnterprise, Amount: 4000, Currency: "usd", Name: "Enterprise Core",
		Features: []string{"Self-Healing Deployment", "GPT-4-Turbo Access", "Dedicated Oracle DB", "SLA 99.9%"},
	},
}

// PriceFor returns the price of plan. Unknown plans are priced as pro.
func PriceFor(plan string) Price {
	if p, ok := prices[plan]; ok {
		return p
	}
	return prices[models.PlanPro]
}

// Bank transfer thresholds, in VND. Gateways may send fractional amounts.
const (
	ProTransferMin        float64 = 200_000
	EnterpriseTransferMin float64 = 2_000_000
)

var userIDPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// Transfer reasons a notification is acknowledged without changing anything.
const (
	IgnoredNoUser       = "Ignored: No User ID found"
	IgnoredInsufficient = "Ignored: Insufficient amount"
)

// TransferDecision is the outcome of reading a bank-transfer notification.
// When Ignored is non-empty nothing must be written.
type TransferDecision struct {
	UserID  uuid.UUID
	Plan    string
	Ignored string
}

// ResolveTransfer extracts the paying user from the transfer memo and picks
// the plan the amount buys.
func ResolveTransfer(content string, amount float64) TransferDecision {
	match := userIDPattern.FindString(content)
	if match == "" {
		return TransferDecision{Ignored: IgnoredNoUser}
	}
	id, err := uuid.Parse(match)
	if err != nil {
		return TransferDecision{Ignored: IgnoredNoUser}
	}
	switch {
	case amount >= EnterpriseTransferMin:
		return TransferDecision{UserID: id, Plan: models.PlanEnterprise}
	case amount >= ProTransferMin:
		return TransferDecision{UserID: id, Plan: models.PlanPro}
	default:
		return TransferDecision{UserID: id, Ignored: IgnoredInsufficient}
	}
}

// MemoPlan reads a plan keyword from a payment memo such as "AETHER-PRO-001".
// ENTERPRISE wins over PRO; anything else is free.
func MemoPlan(content string) string {
	switch {
	case strings.Contains(content, "ENTERPRISE"):
		return models.PlanEnterprise
	case strings.Contains(content, "PRO"):
		return models.PlanPro
	default:
		return models.PlanFree
	}
}
