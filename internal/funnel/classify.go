// Package funnel normalizes free-text CRM stage names into the fixed set of
// funnel categories the aggregates are keyed by.
package funnel

import "strings"

// Category is one of the canonical funnel categories a CRM stage maps to.
type Category string

const (
	BookedAppointment Category = "booked_appointment"
	CallCompleted     Category = "call_completed"
	Deposit           Category = "deposit"
	CashCollected     Category = "cash_collected"
	NoShow            Category = "no_show_cancelled_disqualified"
	Other             Category = "other"
)

// Monetizable reports whether events in this category carry a monetary value
// into the bucket's cash accumulator.
func (c Category) Monetizable() bool {
	return c == Deposit || c == CashCollected
}

// exactStages maps well-known stage labels (lowercased, trimmed) directly to
// a category. Checked before any keyword matching.
var exactStages = map[string]Category{
	"booked appointment":    BookedAppointment,
	"appointment booked":    BookedAppointment,
	"demo scheduled":        BookedAppointment,
	"call booked":           BookedAppointment,
	"call completed":        CallCompleted,
	"completed call":        CallCompleted,
	"deposit":               Deposit,
	"deposit received":      Deposit,
	"deposit paid":          Deposit,
	"cash collected":        CashCollected,
	"payment received":      CashCollected,
	"paid in full":          CashCollected,
	"won":                   CashCollected,
	"closed won":            CashCollected,
	"no show":               NoShow,
	"no-show":               NoShow,
	"cancelled":             NoShow,
	"canceled":              NoShow,
	"disqualified":          NoShow,
	"lost":                  NoShow,
	"closed lost":           NoShow,
	"new lead":              Other,
	"new opportunity":       Other,
	"nurture":               Other,
	"follow up":             Other,
}

// keywordRule is one substring rule in the fallback pass.
type keywordRule struct {
	category Category
	keywords []string
}

// keywordRules are checked in fixed priority order so that a stage containing
// keywords from two categories resolves deterministically. Disqualifying
// stages outrank booking stages so "cancelled appointment" lands in NoShow.
var keywordRules = []keywordRule{
	{NoShow, []string{"no show", "no-show", "cancelled", "canceled", "disqualified", "lost", "reschedule"}},
	{CashCollected, []string{"cash collected", "payment received", "paid"}},
	{Deposit, []string{"deposit"}},
	{CallCompleted, []string{"call completed", "completed call", "call done"}},
	{BookedAppointment, []string{"booked", "appointment", "scheduled"}},
}

// Classify maps a free-text stage name to exactly one category. Stage names
// are set by CRM administrators and drift over time, so unknown input always
// classifies as Other, never errors.
func Classify(stageName string) Category {
	name := strings.ToLower(strings.TrimSpace(stageName))
	if name == "" {
		return Other
	}

	if cat, ok := exactStages[name]; ok {
		return cat
	}

	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.category
			}
		}
	}

	return Other
}
