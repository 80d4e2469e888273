package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ExactStages(t *testing.T) {
	assert.Equal(t, BookedAppointment, Classify("Booked Appointment"))
	assert.Equal(t, CallCompleted, Classify("Call Completed"))
	assert.Equal(t, Deposit, Classify("Deposit Received"))
	assert.Equal(t, CashCollected, Classify("Cash Collected"))
	assert.Equal(t, CashCollected, Classify("Closed Won"))
	assert.Equal(t, NoShow, Classify("Disqualified"))
}

func TestClassify_ExactBeatsKeyword(t *testing.T) {
	// "call booked" contains the Booked keyword and the call-completed
	// keyword prefix; the exact table resolves it first.
	assert.Equal(t, BookedAppointment, Classify("Call Booked"))
}

func TestClassify_KeywordFallback(t *testing.T) {
	assert.Equal(t, BookedAppointment, Classify("Strategy Session Scheduled"))
	assert.Equal(t, Deposit, Classify("Collected deposit - pending contract"))
	assert.Equal(t, CashCollected, Classify("Client paid remainder"))
	assert.Equal(t, NoShow, Classify("Needs reschedule"))
}

func TestClassify_KeywordPriority(t *testing.T) {
	// Contains both a no-show keyword and a booking keyword; no-show rules
	// are checked first.
	assert.Equal(t, NoShow, Classify("Cancelled Appointment"))
	// Contains both "paid" and "deposit"; cash rules outrank deposit rules.
	assert.Equal(t, CashCollected, Classify("deposit paid in advance"))
}

func TestClassify_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t, Deposit, Classify("  DEPOSIT RECEIVED  "))
}

func TestClassify_Totality(t *testing.T) {
	assert.Equal(t, Other, Classify(""))
	assert.Equal(t, Other, Classify("   "))
	assert.Equal(t, Other, Classify("Stage 7: quantum entanglement"))
	assert.Equal(t, Other, Classify("!!! hot lead !!!"))
}

func TestCategory_Monetizable(t *testing.T) {
	assert.True(t, Deposit.Monetizable())
	assert.True(t, CashCollected.Monetizable())
	assert.False(t, BookedAppointment.Monetizable())
	assert.False(t, Other.Monetizable())
}
