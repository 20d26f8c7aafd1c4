package event

import "time"

// TypeVerificationOutcome tags resolution events emitted by the
// verification flow.
const TypeVerificationOutcome = "verification_outcome"

// Verification outcomes.
const (
	OutcomePass       = "pass"
	OutcomeFail       = "fail"
	OutcomeTimeout    = "timeout"
	OutcomeAdminPass  = "admin_pass"
	OutcomeAdminKick  = "admin_kick"
	OutcomeAdminUnban = "admin_unban"
)

type VerificationOutcome struct {
	*Base
	ChatID  int64
	UserID  int64
	Outcome string
}

func NewVerificationOutcome(chatID, userID int64, outcome string) *VerificationOutcome {
	return &VerificationOutcome{
		Base:    CreateBase(TypeVerificationOutcome, time.Now().Add(time.Minute)),
		ChatID:  chatID,
		UserID:  userID,
		Outcome: outcome,
	}
}
