package metering

// Outcome is the terminal state of a metered generation.
type Outcome int

// Terminal outcomes.
const (
	// OutcomeFailed means no deck was produced and nothing was charged.
	OutcomeFailed Outcome = iota
	// OutcomeSucceededDebited means the deck was produced and paid for.
	OutcomeSucceededDebited
	// OutcomeSucceededDebitFailed means the deck was produced but the charge
	// could not be recorded; the user still gets the deck.
	OutcomeSucceededDebitFailed
	// OutcomeSucceededUnmetered means the deck was produced for a subscriber
	// or at zero cost.
	OutcomeSucceededUnmetered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeSucceededDebited:
		return "succeeded_debited"
	case OutcomeSucceededDebitFailed:
		return "succeeded_debit_failed"
	case OutcomeSucceededUnmetered:
		return "succeeded_unmetered"
	}
	return "unknown"
}

// Succeeded reports whether a deck was delivered.
func (o Outcome) Succeeded() bool {
	return o != OutcomeFailed
}
