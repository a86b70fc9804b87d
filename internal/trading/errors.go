package trading

import "errors"

var (
	// ErrAlreadyProcessed means another worker claimed the signal or trade
	// first; the losing caller must not act on it again.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrBrokerPlacement means the exchange rejected the order after the
	// signal was claimed for execution.
	ErrBrokerPlacement = errors.New("broker placement failed")
)
