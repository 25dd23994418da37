package solve

import "fmt"

// NumericalError wraps a fatal failure from the matrix engine (an element
// overflow) encountered while evaluating a path's transfer matrices,
// tagging it for the CLI's exit-code mapping.
type NumericalError struct {
	Msg   string
	Inner error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error: %s: %v", e.Msg, e.Inner)
}

func (e *NumericalError) Unwrap() error { return e.Inner }

func wrapNumerical(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &NumericalError{Msg: msg, Inner: err}
}
