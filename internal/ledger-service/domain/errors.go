package domain

import "errors"

// Tipos de erro expostos ao chamador; testar sempre com errors.Is
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNotFound          = errors.New("not found")
	ErrOptionInactive    = errors.New("betting option inactive")
	ErrEventNotWagerable = errors.New("event not wagerable")
	ErrOutOfBounds       = errors.New("stake out of bounds")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadySettled    = errors.New("already settled")
	ErrNotCancellable    = errors.New("not cancellable")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrResultConflict    = errors.New("result already reported with a different outcome")
	ErrOddsChanged       = errors.New("odds changed")
)

var codes = []struct {
	err  error
	code string
}{
	// AlreadySettled antes de NotCancellable: o cancelamento tardio embrulha os dois
	{ErrAlreadySettled, "ALREADY_SETTLED"},
	{ErrNotCancellable, "NOT_CANCELLABLE"},
	{ErrInvalidAmount, "INVALID_AMOUNT"},
	{ErrInvalidInput, "INVALID_INPUT"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrOptionInactive, "OPTION_INACTIVE"},
	{ErrEventNotWagerable, "EVENT_NOT_WAGERABLE"},
	{ErrOutOfBounds, "OUT_OF_BOUNDS"},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrInvalidTransition, "INVALID_TRANSITION"},
	{ErrResultConflict, "RESULT_CONFLICT"},
	{ErrOddsChanged, "ODDS_CHANGED"},
}

// Code devolve o código estável do erro para clientes e métricas
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}
