package circuitbreaker

type State int

const (
	// StateClosed - provider calls pass through
	StateClosed State = iota

	// StateOpen - provider calls fail fast with ErrCircuitOpen
	StateOpen

	// StateHalfOpen - a trial call decides whether to close again
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
