package rendezvous

// Kind is the terminal result of one authorization attempt.
type Kind int

const (
	Authorized Kind = iota + 1
	Denied
	TimedOut
)

func (k Kind) String() string {
	switch k {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	case TimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Outcome of Authorize or AwaitSession. Denied and TimedOut are results,
// not errors; the caller decides whether to start a new attempt.
type Outcome struct {
	Kind Kind
	// SessionID is empty on the already-authorized fast path.
	SessionID string
	// Token is the delegated token, set only for Authorized.
	Token string
	// Reason is the completion handler's reason, set only for Denied.
	Reason string
}
