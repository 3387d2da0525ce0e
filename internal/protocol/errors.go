package protocol

// ErrorKind classifies a failure so callers can branch on category instead of
// parsing messages.
type ErrorKind string

const (
	// ErrKindTransport covers channel closures and timeouts; recoverable,
	// triggers reconnect/backoff.
	ErrKindTransport ErrorKind = "transport"
	// ErrKindValidation covers bad credentials and malformed envelopes;
	// terminal for the attempt, not retried automatically.
	ErrKindValidation ErrorKind = "validation"
	// ErrKindProvisioning covers driver install failures; reported as a
	// structured result, never crashes the agent.
	ErrKindProvisioning ErrorKind = "provisioning"
	// ErrKindTelemetry covers per-metric SNMP failures; escalates only after
	// repeated consecutive whole-poll failures.
	ErrKindTelemetry ErrorKind = "telemetry"
)

// KindError carries a category alongside the underlying error.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error { return e.Err }

func NewKindError(kind ErrorKind, err error) *KindError {
	return &KindError{Kind: kind, Err: err}
}
