package ethsim

type errKind uint8

// Errors common to frame construction and queue handling.
const (
	_                 errKind = iota // non-initialized err
	ErrMalformedFrame                // no SFD within scan window
	ErrInvalidLength                 // payload length out of range
	ErrQueueFull                     // occupancy limit reached
	ErrQueueEmpty                    // nothing queued
)

func (err errKind) Error() string {
	return err.String()
}

func (err errKind) String() string {
	switch err {
	case ErrMalformedFrame:
		return "ethsim: no SFD within scan window"
	case ErrInvalidLength:
		return "ethsim: payload length out of range"
	case ErrQueueFull:
		return "ethsim: occupancy limit reached"
	case ErrQueueEmpty:
		return "ethsim: nothing queued"
	}
	return "ethsim: unknown error"
}
