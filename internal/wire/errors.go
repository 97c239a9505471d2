package wire

import "fmt"

// Kind classifies pipeline failures. Configuration and calibration
// errors are fatal at construction; everything else is recovered
// locally and surfaces only through counters and logs.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindCalibration
	KindProcessing
	KindRules
	KindLogging
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindCalibration:
		return "calibration"
	case KindProcessing:
		return "processing"
	case KindRules:
		return "rules"
	case KindLogging:
		return "logging"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error in the manner of fmt.Errorf.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or KindUnknown if err is
// not a *Error.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if we, ok := err.(*Error); ok {
			e = we
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return KindUnknown
	}
	return e.Kind
}
