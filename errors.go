package ctrcia

import "fmt"

// Kind classifies an Error per spec.md §7. These are the five error kinds
// the orchestrator reasons about; they are not Go error *types*, just a
// small enum carried inside Error.
type Kind int

const (
	// InputMissing: TMD or content file absent, CIA truncated. Fatal for
	// the current command.
	InputMissing Kind = iota
	// FormatError: magic mismatch, size/offset overflow, misaligned
	// section, SeedDB entry not found. Fatal for the current content;
	// other contents continue only when decrypting and the failure is
	// localized to a non-mandatory (TMD optional-bit) content.
	FormatError
	// CryptoError: hash mismatch against the TMD. Warning by default,
	// fatal when a strict flag is set.
	CryptoError
	// IoError: read/write failure from the blob source/sink.
	IoError
	// Cancelled: external cancellation signal.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InputMissing:
		return "InputMissing"
	case FormatError:
		return "FormatError"
	case CryptoError:
		return "CryptoError"
	case IoError:
		return "IoError"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the structured error type propagated by the core. The
// orchestrator attaches ContentIndex/Region as it becomes aware of them;
// low-level components may leave those at their zero value.
type Error struct {
	Kind         Kind
	Message      string
	ContentIndex int
	HasContent   bool
	Region       string
	Err          error
}

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.HasContent {
		prefix = fmt.Sprintf("%s (content %d", prefix, e.ContentIndex)
		if e.Region != "" {
			prefix += ", " + e.Region
		}
		prefix += ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithContent returns a copy of e annotated with content/region context,
// the way the orchestrator attaches context to errors bubbling up from C3/C8.
func (e *Error) WithContent(index int, region string) *Error {
	clone := *e
	clone.ContentIndex = index
	clone.HasContent = true
	clone.Region = region
	return &clone
}
