package diag

// Severity orders diagnostics; a tree is erroneous when it carries SevError.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// ParseSeverity is the inverse of String; unknown names map to SevError.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "info":
		return SevInfo, true
	case "warning":
		return SevWarning, true
	case "error":
		return SevError, true
	}
	return SevError, false
}
