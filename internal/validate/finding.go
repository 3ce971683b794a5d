package validate

import "fmt"

// Severity ranks a finding. A blocking finding pins the session in its
// validated state until the parameters change; warnings and infos are
// shown to the operator but never gate confirmation.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Finding is one issue raised against a parameter set. Field is empty for
// cross-field findings.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	if f.Field == "" {
		return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Rule, f.Message)
	}
	return fmt.Sprintf("[%s] %s %s: %s", f.Severity, f.Rule, f.Field, f.Message)
}

// HasBlocking reports whether any finding in the list blocks confirmation.
func HasBlocking(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

// Blocking filters the list down to the blocking findings.
func Blocking(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Severity == SeverityBlocking {
			out = append(out, f)
		}
	}
	return out
}
