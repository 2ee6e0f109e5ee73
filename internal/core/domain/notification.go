package domain

// Severity classifies a user-visible notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// String returns the string representation
func (s Severity) String() string {
	return string(s)
}

// Notification is a single message handed to a notification sink
type Notification struct {
	Message  string
	Severity Severity
}
