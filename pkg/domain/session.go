package domain

import (
	"errors"
	"strings"
)

// SessionKey uniquely identifies an experimental session.
type SessionKey struct {
	Subject         string
	SessionDatetime string
}

// Validate checks that both key attributes are present and that the datetime
// is parseable.
func (k SessionKey) Validate() error {
	if strings.TrimSpace(k.Subject) == "" {
		return errors.New("session key: subject is required")
	}
	if strings.TrimSpace(k.SessionDatetime) == "" {
		return errors.New("session key: session_datetime is required")
	}
	if _, err := ParseDatetime(k.SessionDatetime); err != nil {
		return errors.New("session key: " + err.Error())
	}
	return nil
}

// Row converts the key into a restriction row.
func (k SessionKey) Row() Row {
	return Row{"subject": k.Subject, "session_datetime": k.SessionDatetime}
}
