// Package domain defines typed identifiers shared across features.
//
// IDs are distinct named types over uuid.UUID so a TenantID can never be
// passed where a UserID is expected. Parsing enforces the trust-boundary
// invariant that IDs are valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "punchgate/pkg/domain-errors"
)

type (
	// UserID identifies a user account.
	UserID uuid.UUID
	// SessionID identifies an authenticated session.
	SessionID uuid.UUID
	// TenantID identifies a tenant organization.
	TenantID uuid.UUID
	// TimecardID identifies a timecard within a tenant datastore.
	TimecardID uuid.UUID
	// PunchID identifies a single time punch on a timecard.
	PunchID uuid.UUID
	// BatchID identifies a payroll batch.
	BatchID uuid.UUID
)

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id TenantID) String() string   { return uuid.UUID(id).String() }
func (id TimecardID) String() string { return uuid.UUID(id).String() }
func (id PunchID) String() string    { return uuid.UUID(id).String() }
func (id BatchID) String() string    { return uuid.UUID(id).String() }

// MarshalText/UnmarshalText make typed IDs render as canonical UUID strings
// in JSON and other text-based encodings.

func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id SessionID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id TenantID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id TimecardID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PunchID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id BatchID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = UserID(parsed)
	return nil
}

func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = SessionID(parsed)
	return nil
}

func (id *TenantID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = TenantID(parsed)
	return nil
}

func (id *TimecardID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = TimecardID(parsed)
	return nil
}

func (id *PunchID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = PunchID(parsed)
	return nil
}

func (id *BatchID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = BatchID(parsed)
	return nil
}

func (id UserID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TimecardID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id PunchID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	return UserID(parsed), err
}

// ParseSessionID parses and validates a session ID from its string form.
func ParseSessionID(raw string) (SessionID, error) {
	parsed, err := parseUUID(raw)
	return SessionID(parsed), err
}

// ParseTenantID parses and validates a tenant ID from its string form.
func ParseTenantID(raw string) (TenantID, error) {
	parsed, err := parseUUID(raw)
	return TenantID(parsed), err
}

// ParseTimecardID parses and validates a timecard ID from its string form.
func ParseTimecardID(raw string) (TimecardID, error) {
	parsed, err := parseUUID(raw)
	return TimecardID(parsed), err
}

// ParsePunchID parses and validates a punch ID from its string form.
func ParsePunchID(raw string) (PunchID, error) {
	parsed, err := parseUUID(raw)
	return PunchID(parsed), err
}

// ParseBatchID parses and validates a batch ID from its string form.
func ParseBatchID(raw string) (BatchID, error) {
	parsed, err := parseUUID(raw)
	return BatchID(parsed), err
}
