package sqlutil

import "github.com/google/uuid"

// Helper functions for converting between Go pointer types and nullable SQL
// column values.

// ToNullUUID converts a Go UUID pointer to uuid.NullUUID
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// FromNullUUID converts a uuid.NullUUID back to a Go UUID pointer
func FromNullUUID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	u := id.UUID
	return &u
}
