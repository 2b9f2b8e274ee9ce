package domain

import "github.com/google/uuid"

// ObjectID is the canonical identifier for a stored object: a 128-bit value
// assigned at creation time.
type ObjectID string

// NewObjectID generates a fresh random 128-bit ObjectID.
func NewObjectID() (ObjectID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return ObjectID(id.String()), nil
}

// ParseObjectID validates s and returns it as an ObjectID. s must be a UUID
// in its canonical lowercase hyphenated form; anything else returns
// ErrInvalidID.
func ParseObjectID(s string) (ObjectID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u.String() != s {
		return "", ErrInvalidID
	}
	return ObjectID(s), nil
}

// String returns the string form of the ObjectID.
func (id ObjectID) String() string { return string(id) }

// Valid reports whether id is a well-formed ObjectID.
func (id ObjectID) Valid() bool {
	_, err := ParseObjectID(string(id))
	return err == nil
}
