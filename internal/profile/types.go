// Package profile owns user profiles and their field-level change history.
package profile

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Field names as they appear in request bodies and history rows.
const (
	FieldName         = "name"
	FieldAge          = "age"
	FieldGender       = "gender"
	FieldProfileImage = "profileImage"
)

var (
	ErrProfileNotFound   = errors.New("profile: not found")
	ErrTransactionFailed = errors.New("profile: transaction failed")
	ErrInvalidPatch      = errors.New("profile: invalid patch")
)

// Snapshot is the stored profile of one principal.
type Snapshot struct {
	PrincipalID  int64     `json:"userId"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Gender       string    `json:"gender"`
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Value returns the string form of field, the same form history rows use.
func (s Snapshot) Value(field string) (string, bool) {
	switch field {
	case FieldName:
		return s.Name, true
	case FieldAge:
		return strconv.Itoa(s.Age), true
	case FieldGender:
		return s.Gender, true
	case FieldProfileImage:
		return s.ProfileImage, true
	default:
		return "", false
	}
}

// Patch is a partial profile update; nil fields are left alone.
type Patch struct {
	Name         *string `json:"name,omitempty"`
	Age          *int    `json:"age,omitempty"`
	Gender       *string `json:"gender,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

// FieldValue is one present patch field in string form.
type FieldValue struct {
	Field string
	Value string
}

// Fields lists present fields in a fixed order.
func (p Patch) Fields() []FieldValue {
	out := make([]FieldValue, 0, 4)
	if p.Name != nil {
		out = append(out, FieldValue{FieldName, *p.Name})
	}
	if p.Age != nil {
		out = append(out, FieldValue{FieldAge, strconv.Itoa(*p.Age)})
	}
	if p.Gender != nil {
		out = append(out, FieldValue{FieldGender, *p.Gender})
	}
	if p.ProfileImage != nil {
		out = append(out, FieldValue{FieldProfileImage, *p.ProfileImage})
	}
	return out
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Age == nil && p.Gender == nil && p.ProfileImage == nil
}

// Validate rejects values no profile may hold.
func (p Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return errors.Join(ErrInvalidPatch, errors.New("name must not be blank"))
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > 200) {
		return errors.Join(ErrInvalidPatch, errors.New("age out of range"))
	}
	return nil
}

// ApplyTo returns s with the patch written over it.
func (p Patch) ApplyTo(s Snapshot) Snapshot {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Age != nil {
		s.Age = *p.Age
	}
	if p.Gender != nil {
		s.Gender = *p.Gender
	}
	if p.ProfileImage != nil {
		s.ProfileImage = *p.ProfileImage
	}
	return s
}

// HistoryEntry records one changed field. Entries are append-only.
type HistoryEntry struct {
	ID           int64     `json:"historyId"`
	PrincipalID  int64     `json:"userId"`
	ChangedField string    `json:"changedField"`
	OldValue     string    `json:"oldValue"`
	NewValue     string    `json:"newValue"`
	CreatedAt    time.Time `json:"createdAt"`
}
