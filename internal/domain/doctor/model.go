package doctor

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/rules"
)

const entity = "doctor"

type Doctor struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Specialization  string             `json:"specialization"`
	Phone           string             `json:"phone"`
	Email           string             `json:"email"`
	Experience      int                `json:"experience"`
	Qualification   string             `json:"qualification"`
	ConsultationFee decimal.Decimal    `json:"consultation_fee"`
	Status          rules.DoctorStatus `json:"status"`
	Address         *string            `json:"address"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Patch carries the fields of an update. Nil fields are left alone.
type Patch struct {
	Name            *string             `json:"name"`
	Specialization  *string             `json:"specialization"`
	Phone           *string             `json:"phone"`
	Email           *string             `json:"email"`
	Experience      *int                `json:"experience"`
	Qualification   *string             `json:"qualification"`
	ConsultationFee *decimal.Decimal    `json:"consultation_fee"`
	Status          *rules.DoctorStatus `json:"status"`
	Address         *string             `json:"address"`
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Specialization == nil && p.Phone == nil && p.Email == nil &&
		p.Experience == nil && p.Qualification == nil && p.ConsultationFee == nil &&
		p.Status == nil && p.Address == nil
}

func (p Patch) Apply(d *Doctor) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Specialization != nil {
		d.Specialization = *p.Specialization
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.Email != nil {
		d.Email = *p.Email
	}
	if p.Experience != nil {
		d.Experience = *p.Experience
	}
	if p.Qualification != nil {
		d.Qualification = *p.Qualification
	}
	if p.ConsultationFee != nil {
		d.ConsultationFee = *p.ConsultationFee
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Address != nil {
		a := strings.TrimSpace(*p.Address)
		if a == "" {
			d.Address = nil
		} else {
			d.Address = &a
		}
	}
}

func (d *Doctor) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Specialization = strings.TrimSpace(d.Specialization)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Qualification = strings.TrimSpace(d.Qualification)
	if d.Status == "" {
		d.Status = rules.DoctorActive
	}
	if d.Address != nil {
		if a := strings.TrimSpace(*d.Address); a == "" {
			d.Address = nil
		} else {
			d.Address = &a
		}
	}
	d.ConsultationFee = rules.Round(d.ConsultationFee)
}

func (d *Doctor) Validate() error {
	switch {
	case d.Name == "":
		return apperr.Validation(entity, "name", "is required")
	case d.Specialization == "":
		return apperr.Validation(entity, "specialization", "is required")
	case d.Qualification == "":
		return apperr.Validation(entity, "qualification", "is required")
	}
	if !rules.ValidPhone(d.Phone) {
		return apperr.Validation(entity, "phone", "must be 10 digits starting with 6-9, got %q", d.Phone)
	}
	if !rules.ValidEmail(d.Email) {
		return apperr.Validation(entity, "email", "%q is not a valid email address", d.Email)
	}
	if d.Experience < 0 {
		return apperr.Validation(entity, "experience", "must not be negative")
	}
	if d.ConsultationFee.IsNegative() {
		return apperr.Validation(entity, "consultation_fee", "must not be negative")
	}
	if !d.Status.Valid() {
		return apperr.Validation(entity, "status", "must be Active, On Leave or Inactive, got %q", d.Status)
	}
	return nil
}

// Filter selects doctors for List. Zero fields match everything.
type Filter struct {
	Name           string
	Specialization string
	Status         rules.DoctorStatus
	Limit          int
	Offset         int
}

// SpecializationCount is one row of the specialization directory.
type SpecializationCount struct {
	Specialization string `json:"specialization"`
	Doctors        int    `json:"doctors"`
	Active         int    `json:"active"`
}
