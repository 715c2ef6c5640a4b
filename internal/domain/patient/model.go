package patient

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/rules"
)

const entity = "patient"

type Patient struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender"`
	Phone          string    `json:"phone"`
	Email          *string   `json:"email"`
	BloodGroup     *string   `json:"blood_group"`
	Address        *string   `json:"address"`
	MedicalHistory *string   `json:"medical_history"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Patch carries the fields of an update. Nil fields are left alone; an empty
// string clears an optional field.
type Patch struct {
	Name           *string `json:"name"`
	Age            *int    `json:"age"`
	Gender         *string `json:"gender"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email"`
	BloodGroup     *string `json:"blood_group"`
	Address        *string `json:"address"`
	MedicalHistory *string `json:"medical_history"`
}

func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply copies the supplied fields onto pt.
func (p Patch) Apply(pt *Patient) {
	if p.Name != nil {
		pt.Name = *p.Name
	}
	if p.Age != nil {
		pt.Age = *p.Age
	}
	if p.Gender != nil {
		pt.Gender = *p.Gender
	}
	if p.Phone != nil {
		pt.Phone = *p.Phone
	}
	if p.Email != nil {
		pt.Email = optional(*p.Email)
	}
	if p.BloodGroup != nil {
		pt.BloodGroup = optional(*p.BloodGroup)
	}
	if p.Address != nil {
		pt.Address = optional(*p.Address)
	}
	if p.MedicalHistory != nil {
		pt.MedicalHistory = optional(*p.MedicalHistory)
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Normalize trims free text and drops blank optional fields.
func (pt *Patient) Normalize() {
	pt.Name = strings.TrimSpace(pt.Name)
	pt.Phone = strings.TrimSpace(pt.Phone)
	pt.Gender = strings.TrimSpace(pt.Gender)
	for _, f := range []**string{&pt.Email, &pt.BloodGroup, &pt.Address, &pt.MedicalHistory} {
		if *f != nil {
			*f = optional(**f)
		}
	}
	if pt.Email != nil {
		lower := strings.ToLower(*pt.Email)
		pt.Email = &lower
	}
	if pt.BloodGroup != nil {
		upper := strings.ToUpper(*pt.BloodGroup)
		pt.BloodGroup = &upper
	}
}

func (pt *Patient) Validate() error {
	if pt.Name == "" {
		return apperr.Validation(entity, "name", "is required")
	}
	if utf8.RuneCountInString(pt.Name) > 100 {
		return apperr.Validation(entity, "name", "must be at most 100 characters")
	}
	if pt.Age < 1 || pt.Age > 150 {
		return apperr.Validation(entity, "age", "must be between 1 and 150, got %d", pt.Age)
	}
	if !rules.ValidGender(pt.Gender) {
		return apperr.Validation(entity, "gender", "must be Male, Female or Other, got %q", pt.Gender)
	}
	if !rules.ValidPhone(pt.Phone) {
		return apperr.Validation(entity, "phone", "must be 10 digits starting with 6-9, got %q", pt.Phone)
	}
	if pt.Email != nil && !rules.ValidEmail(*pt.Email) {
		return apperr.Validation(entity, "email", "%q is not a valid email address", *pt.Email)
	}
	if pt.BloodGroup != nil && !rules.ValidBloodGroup(*pt.BloodGroup) {
		return apperr.Validation(entity, "blood_group", "unknown blood group %q", *pt.BloodGroup)
	}
	return nil
}

// Filter selects patients for List. Zero fields match everything.
type Filter struct {
	Name       string
	Phone      string
	Gender     string
	BloodGroup string
	Limit      int
	Offset     int
}
