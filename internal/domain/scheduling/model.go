package scheduling

import (
	"strings"
	"time"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/rules"
)

const entity = "appointment"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Appointment is a booking of a patient with a doctor. Date and Time are
// wall-clock values in the hospital's local calendar.
type Appointment struct {
	ID        string                  `json:"id"`
	PatientID string                  `json:"patient_id"`
	DoctorID  string                  `json:"doctor_id"`
	Date      string                  `json:"date"`
	Time      string                  `json:"time"`
	Reason    string                  `json:"reason"`
	Status    rules.AppointmentStatus `json:"status"`
	Notes     *string                 `json:"notes"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type Patch struct {
	PatientID *string                  `json:"patient_id"`
	DoctorID  *string                  `json:"doctor_id"`
	Date      *string                  `json:"date"`
	Time      *string                  `json:"time"`
	Reason    *string                  `json:"reason"`
	Status    *rules.AppointmentStatus `json:"status"`
	Notes     *string                  `json:"notes"`
}

func (p Patch) Empty() bool {
	return p == Patch{}
}

func (p Patch) Apply(a *Appointment) {
	if p.PatientID != nil {
		a.PatientID = *p.PatientID
	}
	if p.DoctorID != nil {
		a.DoctorID = *p.DoctorID
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Reason != nil {
		a.Reason = *p.Reason
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Notes != nil {
		n := *p.Notes
		a.Notes = &n
	}
}

// Normalize trims text, defaults the status and rewrites the clock time as
// HH:MM so equal slots compare equal.
func (a *Appointment) Normalize() {
	a.PatientID = strings.TrimSpace(a.PatientID)
	a.DoctorID = strings.TrimSpace(a.DoctorID)
	a.Date = strings.TrimSpace(a.Date)
	a.Reason = strings.TrimSpace(a.Reason)
	if a.Status == "" {
		a.Status = rules.AppointmentPending
	}
	if a.Notes != nil {
		if n := strings.TrimSpace(*a.Notes); n == "" {
			a.Notes = nil
		} else {
			a.Notes = &n
		}
	}
	if t, err := ParseClock(a.Time); err == nil {
		a.Time = t.Format(TimeLayout)
	}
}

// sameContent reports whether a and b hold the same data. Notes compare by
// text, not by pointer.
func (a *Appointment) sameContent(b *Appointment) bool {
	x, y := *a, *b
	x.Notes, y.Notes = nil, nil
	if x != y {
		return false
	}
	if a.Notes == nil || b.Notes == nil {
		return a.Notes == b.Notes
	}
	return *a.Notes == *b.Notes
}

// movedField names the first of patient_id, doctor_id, date and time that
// differs between a and b, or returns "".
func movedField(a, b *Appointment) string {
	switch {
	case a.PatientID != b.PatientID:
		return "patient_id"
	case a.DoctorID != b.DoctorID:
		return "doctor_id"
	case a.Date != b.Date:
		return "date"
	case a.Time != b.Time:
		return "time"
	}
	return ""
}

// ParseClock accepts HH:MM or HH:MM:SS.
func ParseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
	}
	return t, err
}

func (a *Appointment) Validate() error {
	if a.PatientID == "" {
		return apperr.Validation(entity, "patient_id", "is required")
	}
	if a.DoctorID == "" {
		return apperr.Validation(entity, "doctor_id", "is required")
	}
	if _, err := time.Parse(DateLayout, a.Date); err != nil {
		return apperr.Validation(entity, "date", "expected YYYY-MM-DD, got %q", a.Date)
	}
	if _, err := ParseClock(a.Time); err != nil {
		return apperr.Validation(entity, "time", "expected HH:MM, got %q", a.Time)
	}
	if a.Reason == "" {
		return apperr.Validation(entity, "reason", "is required")
	}
	if !a.Status.Valid() {
		return apperr.Validation(entity, "status", "unknown status %q", a.Status)
	}
	return nil
}

// Filter selects appointments for List. From and To are inclusive dates.
type Filter struct {
	PatientID string
	DoctorID  string
	Status    rules.AppointmentStatus
	Statuses  []rules.AppointmentStatus
	From      string
	To        string
	// Time narrows to one HH:MM clock time.
	Time      string
	Limit     int
	Offset    int
	// Ascending orders by date and time from the earliest; the default is
	// newest first.
	Ascending bool
}

// Availability answers whether a doctor can take a booking at a slot.
type Availability struct {
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
