package model

import (
	"time"
)

// ImplantDateLayout is the ISO 8601 calendar date carried on every record.
const ImplantDateLayout = "2006-01-02"

// ImplantRecord is one joint-replacement implant entry. The first six fields
// after ID are required and must be non-empty before a record is persisted.
type ImplantRecord struct {
	ID           string `json:"id"`
	Type         string `json:"type" validate:"required"`
	Manufacturer string `json:"manufacturer" validate:"required"`
	Model        string `json:"model" validate:"required"`
	SerialNumber string `json:"serialNumber" validate:"required"`
	ImplantDate  string `json:"implantDate" validate:"required"`
	Location     string `json:"location" validate:"required"`
	Surgeon      string `json:"surgeon,omitempty"`
	Hospital     string `json:"hospital,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// NormalizeImplantDate parses the record's implant date and rewrites it in
// canonical form. An unparsable date defaults to today.
func (r *ImplantRecord) NormalizeImplantDate(now time.Time) {
	if t, err := time.Parse(ImplantDateLayout, r.ImplantDate); err == nil {
		r.ImplantDate = t.Format(ImplantDateLayout)
		return
	}
	// Accept full timestamps from scanners that encode time of surgery.
	if t, err := time.Parse(time.RFC3339, r.ImplantDate); err == nil {
		r.ImplantDate = t.Format(ImplantDateLayout)
		return
	}
	r.ImplantDate = now.Format(ImplantDateLayout)
}

// ImplantDateTime returns the implant date as a time value, or the zero time
// when the stored string is not canonical.
func (r *ImplantRecord) ImplantDateTime() time.Time {
	t, err := time.Parse(ImplantDateLayout, r.ImplantDate)
	if err != nil {
		return time.Time{}
	}
	return t
}
