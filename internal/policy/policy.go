// Package policy decides which fields of an induction log a role may edit.
package policy

import (
	"fmt"

	"inductionlog/internal/domain"
)

// ForbiddenFieldError indicates that a role may not edit a field.
type ForbiddenFieldError struct {
	Role    domain.Role
	Section string
	Field   string
}

func (e ForbiddenFieldError) Error() string {
	return fmt.Sprintf("role %q may not edit %s.%s", e.Role, e.Section, e.Field)
}

// IsVerificationField reports whether key is one of the initials columns.
func IsVerificationField(key string) bool {
	switch key {
	case domain.KeyInitialsYearOne, domain.KeyInitialsYearTwo, domain.KeyVerification:
		return true
	}
	return false
}

// CanEdit is the field-level permission table. Admins edit everything,
// mentors only verification columns and signatures, mentees everything else.
// Any other role edits nothing.
func CanEdit(role domain.Role, sectionID, fieldKey string) bool {
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleMentor:
		return IsVerificationField(fieldKey) || sectionID == domain.SectionSignatures
	case domain.RoleMentee:
		return !IsVerificationField(fieldKey) && sectionID != domain.SectionSignatures
	default:
		return false
	}
}

// CanResize reports whether role may add or remove rows of a section. A
// row as a whole is treated as a field without a key.
func CanResize(role domain.Role, sectionID string) bool {
	return CanEdit(role, sectionID, "")
}

// Check returns a ForbiddenFieldError when role may not edit the field.
func Check(role domain.Role, sectionID, fieldKey string) error {
	if !CanEdit(role, sectionID, fieldKey) {
		return ForbiddenFieldError{Role: role, Section: sectionID, Field: fieldKey}
	}
	return nil
}

// ComputeEditabilityState derives the legacy flag set. Section flags are
// always on; verification columns are on for admins only.
//
// Deprecated: use CanEdit per field.
func ComputeEditabilityState(_ domain.Editability, role domain.Role) domain.Editability {
	out := domain.NewEditability()
	v := role == domain.RoleAdmin
	out.Verifications = domain.Verifications{
		SummerAcademy:     v,
		InductionSeminars: v,
		MentorMeetings:    v,
		TeamMeetings:      v,
		ClassroomVisits:   v,
		OtherActivities:   v,
	}
	return out
}

// Matrix evaluates CanEdit for every field of the document layout, keyed by
// section id then field key.
func Matrix(role domain.Role) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	put := func(section, field string) {
		if out[section] == nil {
			out[section] = map[string]bool{}
		}
		out[section][field] = CanEdit(role, section, field)
	}
	for _, f := range domain.CoverPageFields {
		put(domain.SectionCoverPage, f)
	}
	for _, s := range domain.Sections() {
		for _, f := range s.Fields {
			if f.Type == domain.FieldStatic {
				continue
			}
			put(s.ID, f.Key)
		}
	}
	for _, f := range domain.SignatureFields {
		put(domain.SectionSignatures, f)
	}
	return out
}
