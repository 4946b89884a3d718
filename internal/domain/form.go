package domain

import (
	"fmt"
	"slices"
	"time"
)

const (
	fixedSectionSize = 4
)

// NewFormData returns the blank induction log template: four summer academy
// days, four numbered seminars and one empty row in each extensible section.
func NewFormData() FormData {
	d := FormData{
		SummerAcademy:     make([]SummerAcademyDay, 0, fixedSectionSize),
		InductionSeminars: make([]InductionSeminar, 0, fixedSectionSize),
		MentorMeetings:    []MentorMeeting{{}},
		TeamMeetings:      []TeamMeeting{{}},
		ClassroomVisits:   []ClassroomVisit{{}},
		OtherActivities:   []OtherActivity{{}},
	}
	for i := 1; i <= fixedSectionSize; i++ {
		d.SummerAcademy = append(d.SummerAcademy, SummerAcademyDay{Day: fmt.Sprintf("Day %d", i)})
		d.InductionSeminars = append(d.InductionSeminars, InductionSeminar{Number: i})
	}
	return d
}

// NewEditability returns the default flag set: every section editable,
// no verification column editable.
func NewEditability() Editability {
	return Editability{
		Inductee:          true,
		Building:          true,
		Assignment:        true,
		MentorTeacher:     true,
		SchoolYearOne:     true,
		SchoolYearTwo:     true,
		SummerAcademy:     true,
		InductionSeminars: true,
		MentorMeetings:    true,
		TeamMeetings:      true,
		ClassroomVisits:   true,
		OtherActivities:   true,
		Signatures:        true,
	}
}

// NewFormConfig returns a config around a blank document.
func NewFormConfig(role Role) FormConfig {
	return FormConfig{
		UserRole: role,
		Options:  FormOptions{},
		Editable: NewEditability(),
		Data:     NewFormData(),
	}
}

// Clone returns a copy of d that shares no slice backing arrays with it.
func (d FormData) Clone() FormData {
	out := d
	out.SummerAcademy = slices.Clone(d.SummerAcademy)
	out.InductionSeminars = slices.Clone(d.InductionSeminars)
	out.MentorMeetings = slices.Clone(d.MentorMeetings)
	out.TeamMeetings = slices.Clone(d.TeamMeetings)
	out.ClassroomVisits = slices.Clone(d.ClassroomVisits)
	out.OtherActivities = slices.Clone(d.OtherActivities)
	return out
}

// Normalize replaces nil section slices with empty ones so documents always
// serialise sections as arrays.
func (d FormData) Normalize() FormData {
	if d.SummerAcademy == nil {
		d.SummerAcademy = []SummerAcademyDay{}
	}
	if d.InductionSeminars == nil {
		d.InductionSeminars = []InductionSeminar{}
	}
	if d.MentorMeetings == nil {
		d.MentorMeetings = []MentorMeeting{}
	}
	if d.TeamMeetings == nil {
		d.TeamMeetings = []TeamMeeting{}
	}
	if d.ClassroomVisits == nil {
		d.ClassroomVisits = []ClassroomVisit{}
	}
	if d.OtherActivities == nil {
		d.OtherActivities = []OtherActivity{}
	}
	return d
}

func (o FormOptions) Clone() FormOptions {
	return FormOptions{
		Mentors:     slices.Clone(o.Mentors),
		Buildings:   slices.Clone(o.Buildings),
		Assignments: slices.Clone(o.Assignments),
		SchoolYears: slices.Clone(o.SchoolYears),
	}
}

// Clone deep-copies the config.
func (c FormConfig) Clone() FormConfig {
	out := c
	out.Options = c.Options.Clone()
	out.Data = c.Data.Clone()
	return out
}

// DefaultSchoolYears lists four school years starting the year before now,
// e.g. 2025-2026 .. 2028-2029 for a date in 2026.
func DefaultSchoolYears(now time.Time) []string {
	start := now.Year() - 1
	years := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		years = append(years, fmt.Sprintf("%d-%d", start+i, start+i+1))
	}
	return years
}
