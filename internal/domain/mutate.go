package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrUnknownSection  = errors.New("unknown section")
	ErrFixedSection    = errors.New("section has a fixed number of rows")
	ErrStaticField     = errors.New("field is not editable")
	ErrUnknownField    = errors.New("unknown field")
	ErrIndexOutOfRange = errors.New("row index out of range")
)

// FieldRef addresses one field of the document. Index is ignored for the
// cover page and signatures.
type FieldRef struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Field   string `json:"field"`
}

func (r FieldRef) String() string {
	switch r.Section {
	case SectionCoverPage, SectionSignatures:
		return r.Section + "." + r.Field
	}
	return fmt.Sprintf("%s[%d].%s", r.Section, r.Index, r.Field)
}

// ParseFieldRef reads the String form back: "coverPage.inductee" or
// "mentorMeetings[2].topic".
func ParseFieldRef(s string) (FieldRef, error) {
	head, field, ok := strings.Cut(s, ".")
	if !ok || head == "" || field == "" {
		return FieldRef{}, fmt.Errorf("field reference %q: want section.field or section[i].field", s)
	}
	section, rest, indexed := strings.Cut(head, "[")
	if !indexed {
		return FieldRef{Section: section, Field: field}, nil
	}
	idx, err := strconv.Atoi(strings.TrimSuffix(rest, "]"))
	if err != nil || !strings.HasSuffix(rest, "]") || idx < 0 {
		return FieldRef{}, fmt.Errorf("field reference %q: bad row index", s)
	}
	return FieldRef{Section: section, Index: idx, Field: field}, nil
}

func appended[T any](s []T, v T) []T {
	out := make([]T, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

func without[T any](s []T, i int) []T {
	if i < 0 || i >= len(s) {
		return s
	}
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func AddMentorMeeting(d FormData) FormData {
	d.MentorMeetings = appended(d.MentorMeetings, MentorMeeting{})
	return d
}

func RemoveMentorMeeting(d FormData, index int) FormData {
	d.MentorMeetings = without(d.MentorMeetings, index)
	return d
}

func AddTeamMeeting(d FormData) FormData {
	d.TeamMeetings = appended(d.TeamMeetings, TeamMeeting{})
	return d
}

func RemoveTeamMeeting(d FormData, index int) FormData {
	d.TeamMeetings = without(d.TeamMeetings, index)
	return d
}

func AddClassroomVisit(d FormData) FormData {
	d.ClassroomVisits = appended(d.ClassroomVisits, ClassroomVisit{})
	return d
}

func RemoveClassroomVisit(d FormData, index int) FormData {
	d.ClassroomVisits = without(d.ClassroomVisits, index)
	return d
}

func AddOtherActivity(d FormData) FormData {
	d.OtherActivities = appended(d.OtherActivities, OtherActivity{})
	return d
}

func RemoveOtherActivity(d FormData, index int) FormData {
	d.OtherActivities = without(d.OtherActivities, index)
	return d
}

// AddEntry appends an empty row to an extensible section.
func AddEntry(d FormData, k SectionKind) (FormData, error) {
	a := k.Section().Actions
	if a == nil {
		return d, fmt.Errorf("%s: %w", k.ID(), ErrFixedSection)
	}
	return a.Add(d), nil
}

// RemoveEntry drops row index of an extensible section. An out-of-range index
// leaves the rows unchanged.
func RemoveEntry(d FormData, k SectionKind, index int) (FormData, error) {
	a := k.Section().Actions
	if a == nil {
		return d, fmt.Errorf("%s: %w", k.ID(), ErrFixedSection)
	}
	return a.Remove(d, index), nil
}

func (b *BaseActivity) field(key string) *string {
	switch key {
	case KeyDateYearOne:
		return &b.DateYearOne
	case KeyDateYearTwo:
		return &b.DateYearTwo
	case KeyInitialsYearOne:
		return &b.InitialsYearOne
	case KeyInitialsYearTwo:
		return &b.InitialsYearTwo
	}
	return nil
}

func (r *SummerAcademyDay) field(key string) *string {
	if key == "day" {
		return &r.Day
	}
	return r.BaseActivity.field(key)
}

func (r *InductionSeminar) field(key string) *string {
	if key == "topic" {
		return &r.Topic
	}
	return r.BaseActivity.field(key)
}

func (r *MentorMeeting) field(key string) *string {
	switch key {
	case "date":
		return &r.Date
	case "topic":
		return &r.Topic
	}
	return r.BaseActivity.field(key)
}

func (r *TeamMeeting) field(key string) *string {
	switch key {
	case "date":
		return &r.Date
	case "topic":
		return &r.Topic
	}
	return r.BaseActivity.field(key)
}

func (r *ClassroomVisit) field(key string) *string {
	switch key {
	case "date":
		return &r.Date
	case "teacher":
		return &r.Teacher
	case "subject":
		return &r.Subject
	}
	return r.BaseActivity.field(key)
}

func (r *OtherActivity) field(key string) *string {
	switch key {
	case "date":
		return &r.Date
	case "activity":
		return &r.Activity
	}
	return r.BaseActivity.field(key)
}

func (d *FormData) coverField(key string) *string {
	switch key {
	case "inductee":
		return &d.Inductee
	case "building":
		return &d.Building
	case "assignment":
		return &d.Assignment
	case "mentorTeacher":
		return &d.MentorTeacher
	case "schoolYearOne":
		return &d.SchoolYearOne
	case "schoolYearTwo":
		return &d.SchoolYearTwo
	}
	return nil
}

func (s *Signatures) field(key string) *string {
	switch key {
	case "mentorTeacher":
		return &s.MentorTeacher
	case "buildingPrincipal":
		return &s.BuildingPrincipal
	case "superintendent":
		return &s.Superintendent
	case "date":
		return &s.Date
	}
	return nil
}

type row[T any] interface {
	*T
	field(string) *string
}

func setRow[T any, P row[T]](s []T, i int, key, value string) ([]T, error) {
	if i < 0 || i >= len(s) {
		return nil, ErrIndexOutOfRange
	}
	out := slices.Clone(s)
	p := P(&out[i]).field(key)
	if p == nil {
		return nil, ErrUnknownField
	}
	*p = value
	return out, nil
}

func getRow[T any, P row[T]](s []T, i int, key string) (string, bool) {
	if i < 0 || i >= len(s) {
		return "", false
	}
	v := s[i]
	p := P(&v).field(key)
	if p == nil {
		return "", false
	}
	return *p, true
}

// FieldType returns the declared type of a field of section k.
func (k SectionKind) FieldType(key string) (FieldType, bool) {
	for _, f := range k.Section().Fields {
		if f.Key == key {
			return f.Type, true
		}
	}
	return "", false
}

// SetField returns a copy of d with one field replaced. Static columns
// (day, number) cannot be set.
func SetField(d FormData, ref FieldRef, value string) (FormData, error) {
	switch ref.Section {
	case SectionCoverPage:
		p := d.coverField(ref.Field)
		if p == nil {
			return d, fmt.Errorf("%s: %w", ref, ErrUnknownField)
		}
		*p = value
		return d, nil
	case SectionSignatures:
		p := d.Signatures.field(ref.Field)
		if p == nil {
			return d, fmt.Errorf("%s: %w", ref, ErrUnknownField)
		}
		*p = value
		return d, nil
	}
	k, ok := ParseSectionKind(ref.Section)
	if !ok {
		return d, fmt.Errorf("%s: %w", ref.Section, ErrUnknownSection)
	}
	ft, ok := k.FieldType(ref.Field)
	if !ok {
		return d, fmt.Errorf("%s: %w", ref, ErrUnknownField)
	}
	if ft == FieldStatic {
		return d, fmt.Errorf("%s: %w", ref, ErrStaticField)
	}
	var err error
	switch k {
	case SummerAcademy:
		d.SummerAcademy, err = setRow(d.SummerAcademy, ref.Index, ref.Field, value)
	case InductionSeminars:
		d.InductionSeminars, err = setRow(d.InductionSeminars, ref.Index, ref.Field, value)
	case MentorMeetings:
		d.MentorMeetings, err = setRow(d.MentorMeetings, ref.Index, ref.Field, value)
	case TeamMeetings:
		d.TeamMeetings, err = setRow(d.TeamMeetings, ref.Index, ref.Field, value)
	case ClassroomVisits:
		d.ClassroomVisits, err = setRow(d.ClassroomVisits, ref.Index, ref.Field, value)
	case OtherActivities:
		d.OtherActivities, err = setRow(d.OtherActivities, ref.Index, ref.Field, value)
	}
	if err != nil {
		return FormData{}, fmt.Errorf("%s: %w", ref, err)
	}
	return d, nil
}

// GetField reads one field of d.
func GetField(d FormData, ref FieldRef) (string, bool) {
	switch ref.Section {
	case SectionCoverPage:
		if p := d.coverField(ref.Field); p != nil {
			return *p, true
		}
		return "", false
	case SectionSignatures:
		if p := d.Signatures.field(ref.Field); p != nil {
			return *p, true
		}
		return "", false
	}
	k, ok := ParseSectionKind(ref.Section)
	if !ok {
		return "", false
	}
	switch k {
	case SummerAcademy:
		return getRow(d.SummerAcademy, ref.Index, ref.Field)
	case InductionSeminars:
		if ref.Field == "number" {
			if ref.Index < 0 || ref.Index >= len(d.InductionSeminars) {
				return "", false
			}
			return strconv.Itoa(d.InductionSeminars[ref.Index].Number), true
		}
		return getRow(d.InductionSeminars, ref.Index, ref.Field)
	case MentorMeetings:
		return getRow(d.MentorMeetings, ref.Index, ref.Field)
	case TeamMeetings:
		return getRow(d.TeamMeetings, ref.Index, ref.Field)
	case ClassroomVisits:
		return getRow(d.ClassroomVisits, ref.Index, ref.Field)
	case OtherActivities:
		return getRow(d.OtherActivities, ref.Index, ref.Field)
	}
	return "", false
}
