package ingest

import (
	"encoding/json"
	"fmt"

	"inductionlog/internal/domain"
)

// wireData mirrors FormData but keeps section rows raw so each record can be
// checked for the legacy verification column.
type wireData struct {
	Inductee          string            `json:"inductee"`
	Building          string            `json:"building"`
	Assignment        string            `json:"assignment"`
	MentorTeacher     string            `json:"mentorTeacher"`
	SchoolYearOne     string            `json:"schoolYearOne"`
	SchoolYearTwo     string            `json:"schoolYearTwo"`
	SummerAcademy     []json.RawMessage `json:"summerAcademy"`
	InductionSeminars []json.RawMessage `json:"inductionSeminars"`
	MentorMeetings    []json.RawMessage `json:"mentorMeetings"`
	TeamMeetings      []json.RawMessage `json:"teamMeetings"`
	ClassroomVisits   []json.RawMessage `json:"classroomVisits"`
	OtherActivities   []json.RawMessage `json:"otherActivities"`
	Signatures        domain.Signatures `json:"signatures"`
}

type legacyColumns struct {
	InitialsYearOne *string `json:"initialsYearOne"`
	InitialsYearTwo *string `json:"initialsYearTwo"`
	Verification    *string `json:"verification"`
}

type activity[T any] interface {
	*T
	Base() *domain.BaseActivity
}

// decodeRows decodes one section. A row with a verification value and
// neither initials key gets the value copied into both initials columns.
func decodeRows[T any, P activity[T]](section string, rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, r := range rows {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", section, i, err)
		}
		var legacy legacyColumns
		if err := json.Unmarshal(r, &legacy); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", section, i, err)
		}
		if legacy.Verification != nil && legacy.InitialsYearOne == nil && legacy.InitialsYearTwo == nil {
			b := P(&v).Base()
			b.InitialsYearOne = *legacy.Verification
			b.InitialsYearTwo = *legacy.Verification
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeFormData parses a document, upgrading legacy verification columns.
// Null or missing sections become empty.
func DecodeFormData(b []byte) (domain.FormData, error) {
	var w wireData
	if err := json.Unmarshal(b, &w); err != nil {
		return domain.FormData{}, err
	}
	d := domain.FormData{
		Inductee:      w.Inductee,
		Building:      w.Building,
		Assignment:    w.Assignment,
		MentorTeacher: w.MentorTeacher,
		SchoolYearOne: w.SchoolYearOne,
		SchoolYearTwo: w.SchoolYearTwo,
		Signatures:    w.Signatures,
	}
	var err error
	if d.SummerAcademy, err = decodeRows[domain.SummerAcademyDay]("summerAcademy", w.SummerAcademy); err != nil {
		return domain.FormData{}, err
	}
	if d.InductionSeminars, err = decodeRows[domain.InductionSeminar]("inductionSeminars", w.InductionSeminars); err != nil {
		return domain.FormData{}, err
	}
	if d.MentorMeetings, err = decodeRows[domain.MentorMeeting]("mentorMeetings", w.MentorMeetings); err != nil {
		return domain.FormData{}, err
	}
	if d.TeamMeetings, err = decodeRows[domain.TeamMeeting]("teamMeetings", w.TeamMeetings); err != nil {
		return domain.FormData{}, err
	}
	if d.ClassroomVisits, err = decodeRows[domain.ClassroomVisit]("classroomVisits", w.ClassroomVisits); err != nil {
		return domain.FormData{}, err
	}
	if d.OtherActivities, err = decodeRows[domain.OtherActivity]("otherActivities", w.OtherActivities); err != nil {
		return domain.FormData{}, err
	}
	return d.Normalize(), nil
}
