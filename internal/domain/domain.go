package domain

import (
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
	// RoleTeacher is the two-role name for the log owner; it is read as mentee.
	RoleTeacher Role = "teacher"
)

// ParseRole maps a wire role onto the three-role vocabulary. Matching is
// case-sensitive; unknown roles are kept verbatim so the policy can reject them.
func ParseRole(s string) Role {
	if Role(s) == RoleTeacher {
		return RoleMentee
	}
	return Role(s)
}

// Known reports whether r is one of admin, mentor, mentee.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleMentor, RoleMentee:
		return true
	}
	return false
}

// BaseActivity is shared by every repeatable section record.
type BaseActivity struct {
	DateYearOne     string `json:"dateYearOne"`
	DateYearTwo     string `json:"dateYearTwo"`
	InitialsYearOne string `json:"initialsYearOne"`
	InitialsYearTwo string `json:"initialsYearTwo"`
}

// Base exposes the shared columns of any record embedding BaseActivity.
func (b *BaseActivity) Base() *BaseActivity { return b }

type SummerAcademyDay struct {
	Day string `json:"day"`
	BaseActivity
}

type InductionSeminar struct {
	Number int    `json:"number"`
	Topic  string `json:"topic"`
	BaseActivity
}

type MentorMeeting struct {
	Date  string `json:"date"`
	Topic string `json:"topic"`
	BaseActivity
}

type TeamMeeting struct {
	Date  string `json:"date"`
	Topic string `json:"topic"`
	BaseActivity
}

type ClassroomVisit struct {
	Date    string `json:"date"`
	Teacher string `json:"teacher"`
	Subject string `json:"subject"`
	BaseActivity
}

type OtherActivity struct {
	Date     string `json:"date"`
	Activity string `json:"activity"`
	BaseActivity
}

type Signatures struct {
	MentorTeacher     string `json:"mentorTeacher"`
	BuildingPrincipal string `json:"buildingPrincipal"`
	Superintendent    string `json:"superintendent"`
	Date              string `json:"date"`
}

// FormData is the whole induction log document.
type FormData struct {
	Inductee          string             `json:"inductee"`
	Building          string             `json:"building"`
	Assignment        string             `json:"assignment"`
	MentorTeacher     string             `json:"mentorTeacher"`
	SchoolYearOne     string             `json:"schoolYearOne"`
	SchoolYearTwo     string             `json:"schoolYearTwo"`
	SummerAcademy     []SummerAcademyDay `json:"summerAcademy"`
	InductionSeminars []InductionSeminar `json:"inductionSeminars"`
	MentorMeetings    []MentorMeeting    `json:"mentorMeetings"`
	TeamMeetings      []TeamMeeting      `json:"teamMeetings"`
	ClassroomVisits   []ClassroomVisit   `json:"classroomVisits"`
	OtherActivities   []OtherActivity    `json:"otherActivities"`
	Signatures        Signatures         `json:"signatures"`
}

// Option is one pick-list entry. The host sends either {"name","dcid"}
// objects or bare strings.
type Option struct {
	Name string `json:"name"`
	DCID string `json:"dcid"`
}

func (o *Option) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.Name, o.DCID = s, s
		return nil
	}
	type plain Option
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("option: %w", err)
	}
	*o = Option(p)
	return nil
}

type FormOptions struct {
	Mentors     []Option `json:"mentors"`
	Buildings   []Option `json:"buildings"`
	Assignments []Option `json:"assignments"`
	SchoolYears []Option `json:"schoolYears"`
}

type Verifications struct {
	SummerAcademy     bool `json:"summerAcademy"`
	InductionSeminars bool `json:"inductionSeminars"`
	MentorMeetings    bool `json:"mentorMeetings"`
	TeamMeetings      bool `json:"teamMeetings"`
	ClassroomVisits   bool `json:"classroomVisits"`
	OtherActivities   bool `json:"otherActivities"`
}

// Editability is the legacy per-section flag shape kept for wire consumers.
type Editability struct {
	Inductee          bool          `json:"inductee"`
	Building          bool          `json:"building"`
	Assignment        bool          `json:"assignment"`
	MentorTeacher     bool          `json:"mentorTeacher"`
	SchoolYearOne     bool          `json:"schoolYearOne"`
	SchoolYearTwo     bool          `json:"schoolYearTwo"`
	SummerAcademy     bool          `json:"summerAcademy"`
	InductionSeminars bool          `json:"inductionSeminars"`
	MentorMeetings    bool          `json:"mentorMeetings"`
	TeamMeetings      bool          `json:"teamMeetings"`
	ClassroomVisits   bool          `json:"classroomVisits"`
	OtherActivities   bool          `json:"otherActivities"`
	Signatures        bool          `json:"signatures"`
	Verifications     Verifications `json:"verifications"`
}

// JSONClobEntry is one element of the array-wrapped wire format.
type JSONClobEntry struct {
	JSONClob string `json:"JSON_CLOB"`
}

// RawFormConfig is what the host hands over at load time. Data is kept raw
// because it is either a FormData object or a [{"JSON_CLOB": "..."}] array.
type RawFormConfig struct {
	UserRole string          `json:"userRole"`
	Options  FormOptions     `json:"options"`
	Editable Editability     `json:"editable"`
	Data     json.RawMessage `json:"data"`
}

// FormConfig is the resolved session configuration.
type FormConfig struct {
	UserRole Role        `json:"userRole"`
	Options  FormOptions `json:"options"`
	Editable Editability `json:"editable"`
	Data     FormData    `json:"data"`
}

// LogSummary describes a stored induction log without its document.
type LogSummary struct {
	ID            string `json:"id"`
	Inductee      string `json:"inductee"`
	Building      string `json:"building"`
	SchoolYearOne string `json:"school_year_one"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

// APIKey lets an integration act as ActorID with Role. Only the hash of
// the key is stored.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Role      Role   `json:"role"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	LogID      string `json:"log_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
