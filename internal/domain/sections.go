package domain

import "fmt"

// SectionKind enumerates the repeatable activity sections of the log.
type SectionKind int

const (
	SummerAcademy SectionKind = iota
	InductionSeminars
	MentorMeetings
	TeamMeetings
	ClassroomVisits
	OtherActivities
)

// Section ids for the non-repeatable parts of the document.
const (
	SectionCoverPage  = "coverPage"
	SectionSignatures = "signatures"
)

// Kinds lists the activity sections in document order.
var Kinds = []SectionKind{SummerAcademy, InductionSeminars, MentorMeetings, TeamMeetings, ClassroomVisits, OtherActivities}

var kindIDs = map[SectionKind]string{
	SummerAcademy:     "summerAcademy",
	InductionSeminars: "inductionSeminars",
	MentorMeetings:    "mentorMeetings",
	TeamMeetings:      "teamMeetings",
	ClassroomVisits:   "classroomVisits",
	OtherActivities:   "otherActivities",
}

// ID returns the section id used on the wire and by the policy.
func (k SectionKind) ID() string {
	if id, ok := kindIDs[k]; ok {
		return id
	}
	return fmt.Sprintf("section(%d)", int(k))
}

func (k SectionKind) String() string { return k.ID() }

// ParseSectionKind resolves a wire section id.
func ParseSectionKind(id string) (SectionKind, bool) {
	for k, v := range kindIDs {
		if v == id {
			return k, true
		}
	}
	return 0, false
}

type FieldType string

const (
	FieldStatic          FieldType = "static"
	FieldText            FieldType = "text"
	FieldDate            FieldType = "date"
	FieldInitialsYearOne FieldType = "initialsYearOne"
	FieldInitialsYearTwo FieldType = "initialsYearTwo"
)

// Field keys shared by every activity record.
const (
	KeyDateYearOne     = "dateYearOne"
	KeyDateYearTwo     = "dateYearTwo"
	KeyInitialsYearOne = "initialsYearOne"
	KeyInitialsYearTwo = "initialsYearTwo"
	// KeyVerification is the single-column predecessor of the two initials keys.
	KeyVerification = "verification"
)

type Field struct {
	Key         string    `json:"key"`
	Type        FieldType `json:"type"`
	Placeholder string    `json:"placeholder,omitempty"`
}

// Actions carries the row operations of an extensible section.
type Actions struct {
	AddLabel      string                       `json:"addLabel"`
	ConfirmRemove string                       `json:"confirmRemove"`
	Add           func(FormData) FormData      `json:"-"`
	Remove        func(FormData, int) FormData `json:"-"`
}

// Section describes how one activity section is laid out.
type Section struct {
	Kind    SectionKind `json:"-"`
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Headers []string    `json:"headers"`
	Fields  []Field     `json:"fields"`
	Actions *Actions    `json:"actions,omitempty"`
}

func trailingFields() []Field {
	return []Field{
		{Key: KeyDateYearOne, Type: FieldDate},
		{Key: KeyDateYearTwo, Type: FieldDate},
		{Key: KeyInitialsYearOne, Type: FieldInitialsYearOne, Placeholder: "Initials"},
		{Key: KeyInitialsYearTwo, Type: FieldInitialsYearTwo, Placeholder: "Initials"},
	}
}

var trailingHeaders = []string{"Date (Year 1)", "Date (Year 2)", "Year 1 Initials", "Year 2 Initials"}

func section(k SectionKind, title string, lead []Field, leadHeaders []string, actions *Actions) Section {
	headers := append(append([]string{}, leadHeaders...), trailingHeaders...)
	if actions != nil {
		headers = append(headers, "Actions")
	}
	return Section{
		Kind:    k,
		ID:      k.ID(),
		Title:   title,
		Headers: headers,
		Fields:  append(append([]Field{}, lead...), trailingFields()...),
		Actions: actions,
	}
}

var catalogue = map[SectionKind]Section{
	SummerAcademy: section(SummerAcademy, "I. Summer Academy",
		[]Field{{Key: "day", Type: FieldStatic}}, []string{"Activity"}, nil),
	InductionSeminars: section(InductionSeminars, "II. Induction Seminars",
		[]Field{{Key: "number", Type: FieldStatic}, {Key: "topic", Type: FieldText}}, []string{"Number", "Topic"}, nil),
	MentorMeetings: section(MentorMeetings, "III. Meetings with mentor teacher",
		[]Field{{Key: "date", Type: FieldDate}, {Key: "topic", Type: FieldText}}, []string{"Date", "Topic"},
		&Actions{AddLabel: "Add Meeting", ConfirmRemove: "Are you sure you want to remove this mentor meeting?", Add: AddMentorMeeting, Remove: RemoveMentorMeeting}),
	TeamMeetings: section(TeamMeetings, "IV. Induction team meetings",
		[]Field{{Key: "date", Type: FieldDate}, {Key: "topic", Type: FieldText}}, []string{"Date", "Topic"},
		&Actions{AddLabel: "Add Meeting", ConfirmRemove: "Are you sure you want to remove this team meeting?", Add: AddTeamMeeting, Remove: RemoveTeamMeeting}),
	ClassroomVisits: section(ClassroomVisits, "V. Visits to other classrooms",
		[]Field{{Key: "date", Type: FieldDate}, {Key: "teacher", Type: FieldText}, {Key: "subject", Type: FieldText}}, []string{"Date", "Teacher", "Subject"},
		&Actions{AddLabel: "Add Visit", ConfirmRemove: "Are you sure you want to remove this classroom visit?", Add: AddClassroomVisit, Remove: RemoveClassroomVisit}),
	OtherActivities: section(OtherActivities, "VI. Other: conferences, courses, etc.",
		[]Field{{Key: "date", Type: FieldDate}, {Key: "activity", Type: FieldText}}, []string{"Date", "Activity"},
		&Actions{AddLabel: "Add Activity", ConfirmRemove: "Are you sure you want to remove this activity?", Add: AddOtherActivity, Remove: RemoveOtherActivity}),
}

// Section returns the layout of k.
func (k SectionKind) Section() Section { return catalogue[k] }

// Extensible reports whether rows can be added to and removed from k.
func (k SectionKind) Extensible() bool { return catalogue[k].Actions != nil }

// Sections returns every activity section in document order.
func Sections() []Section {
	out := make([]Section, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, catalogue[k])
	}
	return out
}

// Len returns the number of rows of section k in d.
func (k SectionKind) Len(d FormData) int {
	switch k {
	case SummerAcademy:
		return len(d.SummerAcademy)
	case InductionSeminars:
		return len(d.InductionSeminars)
	case MentorMeetings:
		return len(d.MentorMeetings)
	case TeamMeetings:
		return len(d.TeamMeetings)
	case ClassroomVisits:
		return len(d.ClassroomVisits)
	case OtherActivities:
		return len(d.OtherActivities)
	}
	return 0
}

// CoverPageFields are the header keys of the document.
var CoverPageFields = []string{"inductee", "building", "assignment", "mentorTeacher", "schoolYearOne", "schoolYearTwo"}

// SignatureFields are the keys of the signatures block.
var SignatureFields = []string{"mentorTeacher", "buildingPrincipal", "superintendent", "date"}
