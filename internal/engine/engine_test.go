package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inductionlog/internal/config"
	"inductionlog/internal/db"
	"inductionlog/internal/domain"
	"inductionlog/internal/engine"
	"inductionlog/internal/events"
	"inductionlog/internal/ingest"
	"inductionlog/internal/migrate"
	"inductionlog/internal/policy"
	"inductionlog/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	LogID  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	l, err := eng.CreateLog(ctx, engine.CreateLogOptions{ID: "log-1", ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, LogID: l.ID}
}

func (env testEnv) set(role domain.Role, section string, index int, field, value string) (repo.LogRecord, error) {
	return env.Engine.SetField(env.Ctx, engine.FieldUpdate{
		LogID:   env.LogID,
		Ref:     domain.FieldRef{Section: section, Index: index, Field: field},
		Value:   value,
		Role:    role,
		ActorID: string(role) + "-1",
	})
}

func TestCreateLogUsesTemplate(t *testing.T) {
	env := newTestEnv(t)
	l, err := env.Engine.GetLog(env.Ctx, env.LogID)
	require.NoError(t, err)
	assert.Equal(t, domain.NewFormData(), l.Data)
	assert.Equal(t, "2024-01-01T00:00:00Z", l.CreatedAt)
	assert.Equal(t, "admin-1", l.CreatedBy)

	generated, err := env.Engine.CreateLog(env.Ctx, engine.CreateLogOptions{ActorID: "admin-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)

	list, err := env.Engine.ListLogs(env.Ctx, repo.LogFilters{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSetFieldEnforcesPolicy(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.set(domain.RoleMentor, "coverPage", 0, "inductee", "Jane")
	var fe policy.ForbiddenFieldError
	require.True(t, errors.As(err, &fe), "got %v", err)

	l, err := env.set(domain.RoleMentee, "coverPage", 0, "inductee", "Jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane", l.Data.Inductee)

	_, err = env.set(domain.RoleMentee, "mentorMeetings", 0, "initialsYearOne", "JD")
	require.True(t, errors.As(err, &fe))

	l, err = env.set(domain.RoleMentor, "mentorMeetings", 0, "initialsYearOne", "BJ")
	require.NoError(t, err)
	assert.Equal(t, "BJ", l.Data.MentorMeetings[0].InitialsYearOne)

	_, err = env.set(domain.Role("guest"), "mentorMeetings", 0, "topic", "x")
	require.True(t, errors.As(err, &fe))

	stored, err := env.Engine.GetLog(env.Ctx, env.LogID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", stored.Data.Inductee)
	assert.Equal(t, "BJ", stored.Data.MentorMeetings[0].InitialsYearOne)
}

func TestSetFieldValidatesDates(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.set(domain.RoleMentee, "classroomVisits", 0, "date", "02/30/2024")
	assert.ErrorIs(t, err, engine.ErrInvalidDate)

	_, err = env.set(domain.RoleMentee, "classroomVisits", 0, "date", "2024-02-28")
	assert.NoError(t, err)
	_, err = env.set(domain.RoleMentor, "signatures", 0, "date", "13/01/2024")
	assert.ErrorIs(t, err, engine.ErrInvalidDate)
	_, err = env.set(domain.RoleMentor, "signatures", 0, "date", "")
	assert.NoError(t, err)
}

func TestSetFieldRejectsBadTargets(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.set(domain.RoleAdmin, "summerAcademy", 0, "day", "Day 9")
	assert.ErrorIs(t, err, domain.ErrStaticField)
	_, err = env.set(domain.RoleAdmin, "mentorMeetings", 4, "topic", "x")
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	_, err = env.Engine.SetField(env.Ctx, engine.FieldUpdate{LogID: "missing", Role: domain.RoleAdmin, Ref: domain.FieldRef{Section: "coverPage", Field: "inductee"}})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestEntries(t *testing.T) {
	env := newTestEnv(t)
	l, err := env.Engine.AddEntry(env.Ctx, env.LogID, domain.TeamMeetings, domain.RoleMentee, "mentee-1")
	require.NoError(t, err)
	assert.Len(t, l.Data.TeamMeetings, 2)

	l, err = env.Engine.RemoveEntry(env.Ctx, env.LogID, domain.TeamMeetings, 0, domain.RoleAdmin, "admin-1")
	require.NoError(t, err)
	assert.Len(t, l.Data.TeamMeetings, 1)

	l, err = env.Engine.RemoveEntry(env.Ctx, env.LogID, domain.TeamMeetings, 9, domain.RoleAdmin, "admin-1")
	require.NoError(t, err)
	assert.Len(t, l.Data.TeamMeetings, 1)

	_, err = env.Engine.AddEntry(env.Ctx, env.LogID, domain.TeamMeetings, domain.RoleMentor, "mentor-1")
	var fe policy.ForbiddenFieldError
	assert.True(t, errors.As(err, &fe))

	_, err = env.Engine.AddEntry(env.Ctx, env.LogID, domain.SummerAcademy, domain.RoleAdmin, "admin-1")
	assert.ErrorIs(t, err, domain.ErrFixedSection)
}

func TestSubmitForm(t *testing.T) {
	env := newTestEnv(t)
	cur, err := env.Engine.GetLog(env.Ctx, env.LogID)
	require.NoError(t, err)

	next := cur.Data.Clone()
	next.Inductee = "Jane"
	next = domain.AddOtherActivity(next)
	next.OtherActivities[1].Activity = "State conference"
	b, err := json.Marshal(next)
	require.NoError(t, err)

	l, err := env.Engine.SubmitForm(env.Ctx, env.LogID, string(b), domain.RoleMentee, "mentee-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", l.Data.Inductee)
	assert.Len(t, l.Data.OtherActivities, 2)

	// Mentors may not touch the cover page.
	next.Inductee = "Someone else"
	b, _ = json.Marshal(next)
	_, err = env.Engine.SubmitForm(env.Ctx, env.LogID, string(b), domain.RoleMentor, "mentor-1")
	var ve engine.ViolationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, []domain.FieldRef{{Section: "coverPage", Field: "inductee"}}, ve.Fields)

	// Fixed sections keep their length.
	fixed := l.Data.Clone()
	fixed.SummerAcademy = fixed.SummerAcademy[:3]
	b, _ = json.Marshal(fixed)
	_, err = env.Engine.SubmitForm(env.Ctx, env.LogID, string(b), domain.RoleAdmin, "admin-1")
	assert.ErrorIs(t, err, engine.ErrFixedLength)

	_, err = env.Engine.SubmitForm(env.Ctx, env.LogID, "{broken", domain.RoleAdmin, "admin-1")
	assert.ErrorIs(t, err, engine.ErrInvalidDocument)

	stored, err := env.Engine.GetLog(env.Ctx, env.LogID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", stored.Data.Inductee)
}

func TestSubmitFormChecksResizedSections(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.set(domain.RoleMentor, "mentorMeetings", 0, domain.KeyInitialsYearOne, "MT")
	require.NoError(t, err)
	cur, err := env.Engine.GetLog(env.Ctx, env.LogID)
	require.NoError(t, err)

	next := domain.AddMentorMeeting(cur.Data)
	next.MentorMeetings[0].InitialsYearOne = "FORGED"
	next.MentorMeetings[1].InitialsYearTwo = "FORGED2"
	b, err := json.Marshal(next)
	require.NoError(t, err)
	_, err = env.Engine.SubmitForm(env.Ctx, env.LogID, string(b), domain.RoleMentee, "mentee-1")
	var ve engine.ViolationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, []domain.FieldRef{
		{Section: "mentorMeetings", Index: 0, Field: domain.KeyInitialsYearOne},
		{Section: "mentorMeetings", Index: 1, Field: domain.KeyInitialsYearTwo},
	}, ve.Fields)

	next = domain.AddMentorMeeting(cur.Data)
	next.MentorMeetings[1].Topic = "Lesson planning"
	b, err = json.Marshal(next)
	require.NoError(t, err)
	l, err := env.Engine.SubmitForm(env.Ctx, env.LogID, string(b), domain.RoleMentee, "mentee-1")
	require.NoError(t, err)
	require.Len(t, l.Data.MentorMeetings, 2)
	assert.Equal(t, "MT", l.Data.MentorMeetings[0].InitialsYearOne)
	assert.Empty(t, l.Data.MentorMeetings[1].InitialsYearTwo)
}

func TestSubmitFormRejectsStaticColumns(t *testing.T) {
	env := newTestEnv(t)
	cur, err := env.Engine.GetLog(env.Ctx, env.LogID)
	require.NoError(t, err)

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleMentor} {
		next := cur.Data.Clone()
		next.InductionSeminars[0].Number = 99
		next.SummerAcademy[0].Day = "Hacked"
		b, err := json.Marshal(next)
		require.NoError(t, err)
		_, err = env.Engine.SubmitForm(env.Ctx, env.LogID, string(b), role, string(role)+"-1")
		assert.ErrorIs(t, err, domain.ErrStaticField, "role %s", role)
	}

	stored, err := env.Engine.GetLog(env.Ctx, env.LogID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Data.InductionSeminars[0].Number)
	assert.Equal(t, cur.Data.SummerAcademy[0].Day, stored.Data.SummerAcademy[0].Day)
}

func TestSubmitFormMigratesLegacyColumns(t *testing.T) {
	env := newTestEnv(t)
	legacy := `{"inductee":"Old","summerAcademy":[{"day":"Day 1","verification":"AB"},{"day":"Day 2"},{"day":"Day 3"},{"day":"Day 4"}],
		"inductionSeminars":[{"number":1},{"number":2},{"number":3},{"number":4}],
		"mentorMeetings":[{}],"teamMeetings":[{}],"classroomVisits":[{}],"otherActivities":[{}]}`
	l, err := env.Engine.SubmitForm(env.Ctx, env.LogID, legacy, domain.RoleAdmin, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "AB", l.Data.SummerAcademy[0].InitialsYearOne)
	assert.Equal(t, "AB", l.Data.SummerAcademy[0].InitialsYearTwo)
}

func TestLoadFormAndRawConfig(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.set(domain.RoleMentee, "coverPage", 0, "inductee", "Jane")
	require.NoError(t, err)

	cfg, err := env.Engine.LoadForm(env.Ctx, env.LogID, domain.RoleMentor)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMentor, cfg.UserRole)
	assert.True(t, cfg.Editable.Inductee)
	assert.False(t, cfg.Editable.Verifications.SummerAcademy)
	assert.Equal(t, []domain.Option{
		{Name: "2023-2024", DCID: "2023-2024"},
		{Name: "2024-2025", DCID: "2024-2025"},
		{Name: "2025-2026", DCID: "2025-2026"},
		{Name: "2026-2027", DCID: "2026-2027"},
	}, cfg.Options.SchoolYears)

	raw, err := env.Engine.RawConfig(env.Ctx, env.LogID, domain.RoleAdmin)
	require.NoError(t, err)
	require.True(t, ingest.IsJSONClobFormat(raw))
	parsed := ingest.Parser{}.ParseFormConfig(raw)
	assert.Equal(t, "Jane", parsed.Data.Inductee)
	assert.True(t, parsed.Editable.Verifications.OtherActivities)

	_, err = env.Engine.LoadForm(env.Ctx, "missing", domain.RoleAdmin)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestImportLogs(t *testing.T) {
	env := newTestEnv(t)
	a := domain.NewFormData()
	a.Inductee = "First"
	b := domain.NewFormData()
	b.Inductee = "Second"
	wrapped, err := ingest.WrapJSONClob(a, b)
	require.NoError(t, err)

	logs, err := env.Engine.ImportLogs(env.Ctx, wrapped, "admin-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Second", logs[1].Data.Inductee)

	doc, _ := json.Marshal(a)
	logs, err = env.Engine.ImportLogs(env.Ctx, doc, "admin-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)

	cfg, _ := json.Marshal(map[string]any{"userRole": "admin", "data": json.RawMessage(doc)})
	logs, err = env.Engine.ImportLogs(env.Ctx, cfg, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "First", logs[0].Data.Inductee)

	_, err = env.Engine.ImportLogs(env.Ctx, []byte(`[1,2]`), "admin-1")
	assert.ErrorIs(t, err, engine.ErrInvalidDocument)

	list, err := env.Engine.ListLogs(env.Ctx, repo.LogFilters{Inductee: "Fir"})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestEventsAreRecorded(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.set(domain.RoleMentee, "coverPage", 0, "building", "Lincoln")
	require.NoError(t, err)
	_, err = env.Engine.AddEntry(env.Ctx, env.LogID, domain.MentorMeetings, domain.RoleMentee, "mentee-1")
	require.NoError(t, err)

	evs, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{LogID: env.LogID})
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, events.EntryAdded, evs[0].Type)
	assert.Equal(t, events.FieldSet, evs[1].Type)
	assert.Equal(t, events.LogCreated, evs[2].Type)
	assert.Equal(t, "mentee-1", evs[0].ActorID)

	older, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{LogID: env.LogID, Cursor: evs[0].ID})
	require.NoError(t, err)
	assert.Len(t, older, 2)

	require.NoError(t, env.Engine.DeleteLog(env.Ctx, env.LogID, "admin-1"))
	_, err = env.Engine.GetLog(env.Ctx, env.LogID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, env.Engine.DeleteLog(env.Ctx, env.LogID, "admin-1"), repo.ErrNotFound)
}

func TestAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	plain, key, err := env.Engine.CreateAPIKey(env.Ctx, "mentor-9", domain.RoleMentor, "laptop", "admin-1")
	require.NoError(t, err)
	assert.Contains(t, plain, "til_")
	assert.NotEqual(t, plain, key.KeyHash)

	got, err := env.Engine.AuthenticateAPIKey(env.Ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, "mentor-9", got.ActorID)
	assert.Equal(t, domain.RoleMentor, got.Role)
	assert.Equal(t, "laptop", got.Name)

	_, err = env.Engine.AuthenticateAPIKey(env.Ctx, "til_nope")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	_, _, err = env.Engine.CreateAPIKey(env.Ctx, "x-1", domain.Role("teacher"), "", "admin-1")
	assert.ErrorIs(t, err, engine.ErrUnknownRole)

	keys, err := env.Engine.ListAPIKeys(env.Ctx, "mentor-9")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)

	require.NoError(t, env.Engine.RevokeAPIKey(env.Ctx, key.ID, "admin-1"))
	_, err = env.Engine.AuthenticateAPIKey(env.Ctx, plain)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, env.Engine.RevokeAPIKey(env.Ctx, key.ID, "admin-1"), repo.ErrNotFound)

	evs, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	assert.Equal(t, events.APIKeyRevoked, evs[0].Type)
	assert.Equal(t, events.APIKeyCreated, evs[1].Type)
}
