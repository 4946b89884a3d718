package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inductionlog/internal/app"
	"inductionlog/internal/domain"
	"inductionlog/internal/engine"
	"inductionlog/internal/session"
)

func newEditor(t *testing.T, role domain.Role) (*editor, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	a, err := app.Open(ctx, t.TempDir(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	_, err = a.Engine.CreateLog(ctx, engine.CreateLogOptions{ID: "log-1", ActorID: "admin-1"})
	require.NoError(t, err)
	form, err := a.Engine.LoadForm(ctx, "log-1", role)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	saver := a.Autosaver()
	saver.LogID = "log-1"
	ed := &editor{ctx: ctx, app: a, saver: saver, logID: "log-1", s: session.New(form), out: out}
	ed.stop = ed.saver.Start(ctx, ed.s)
	t.Cleanup(func() { ed.stop() })
	return ed, out
}

func TestEditorSaveWritesLogAndClearsSnapshot(t *testing.T) {
	ed, out := newEditor(t, domain.RoleMentee)
	script := strings.Join([]string{
		"add mentorMeetings",
		"set mentorMeetings[0].topic Classroom management",
		"set mentorMeetings[0].date 2024-09-15",
		"save",
		"quit",
	}, "\n")
	require.NoError(t, ed.run(strings.NewReader(script)))
	assert.Contains(t, out.String(), "saved")
	assert.NotContains(t, out.String(), "error:")

	l, err := ed.app.Engine.GetLog(context.Background(), "log-1")
	require.NoError(t, err)
	require.Len(t, l.Data.MentorMeetings, 2)
	assert.Equal(t, "Classroom management", l.Data.MentorMeetings[0].Topic)

	_, pending := ed.saver.Load(context.Background())
	assert.False(t, pending)
}

func TestEditorQuitKeepsUnsavedEdits(t *testing.T) {
	ed, _ := newEditor(t, domain.RoleMentee)
	require.NoError(t, ed.run(strings.NewReader("add teamMeetings\nset teamMeetings[0].topic Kickoff\nquit\n")))

	cfg, ok := ed.saver.Load(context.Background())
	require.True(t, ok)
	require.Len(t, cfg.Data.TeamMeetings, 2)
	assert.Equal(t, "Kickoff", cfg.Data.TeamMeetings[0].Topic)

	l, err := ed.app.Engine.GetLog(context.Background(), "log-1")
	require.NoError(t, err)
	require.Len(t, l.Data.TeamMeetings, 1)
	assert.Empty(t, l.Data.TeamMeetings[0].Topic)
}

func TestEditorReportsRejectedCommands(t *testing.T) {
	ed, out := newEditor(t, domain.RoleMentor)
	script := strings.Join([]string{
		"set coverPage.inductee Someone",
		"add mentorMeetings",
		"rm summerAcademy 0",
		"set mentorMeetings[0].date 13/45/2024",
		"frobnicate",
		"quit",
	}, "\n")
	require.NoError(t, ed.run(strings.NewReader(script)))
	assert.Equal(t, 5, strings.Count(out.String(), "error:"))
	assert.False(t, ed.dirty)
}

func TestPendingSnapshotOfAnotherLogIsRefused(t *testing.T) {
	ctx := context.Background()
	a, err := app.Open(ctx, t.TempDir(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	for _, id := range []string{"log-x", "log-y"} {
		_, err := a.Engine.CreateLog(ctx, engine.CreateLogOptions{ID: id, ActorID: "admin-1"})
		require.NoError(t, err)
	}

	x := a.Autosaver()
	x.LogID = "log-x"
	pending := domain.NewFormConfig(domain.RoleAdmin)
	pending.Data.Inductee = "Only for X"
	require.True(t, x.SaveNow(ctx, pending))

	y := a.Autosaver()
	y.LogID = "log-y"
	err = checkPending(ctx, y, "log-y", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log-x")

	assert.NoError(t, checkPending(ctx, x, "log-x", true))
	assert.Error(t, checkPending(ctx, x, "log-x", false))

	// Even when started directly, the other log's snapshot is not applied.
	form, err := a.Engine.LoadForm(ctx, "log-y", domain.RoleAdmin)
	require.NoError(t, err)
	s := session.New(form)
	stop := y.Start(ctx, s)
	defer stop()
	assert.Empty(t, s.Data().Inductee)
}
