package inductionlogsdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inductionlog/internal/config"
	"inductionlog/internal/db"
	"inductionlog/internal/domain"
	"inductionlog/internal/engine"
	"inductionlog/internal/migrate"
	"inductionlog/internal/server"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	handler, err := server.New(server.Config{
		Engine:   engine.New(conn, config.Default()),
		BasePath: "/v0",
		Auth:     server.AuthConfig{JWTSecret: "sdk-secret", AllowDevHeaders: true},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	admin := New(srv.URL)
	admin.ActorID, admin.Role = "admin-1", "admin"

	l, err := admin.CreateLog(ctx, "log-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "log-1", l.ID)
	assert.Len(t, l.Data.SummerAcademy, 4)

	_, err = admin.SetField(ctx, "log-1", domain.FieldRef{Section: domain.SectionCoverPage, Field: "inductee"}, "Jane Doe")
	require.NoError(t, err)
	logs, err := admin.ListLogs(ctx, "Jane")
	require.NoError(t, err)
	require.Len(t, logs, 1)

	mentee := New(srv.URL)
	mentee.ActorID, mentee.Role = "mentee-1", "teacher"
	l, err = mentee.AddEntry(ctx, "log-1", "mentorMeetings")
	require.NoError(t, err)
	require.Len(t, l.Data.MentorMeetings, 2)
	_, err = mentee.SetField(ctx, "log-1", domain.FieldRef{Section: "mentorMeetings", Index: 0, Field: "topic"}, "Planning")
	require.NoError(t, err)

	form, err := mentee.Form(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMentee, form.UserRole)
	assert.Equal(t, "Planning", form.Data.MentorMeetings[0].Topic)

	ok, err := mentee.CanEdit(ctx, "", "mentorMeetings", domain.KeyInitialsYearOne)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = mentee.CanEdit(ctx, "mentor", "mentorMeetings", domain.KeyInitialsYearOne)
	require.NoError(t, err)
	assert.True(t, ok)

	page, err := mentee.EventsPage(ctx, "log-1", 2, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)

	l, err = mentee.RemoveEntry(ctx, "log-1", "mentorMeetings", 1)
	require.NoError(t, err)
	require.Len(t, l.Data.MentorMeetings, 1)
	assert.Equal(t, "Planning", l.Data.MentorMeetings[0].Topic)

	require.NoError(t, admin.DeleteLog(ctx, "log-1"))
	_, err = admin.Form(ctx, "log-1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestClientBearerToken(t *testing.T) {
	srv := newServer(t)
	token, err := server.SignToken("sdk-secret", "mentor-1", domain.RoleMentor, time.Hour)
	require.NoError(t, err)

	c := New(srv.URL)
	c.BearerToken = token
	_, err = c.ListLogs(context.Background(), "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "forbidden", apiErr.Code)

	c.BearerToken = "garbage"
	_, err = c.ListLogs(context.Background(), "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
