package persist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"inductionlog/internal/domain"
	"inductionlog/internal/htmldoc"
	"inductionlog/internal/ingest"
)

func manualSaver() (ManualSaver, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return ManualSaver{Logger: zap.New(core)}, logs
}

func parse(t *testing.T, page, base string) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.Parse(strings.NewReader(page), base)
	require.NoError(t, err)
	return doc
}

func TestManualSaveMissingTarget(t *testing.T) {
	m, logs := manualSaver()
	doc := parse(t, `<html><body><form><input id="other"></form></body></html>`, "http://h/")

	var ok bool
	require.NotPanics(t, func() { ok = m.Save(context.Background(), doc, domain.NewFormData()) })
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Could not find input element").Len())

	assert.False(t, m.Save(context.Background(), nil, domain.NewFormData()))
}

func TestManualSaveTargetNotInput(t *testing.T) {
	m, logs := manualSaver()
	doc := parse(t, `<html><body><form><textarea id="json_clob"></textarea></form></body></html>`, "http://h/")
	assert.False(t, m.Save(context.Background(), doc, domain.NewFormData()))
	assert.Equal(t, 1, logs.FilterMessage("Element with id json_clob is not an input element").Len())
}

func TestManualSaveNoForm(t *testing.T) {
	m, logs := manualSaver()
	doc := parse(t, `<html><body><input type="hidden" id="json_clob"></body></html>`, "http://h/")
	assert.False(t, m.Save(context.Background(), doc, domain.NewFormData()))
	assert.Equal(t, 1, logs.FilterMessage("Could not find form containing input element json_clob").Len())
	// The value is still written before the form lookup fails.
	assert.NotEmpty(t, doc.ElementByID("json_clob").Value())
}

func TestManualSaveSubmitsDocument(t *testing.T) {
	var posted url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		posted = r.PostForm
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m, logs := manualSaver()
	doc := parse(t, `<html><body><form method="post" action="/submit"><input type="hidden" id="json_clob" name="json_clob"></form></body></html>`, srv.URL+"/host")

	data := domain.NewFormData()
	data.Inductee = "Jane Doe"
	data.MentorMeetings[0].InitialsYearOne = "MT"
	require.True(t, m.Save(context.Background(), doc, data))

	var got domain.FormData
	require.NoError(t, json.Unmarshal([]byte(posted.Get("json_clob")), &got))
	assert.Equal(t, data, got)
	assert.Equal(t, 1, logs.FilterMessage("Form submitted").Len())

	// What the host receives is a plain document, readable by ingestion.
	var p ingest.Parser
	cfg := p.ParseFormConfig(domain.RawFormConfig{UserRole: "admin", Data: json.RawMessage(posted.Get("json_clob"))})
	assert.Equal(t, data, cfg.Data)
}

func TestManualSaveSubmitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, logs := manualSaver()
	m.TargetID = "payload"
	doc := parse(t, `<form method="post" action="/s"><input id="payload" name="payload"></form>`, srv.URL)
	assert.False(t, m.Save(context.Background(), doc, domain.NewFormData()))
	assert.Equal(t, 1, logs.FilterMessage("Error submitting form").Len())
}
