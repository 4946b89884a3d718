package htmldoc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html><html><body>
<div id="not-input">x</div>
<form id="f" method="post" action="/submit?x=1">
  <input type="hidden" id="json_clob" name="json_clob" value="">
  <input type="text" name="note" value="hello">
  <input type="checkbox" name="agree" checked>
  <input type="checkbox" name="skip">
  <input type="submit" name="go" value="Save">
  <textarea name="comments">line one</textarea>
  <select name="year"><option value="a">A</option><option value="b" selected>B</option></select>
  <input type="text" name="off" value="x" disabled>
</form>
<input id="orphan" name="orphan">
<input id="linked" name="linked" form="f" value="v">
</body></html>`

func TestElementLookup(t *testing.T) {
	doc, err := Parse(strings.NewReader(page), "http://host.test/logs/1/host")
	require.NoError(t, err)

	assert.Nil(t, doc.ElementByID("missing"))

	div := doc.ElementByID("not-input")
	require.NotNil(t, div)
	assert.False(t, div.IsInput())
	assert.Equal(t, "div", div.Tag())

	el := doc.ElementByID("json_clob")
	require.NotNil(t, el)
	assert.True(t, el.IsInput())
	el.SetValue(`{"a":"<b>"}`)
	assert.Equal(t, `{"a":"<b>"}`, el.Value())

	require.NotNil(t, el.Form())
	assert.Nil(t, doc.ElementByID("orphan").Form())
	require.NotNil(t, doc.ElementByID("linked").Form())

	action, err := el.Form().Action()
	require.NoError(t, err)
	assert.Equal(t, "http://host.test/submit?x=1", action.String())
}

func TestFormValues(t *testing.T) {
	doc, err := Parse(strings.NewReader(page), "http://host.test/")
	require.NoError(t, err)
	doc.ElementByID("json_clob").SetValue("{}")

	got := doc.ElementByID("json_clob").Form().Values()
	want := url.Values{
		"json_clob": {"{}"},
		"note":      {"hello"},
		"agree":     {"on"},
		"comments":  {"line one"},
		"year":      {"b"},
	}
	assert.Equal(t, want, got)
}

func TestSubmitPostsForm(t *testing.T) {
	var gotBody url.Values
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotBody = r.PostForm
		w.WriteHeader(http.StatusSeeOther)
	}))
	defer srv.Close()

	doc := NewHostPage(HostPage{Title: "Log", Heading: "Log", Action: "/submit", TargetID: "json_clob"})
	doc.URL, _ = url.Parse(srv.URL + "/host")
	doc.Client = &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	el := doc.ElementByID("json_clob")
	require.NotNil(t, el)
	el.SetValue(`{"inductee":"Jane"}`)
	require.NoError(t, el.Form().Submit(context.Background()))

	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Equal(t, `{"inductee":"Jane"}`, gotBody.Get("json_clob"))
}

func TestSubmitReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden field", http.StatusForbidden)
	}))
	defer srv.Close()

	doc := NewHostPage(HostPage{Action: srv.URL + "/submit", TargetID: "json_clob"})
	err := doc.ElementByID("json_clob").Form().Submit(context.Background())
	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Contains(t, se.Error(), "forbidden field")
}

func TestFetchCarriesHeaders(t *testing.T) {
	var submitted http.Header
	mux := http.NewServeMux()
	mux.HandleFunc("/host", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Actor-Id") != "alice" {
			http.Error(w, "no actor", http.StatusUnauthorized)
			return
		}
		_ = NewHostPage(HostPage{Title: "t", Action: "/submit", TargetID: "json_clob", Value: "{}"}).Render(w)
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		submitted = r.Header.Clone()
		_, _ = io.WriteString(w, "ok")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	header := http.Header{"X-Actor-Id": {"alice"}}
	doc, err := Fetch(context.Background(), srv.Client(), srv.URL+"/host", header)
	require.NoError(t, err)
	assert.Equal(t, "{}", doc.ElementByID("json_clob").Value())

	require.NoError(t, doc.ElementByID("json_clob").Form().Submit(context.Background()))
	assert.Equal(t, "alice", submitted.Get("X-Actor-Id"))
}

func TestRenderEscapesValue(t *testing.T) {
	doc := NewHostPage(HostPage{Title: "t", Action: "/s", TargetID: "json_clob", Value: `{"x":"\"<script>"}`})
	out := doc.String()
	assert.Contains(t, out, `id="json_clob"`)
	assert.NotContains(t, out, "<script>")

	back, err := Parse(strings.NewReader(out), "http://h/")
	require.NoError(t, err)
	assert.Equal(t, `{"x":"\"<script>"}`, back.ElementByID("json_clob").Value())
}
