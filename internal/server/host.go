package server

import (
	"encoding/json"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"inductionlog/internal/htmldoc"
)

// registerHost serves the plain-HTML side of a log: the raw configuration
// the form is loaded from, the host page with its hidden save field, and
// the form post that field is submitted with.
func (a api) registerHost(r chi.Router) {
	r.Get(path.Join(a.basePath, "logs/{log_id}/log.json"), a.rawConfig)
	r.Get(path.Join(a.basePath, "logs/{log_id}/host"), a.hostPage)
	r.Post(path.Join(a.basePath, "logs/{log_id}/submit"), a.submit)
}

func (a api) rawConfig(w http.ResponseWriter, r *http.Request) {
	p, authErr := principalFromRequest(r.Context())
	if authErr != nil {
		respondStatusError(w, authErr)
		return
	}
	raw, err := a.e.RawConfig(r.Context(), chi.URLParam(r, "log_id"), p.Role)
	if err != nil {
		respondStatusError(w, handleError(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(raw)
}

func (a api) hostPage(w http.ResponseWriter, r *http.Request) {
	if _, authErr := principalFromRequest(r.Context()); authErr != nil {
		respondStatusError(w, authErr)
		return
	}
	id := chi.URLParam(r, "log_id")
	l, err := a.e.GetLog(r.Context(), id)
	if err != nil {
		respondStatusError(w, handleError(err))
		return
	}
	title := "Teacher Induction Log"
	if l.Data.Inductee != "" {
		title += " - " + l.Data.Inductee
	}
	doc := htmldoc.NewHostPage(htmldoc.HostPage{
		Title:    title,
		Heading:  "Teacher Induction Log",
		Action:   path.Join(a.basePath, "logs", id, "submit"),
		TargetID: a.targetID,
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := doc.Render(w); err != nil {
		a.log.Error("render host page", zap.String("log_id", id), zap.Error(err))
	}
}

func (a api) submit(w http.ResponseWriter, r *http.Request) {
	p, authErr := principalFromRequest(r.Context())
	if authErr != nil {
		respondStatusError(w, authErr)
		return
	}
	id := chi.URLParam(r, "log_id")
	if err := r.ParseForm(); err != nil {
		respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid form body", nil))
		return
	}
	payload := r.PostForm.Get(a.targetID)
	if payload == "" {
		respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", a.targetID+" is required", nil))
		return
	}
	if _, err := a.e.SubmitForm(r.Context(), id, payload, p.Role, p.ActorID); err != nil {
		respondStatusError(w, handleError(err))
		return
	}
	http.Redirect(w, r, path.Join(a.basePath, "logs", id, "host"), http.StatusSeeOther)
}
