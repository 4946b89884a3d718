package persist

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"inductionlog/internal/domain"
	"inductionlog/internal/htmldoc"
	"inductionlog/internal/metrics"
)

// DefaultTargetID is the id of the hidden input that receives the document.
const DefaultTargetID = "json_clob"

// ManualSaver hands the document to the host page form.
type ManualSaver struct {
	TargetID string
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

func (m ManualSaver) logger() *zap.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.NewNop()
}

func (m ManualSaver) target() string {
	if m.TargetID != "" {
		return m.TargetID
	}
	return DefaultTargetID
}

// Save writes data as JSON into the target input of doc and submits the
// enclosing form. Every failure is logged and reported as false.
func (m ManualSaver) Save(ctx context.Context, doc *htmldoc.Document, data domain.FormData) bool {
	ok := m.save(ctx, doc, data)
	m.Metrics.ManualSave(ok)
	return ok
}

func (m ManualSaver) save(ctx context.Context, doc *htmldoc.Document, data domain.FormData) bool {
	log := m.logger()
	id := m.target()
	var el *htmldoc.Element
	if doc != nil {
		el = doc.ElementByID(id)
	}
	if el == nil {
		log.Error("Could not find input element with id " + id)
		return false
	}
	if !el.IsInput() {
		log.Error("Element with id " + id + " is not an input element")
		return false
	}
	b, err := json.Marshal(data.Normalize())
	if err != nil {
		log.Error("Error serializing form data", zap.Error(err))
		return false
	}
	el.SetValue(string(b))

	form := el.Form()
	if form == nil {
		log.Error("Could not find form containing input element " + id)
		return false
	}
	if err := form.Submit(ctx); err != nil {
		log.Error("Error submitting form", zap.Error(err))
		return false
	}
	log.Info("Form submitted", zap.String("target", id), zap.Int("bytes", len(b)))
	return true
}
