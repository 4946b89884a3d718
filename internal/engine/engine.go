package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inductionlog/internal/config"
	"inductionlog/internal/domain"
	"inductionlog/internal/events"
	"inductionlog/internal/ingest"
	"inductionlog/internal/metrics"
	"inductionlog/internal/policy"
	"inductionlog/internal/repo"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidDocument = errors.New("invalid document")
	// ErrFixedLength is returned when a submitted document changes the row
	// count of a fixed section.
	ErrFixedLength = errors.New("fixed section length changed")
)

// ViolationError lists the fields a submitted document changed without
// permission.
type ViolationError struct {
	Role   domain.Role
	Fields []domain.FieldRef
}

func (e ViolationError) Error() string {
	return fmt.Sprintf("role %q may not change %d field(s), first %s", e.Role, len(e.Fields), e.Fields[0])
}

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Parser  ingest.Parser
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Parser: ingest.Parser{DefaultRole: cfg.DefaultRole()},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func (e Engine) parser() ingest.Parser {
	p := e.Parser
	if p.Logger == nil {
		p.Logger = e.logger()
	}
	return p
}

// CreateLogOptions are parameters for creating a log.
type CreateLogOptions struct {
	ID      string
	Data    *domain.FormData
	ActorID string
}

// CreateLog stores a new log. Without Data the blank template is used.
func (e Engine) CreateLog(ctx context.Context, opts CreateLogOptions) (repo.LogRecord, error) {
	data := domain.NewFormData()
	if opts.Data != nil {
		data = opts.Data.Normalize()
	}
	return e.insert(ctx, opts.ID, data, opts.ActorID, events.LogCreated)
}

func (e Engine) insert(ctx context.Context, id string, data domain.FormData, actorID, evtType string) (repo.LogRecord, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := e.stamp()
	l := repo.LogRecord{ID: id, CreatedBy: actorID, CreatedAt: now, UpdatedAt: now, Data: data}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return repo.LogRecord{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertLog(ctx, tx, l); err != nil {
		return repo.LogRecord{}, fmt.Errorf("insert log: %w", err)
	}
	if err := e.Events.Append(ctx, tx, evtType, l.ID, "log", l.ID, actorID, events.EventPayload{"inductee": data.Inductee}); err != nil {
		return repo.LogRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return repo.LogRecord{}, err
	}
	return l, nil
}

// ImportLogs stores every document found in raw. raw may be a raw form
// configuration, a bare document, or a JSON_CLOB array holding one document
// per entry. Entries that do not parse are imported as blank templates, the
// same way the form would show them.
func (e Engine) ImportLogs(ctx context.Context, raw []byte, actorID string) ([]repo.LogRecord, error) {
	docs, err := e.importDocs(raw)
	if err != nil {
		return nil, err
	}
	out := make([]repo.LogRecord, 0, len(docs))
	for _, d := range docs {
		l, err := e.insert(ctx, "", d, actorID, events.LogImported)
		if err != nil {
			return out, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (e Engine) importDocs(raw []byte) ([]domain.FormData, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil {
		if _, ok := probe["data"]; ok {
			return []domain.FormData{e.parser().ParseFormConfigJSON(raw).Data}, nil
		}
		d, err := ingest.DecodeFormData(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return []domain.FormData{d}, nil
	}
	if !ingest.IsJSONClobFormat(domain.RawFormConfig{Data: raw}) {
		return nil, fmt.Errorf("%w: expected a document, a form configuration or a JSON_CLOB array", ErrInvalidDocument)
	}
	return e.parser().ParseLogEntries(raw), nil
}

func (e Engine) GetLog(ctx context.Context, id string) (repo.LogRecord, error) {
	return e.Repo.GetLog(ctx, id)
}

func (e Engine) ListLogs(ctx context.Context, f repo.LogFilters) ([]domain.LogSummary, error) {
	return e.Repo.ListLogs(ctx, f)
}

func (e Engine) DeleteLog(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteLog(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.LogDeleted, id, "log", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadForm builds the form configuration a user with role sees for a log:
// the configured pick-lists, the stored document and derived editability.
func (e Engine) LoadForm(ctx context.Context, id string, role domain.Role) (domain.FormConfig, error) {
	l, err := e.Repo.GetLog(ctx, id)
	if err != nil {
		return domain.FormConfig{}, err
	}
	return domain.FormConfig{
		UserRole: role,
		Options:  e.Config.FormOptions(e.now()),
		Editable: policy.ComputeEditabilityState(domain.Editability{}, role),
		Data:     l.Data,
	}, nil
}

// RawConfig is LoadForm in the shape the host page hands over, with the
// document wrapped as JSON_CLOB.
func (e Engine) RawConfig(ctx context.Context, id string, role domain.Role) (domain.RawFormConfig, error) {
	cfg, err := e.LoadForm(ctx, id, role)
	if err != nil {
		return domain.RawFormConfig{}, err
	}
	data, err := ingest.WrapJSONClob(cfg.Data)
	if err != nil {
		return domain.RawFormConfig{}, err
	}
	return domain.RawFormConfig{
		UserRole: string(cfg.UserRole),
		Options:  cfg.Options,
		Editable: cfg.Editable,
		Data:     data,
	}, nil
}

// FieldUpdate sets one field of a stored log on behalf of a user.
type FieldUpdate struct {
	LogID   string
	Ref     domain.FieldRef
	Value   string
	Role    domain.Role
	ActorID string
}

func isDateField(ref domain.FieldRef) bool {
	switch ref.Section {
	case domain.SectionCoverPage:
		return false
	case domain.SectionSignatures:
		return ref.Field == "date"
	}
	k, ok := domain.ParseSectionKind(ref.Section)
	if !ok {
		return false
	}
	ft, _ := k.FieldType(ref.Field)
	return ft == domain.FieldDate
}

func (e Engine) deny(role domain.Role, err error) error {
	e.Metrics.PolicyDenied(string(role))
	e.logger().Warn("policy denied", zap.String("role", string(role)), zap.Error(err))
	return err
}

func (e Engine) SetField(ctx context.Context, u FieldUpdate) (repo.LogRecord, error) {
	if err := policy.Check(u.Role, u.Ref.Section, u.Ref.Field); err != nil {
		return repo.LogRecord{}, e.deny(u.Role, err)
	}
	if isDateField(u.Ref) && !domain.IsDateValue(u.Value) {
		return repo.LogRecord{}, fmt.Errorf("%s: %w %q", u.Ref, ErrInvalidDate, u.Value)
	}
	return e.mutate(ctx, u.LogID, u.ActorID, events.FieldSet, u.Ref.Section,
		events.EventPayload{"field": u.Ref.String(), "value": u.Value, "role": string(u.Role)},
		func(d domain.FormData) (domain.FormData, error) {
			return domain.SetField(d, u.Ref, u.Value)
		})
}

// AddEntry appends a blank row to an extensible section.
func (e Engine) AddEntry(ctx context.Context, logID string, k domain.SectionKind, role domain.Role, actorID string) (repo.LogRecord, error) {
	if !policy.CanResize(role, k.ID()) {
		return repo.LogRecord{}, e.deny(role, policy.ForbiddenFieldError{Role: role, Section: k.ID()})
	}
	return e.mutate(ctx, logID, actorID, events.EntryAdded, k.ID(), events.EventPayload{"section": k.ID()},
		func(d domain.FormData) (domain.FormData, error) {
			return domain.AddEntry(d, k)
		})
}

// RemoveEntry drops row index of an extensible section. An index out of
// range leaves the document unchanged.
func (e Engine) RemoveEntry(ctx context.Context, logID string, k domain.SectionKind, index int, role domain.Role, actorID string) (repo.LogRecord, error) {
	if !policy.CanResize(role, k.ID()) {
		return repo.LogRecord{}, e.deny(role, policy.ForbiddenFieldError{Role: role, Section: k.ID()})
	}
	return e.mutate(ctx, logID, actorID, events.EntryRemoved, k.ID(), events.EventPayload{"section": k.ID(), "index": index},
		func(d domain.FormData) (domain.FormData, error) {
			return domain.RemoveEntry(d, k, index)
		})
}

// SubmitForm stores a whole document posted through the host form. Every
// field that differs from the stored document must be editable by role,
// resized sections must be resizable by it and static columns must be
// unchanged.
func (e Engine) SubmitForm(ctx context.Context, logID, payload string, role domain.Role, actorID string) (repo.LogRecord, error) {
	next, err := ingest.DecodeFormData([]byte(payload))
	if err != nil {
		return repo.LogRecord{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	evt := events.EventPayload{"role": string(role)}
	l, err := e.mutate(ctx, logID, actorID, events.LogSubmitted, "log", evt,
		func(cur domain.FormData) (domain.FormData, error) {
			for _, k := range domain.Kinds {
				if k.Len(cur) == k.Len(next) {
					continue
				}
				if !k.Extensible() {
					return cur, fmt.Errorf("%s: %w", k.ID(), ErrFixedLength)
				}
				if !policy.CanResize(role, k.ID()) {
					return cur, e.deny(role, policy.ForbiddenFieldError{Role: role, Section: k.ID()})
				}
			}
			if refs := policy.StaticChanges(cur, next); len(refs) > 0 {
				return cur, fmt.Errorf("%s: %w", refs[0], domain.ErrStaticField)
			}
			if v := policy.Violations(role, cur, next); len(v) > 0 {
				return cur, e.deny(role, ViolationError{Role: role, Fields: v})
			}
			evt["changed"] = len(diffRefs(cur, next))
			return next, nil
		})
	if err != nil {
		return repo.LogRecord{}, err
	}
	e.logger().Info("form submitted", zap.String("log_id", logID), zap.String("role", string(role)), zap.Any("changed", evt["changed"]))
	return l, nil
}

// diffRefs lists every changed field, comparing rows by position. A role
// outside the vocabulary may edit nothing, so nothing is filtered out.
func diffRefs(before, after domain.FormData) []domain.FieldRef {
	return policy.Violations(domain.Role(""), before, after)
}

func (e Engine) mutate(ctx context.Context, logID, actorID, evtType, entityKind string, payload events.EventPayload, fn func(domain.FormData) (domain.FormData, error)) (repo.LogRecord, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return repo.LogRecord{}, err
	}
	defer tx.Rollback()
	l, err := e.Repo.GetLogTx(ctx, tx, logID)
	if err != nil {
		return repo.LogRecord{}, err
	}
	next, err := fn(l.Data.Clone())
	if err != nil {
		return repo.LogRecord{}, err
	}
	l.Data = next.Normalize()
	l.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateLogData(ctx, tx, l.ID, l.Data, l.UpdatedAt); err != nil {
		return repo.LogRecord{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, l.ID, entityKind, l.ID, actorID, payload); err != nil {
		return repo.LogRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return repo.LogRecord{}, err
	}
	return l, nil
}

func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}
