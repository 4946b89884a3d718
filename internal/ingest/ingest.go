// Package ingest turns the configuration handed over by the host page into a
// resolved FormConfig. It never fails: malformed input is logged and replaced
// by the blank template.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"inductionlog/internal/domain"
)

// Top-level keys of a raw form configuration.
var requiredKeys = []string{"userRole", "options", "editable", "data"}

// Parser resolves raw configurations.
type Parser struct {
	Logger *zap.Logger
	// DefaultRole is used when the configuration carries no userRole.
	DefaultRole domain.Role
}

func (p Parser) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

func (p Parser) defaultRole() domain.Role {
	if p.DefaultRole != "" {
		return p.DefaultRole
	}
	return domain.RoleMentee
}

// IsJSONClobFormat reports whether raw.Data is a non-empty array whose first
// element carries a string JSON_CLOB.
func IsJSONClobFormat(raw domain.RawFormConfig) bool {
	_, ok := firstClob(raw.Data)
	return ok
}

func firstClob(data json.RawMessage) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return "", false
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil || len(entries) == 0 {
		return "", false
	}
	v, ok := entries[0]["JSON_CLOB"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

func isObject(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

// ParseFormConfig resolves raw into a FormConfig. The role is canonicalised,
// options and editable are carried through, and data is read from either the
// JSON_CLOB array or a plain document object.
func (p Parser) ParseFormConfig(raw domain.RawFormConfig) domain.FormConfig {
	cfg := domain.FormConfig{
		UserRole: domain.ParseRole(raw.UserRole),
		Options:  raw.Options,
		Editable: raw.Editable,
	}
	switch {
	case IsJSONClobFormat(raw):
		clob, _ := firstClob(raw.Data)
		d, err := DecodeFormData([]byte(clob))
		if err != nil {
			p.logger().Error("Error parsing JSON_CLOB", zap.Error(err))
			d = domain.NewFormData()
		}
		p.checkFixedSections(d)
		cfg.Data = d
	case isObject(raw.Data):
		d, err := DecodeFormData(raw.Data)
		if err != nil {
			p.logger().Warn("invalid form data object, using blank document", zap.Error(err))
			d = domain.NewFormData()
		}
		p.checkFixedSections(d)
		cfg.Data = d
	default:
		p.logger().Warn("form data is neither a JSON_CLOB array nor an object, using blank document",
			zap.ByteString("data", truncate(raw.Data, 120)))
		cfg.Data = domain.NewFormData()
	}
	return cfg
}

// ParseFormConfigJSON resolves a configuration from its JSON encoding.
// Missing top-level keys are reported in one diagnostic and defaulted.
func (p Parser) ParseFormConfigJSON(b []byte) domain.FormConfig {
	log := p.logger()
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil || top == nil {
		log.Error("invalid form configuration, using defaults", zap.Error(err), zap.Strings("missing", requiredKeys))
		return domain.NewFormConfig(p.defaultRole())
	}
	var missing []string
	for _, k := range requiredKeys {
		if v, ok := top[k]; !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		log.Warn("form configuration missing keys", zap.Strings("missing", missing))
	}

	raw := domain.RawFormConfig{
		UserRole: string(p.defaultRole()),
		Editable: domain.NewEditability(),
		Data:     top["data"],
	}
	if v, ok := top["userRole"]; ok {
		var role string
		if err := json.Unmarshal(v, &role); err == nil && role != "" {
			raw.UserRole = role
		} else if err != nil {
			log.Warn("invalid userRole, using default", zap.Error(err))
		}
	}
	if v, ok := top["options"]; ok {
		if err := json.Unmarshal(v, &raw.Options); err != nil {
			log.Warn("invalid options, ignoring", zap.Error(err))
			raw.Options = domain.FormOptions{}
		}
	}
	if v, ok := top["editable"]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		if err := json.Unmarshal(v, &raw.Editable); err != nil {
			log.Warn("invalid editable flags, using defaults", zap.Error(err))
			raw.Editable = domain.NewEditability()
		}
	}
	return p.ParseFormConfig(raw)
}

// ParseLogEntries decodes every entry of a JSON_CLOB array. Entries that do
// not parse are logged and replaced by the blank template.
func (p Parser) ParseLogEntries(data json.RawMessage) []domain.FormData {
	var entries []domain.JSONClobEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		p.logger().Error("Error parsing JSON_CLOB list", zap.Error(err))
		return nil
	}
	out := make([]domain.FormData, 0, len(entries))
	for i, e := range entries {
		d, err := DecodeFormData([]byte(e.JSONClob))
		if err != nil {
			p.logger().Error("Error parsing JSON_CLOB", zap.Int("entry", i), zap.Error(err))
			d = domain.NewFormData()
		}
		p.checkFixedSections(d, zap.Int("entry", i))
		out = append(out, d)
	}
	return out
}

// checkFixedSections reports fixed sections whose row count differs from the
// template. The document is kept as it arrived.
func (p Parser) checkFixedSections(d domain.FormData, fields ...zap.Field) {
	blank := domain.NewFormData()
	for _, k := range domain.Kinds {
		if k.Extensible() || k.Len(d) == k.Len(blank) {
			continue
		}
		p.logger().Warn("fixed section has unexpected row count", append([]zap.Field{
			zap.String("section", k.ID()), zap.Int("rows", k.Len(d)), zap.Int("want", k.Len(blank)),
		}, fields...)...)
	}
}

// WrapJSONClob encodes documents in the array-wrapped wire format.
func WrapJSONClob(docs ...domain.FormData) (json.RawMessage, error) {
	entries := make([]domain.JSONClobEntry, 0, len(docs))
	for _, d := range docs {
		b, err := json.Marshal(d.Normalize())
		if err != nil {
			return nil, fmt.Errorf("encode form data: %w", err)
		}
		entries = append(entries, domain.JSONClobEntry{JSONClob: string(b)})
	}
	return json.Marshal(entries)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
