package policy

import "inductionlog/internal/domain"

// Violations lists the fields that differ between before and after and that
// role may not edit.
//
// Rows are compared by position unless role may resize the section. For a
// resizable section the rows of after are matched in order against the rows
// of before on the fields role may not edit: rows may be dropped, and rows
// whose protected fields are all empty may be inserted. Any other row of
// after is a violation on each of its protected fields that is set.
func Violations(role domain.Role, before, after domain.FormData) []domain.FieldRef {
	var out []domain.FieldRef
	check := func(ref domain.FieldRef) {
		a, _ := domain.GetField(before, ref)
		b, _ := domain.GetField(after, ref)
		if a != b && !CanEdit(role, ref.Section, ref.Field) {
			out = append(out, ref)
		}
	}

	for _, f := range domain.CoverPageFields {
		check(domain.FieldRef{Section: domain.SectionCoverPage, Field: f})
	}
	for _, s := range domain.Sections() {
		n, m := s.Kind.Len(before), s.Kind.Len(after)
		if s.Kind.Extensible() && n != m && CanResize(role, s.ID) {
			out = append(out, alignedViolations(role, s, before, after)...)
			continue
		}
		for i := 0; i < max(n, m); i++ {
			for _, f := range s.Fields {
				if f.Type == domain.FieldStatic {
					continue
				}
				check(domain.FieldRef{Section: s.ID, Index: i, Field: f.Key})
			}
		}
	}
	for _, f := range domain.SignatureFields {
		check(domain.FieldRef{Section: domain.SectionSignatures, Field: f})
	}
	return out
}

func protectedFields(role domain.Role, s domain.Section) []string {
	var keys []string
	for _, f := range s.Fields {
		if f.Type != domain.FieldStatic && !CanEdit(role, s.ID, f.Key) {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

func alignedViolations(role domain.Role, s domain.Section, before, after domain.FormData) []domain.FieldRef {
	keys := protectedFields(role, s)
	if len(keys) == 0 {
		return nil
	}
	values := func(d domain.FormData, i int) []string {
		vs := make([]string, len(keys))
		for j, k := range keys {
			vs[j], _ = domain.GetField(d, domain.FieldRef{Section: s.ID, Index: i, Field: k})
		}
		return vs
	}
	equal := func(a, b []string) bool {
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	blank := make([]string, len(keys))

	var out []domain.FieldRef
	next := 0
	n := s.Kind.Len(before)
	for j := 0; j < s.Kind.Len(after); j++ {
		got := values(after, j)
		if equal(got, blank) {
			continue
		}
		matched := false
		for ; next < n; next++ {
			if equal(values(before, next), got) {
				matched = true
				next++
				break
			}
		}
		if matched {
			continue
		}
		for i, k := range keys {
			if got[i] != "" {
				out = append(out, domain.FieldRef{Section: s.ID, Index: j, Field: k})
			}
		}
	}
	return out
}

// StaticChanges lists the static columns whose value differs between before
// and after. Static columns carry the fixed row labels and are never edited.
func StaticChanges(before, after domain.FormData) []domain.FieldRef {
	var out []domain.FieldRef
	for _, s := range domain.Sections() {
		for i := 0; i < max(s.Kind.Len(before), s.Kind.Len(after)); i++ {
			for _, f := range s.Fields {
				if f.Type != domain.FieldStatic {
					continue
				}
				ref := domain.FieldRef{Section: s.ID, Index: i, Field: f.Key}
				a, _ := domain.GetField(before, ref)
				b, _ := domain.GetField(after, ref)
				if a != b {
					out = append(out, ref)
				}
			}
		}
	}
	return out
}
