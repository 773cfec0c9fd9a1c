// Package fsh turns tabular concept rows into FHIR Shorthand concept
// definitions with ordered language designations.
package fsh

import (
	"strings"
	"unicode"
)

// Role is the semantic meaning a column can be assigned to.
type Role string

const (
	RoleCode           Role = "code"
	RolePrimaryDisplay Role = "primary_display"
	RoleRussian        Role = "ru"
	RoleEnglish        Role = "en"
	RoleLatin          Role = "la"
)

// DefaultExtraPrefix is the prefix of "prefix:tag" extra-language columns.
const DefaultExtraPrefix = "lang"

// LanguageRoles lists the fixed designation roles in emission order.
var LanguageRoles = []Role{RoleRussian, RoleEnglish, RoleLatin}

var requiredRoles = []Role{RoleCode, RolePrimaryDisplay}

// RoleMapping assigns column names to roles. A missing key or an empty
// value means the role is unset.
type RoleMapping map[Role]string

// Column returns the trimmed column mapped to role, or "" when unset.
func (m RoleMapping) Column(role Role) string {
	return strings.TrimSpace(m[role])
}

// ColumnKind is the classification of a single column header.
type ColumnKind int

const (
	Unrecognized ColumnKind = iota
	FixedRole
	ExtraLanguage
)

func (k ColumnKind) String() string {
	switch k {
	case FixedRole:
		return "fixed_role"
	case ExtraLanguage:
		return "extra_language"
	default:
		return "unrecognized"
	}
}

// ColumnClass is the result of classifying one column.
type ColumnClass struct {
	Kind ColumnKind
	Role Role   // set for FixedRole
	Tag  string // set for ExtraLanguage
}

// PlanEntry is one designation slot: the language tag and the column feeding it.
type PlanEntry struct {
	Tag    string
	Column string
}

// FieldPlan is the ordered list of designation slots for a whole input.
// It never contains the code or primary display columns.
type FieldPlan []PlanEntry

// Tags returns the plan's language tags in emission order.
func (p FieldPlan) Tags() []string {
	tags := make([]string, len(p))
	for i, e := range p {
		tags[i] = e.Tag
	}
	return tags
}

// Resolution is the outcome of resolving a column set against a role mapping.
type Resolution struct {
	CodeColumn    string
	DisplayColumn string
	Plan          FieldPlan

	// RejectedColumns carries prefixed columns whose tag cannot be written
	// as an FSH code; they are left out of Plan.
	RejectedColumns []string
}

// Resolver classifies columns and builds Resolutions.
type Resolver struct {
	mapping     RoleMapping
	extraPrefix string
	byColumn    map[string]Role
}

// NewResolver creates a resolver for mapping. An empty extraPrefix selects
// DefaultExtraPrefix.
func NewResolver(mapping RoleMapping, extraPrefix string) *Resolver {
	extraPrefix = strings.ToLower(strings.TrimSpace(extraPrefix))
	if extraPrefix == "" {
		extraPrefix = DefaultExtraPrefix
	}

	byColumn := make(map[string]Role, len(mapping))
	for _, role := range append(append([]Role{}, requiredRoles...), LanguageRoles...) {
		if col := mapping.Column(role); col != "" {
			if _, taken := byColumn[col]; !taken {
				byColumn[col] = role
			}
		}
	}

	return &Resolver{
		mapping:     mapping,
		extraPrefix: extraPrefix,
		byColumn:    byColumn,
	}
}

// Classify reports what a column header means under the resolver's mapping.
func (r *Resolver) Classify(column string) ColumnClass {
	if role, ok := r.byColumn[strings.TrimSpace(column)]; ok {
		return ColumnClass{Kind: FixedRole, Role: role}
	}

	tag, ok := r.extraTag(column)
	if !ok || !ValidTag(tag) {
		return ColumnClass{Kind: Unrecognized}
	}
	// A lang:ru column only yields to the fixed ru slot when ru is mapped.
	if isLanguageRole(Role(tag)) && r.mapping.Column(Role(tag)) != "" {
		return ColumnClass{Kind: Unrecognized}
	}
	return ColumnClass{Kind: ExtraLanguage, Tag: tag}
}

func (r *Resolver) extraTag(column string) (string, bool) {
	prefix, tag, found := strings.Cut(strings.TrimSpace(column), ":")
	if !found || !strings.EqualFold(strings.TrimSpace(prefix), r.extraPrefix) {
		return "", false
	}
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return "", false
	}
	return tag, true
}

// ValidTag reports whether tag can follow "#" on a designation language line.
func ValidTag(tag string) bool {
	if tag == "" {
		return false
	}
	for _, r := range tag {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '"' || r == '#' {
			return false
		}
	}
	return true
}

// Resolve validates the mapping against columns and builds the Field Plan:
// ru, en, la when mapped, then extra-language columns in column order.
func (r *Resolver) Resolve(columns []string) (Resolution, error) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[strings.TrimSpace(c)] = true
	}

	for _, role := range requiredRoles {
		col := r.mapping.Column(role)
		if col == "" {
			return Resolution{}, &ConfigurationError{Role: role}
		}
		if !present[col] {
			return Resolution{}, &UnknownColumnError{Role: role, Column: col}
		}
	}

	res := Resolution{
		CodeColumn:    r.mapping.Column(RoleCode),
		DisplayColumn: r.mapping.Column(RolePrimaryDisplay),
	}

	for _, role := range LanguageRoles {
		col := r.mapping.Column(role)
		if col == "" {
			continue
		}
		if !present[col] {
			return Resolution{}, &UnknownColumnError{Role: role, Column: col}
		}
		res.Plan = append(res.Plan, PlanEntry{Tag: string(role), Column: col})
	}

	for _, c := range columns {
		class := r.Classify(c)
		if class.Kind == ExtraLanguage {
			res.Plan = append(res.Plan, PlanEntry{Tag: class.Tag, Column: strings.TrimSpace(c)})
			continue
		}
		if tag, ok := r.extraTag(c); ok && !ValidTag(tag) {
			res.RejectedColumns = append(res.RejectedColumns, strings.TrimSpace(c))
		}
	}

	return res, nil
}

// Resolve is a convenience wrapper around NewResolver(...).Resolve.
func Resolve(columns []string, mapping RoleMapping, extraPrefix string) (Resolution, error) {
	return NewResolver(mapping, extraPrefix).Resolve(columns)
}

func isLanguageRole(role Role) bool {
	for _, r := range LanguageRoles {
		if r == role {
			return true
		}
	}
	return false
}
