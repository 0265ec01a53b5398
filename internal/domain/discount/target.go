package discount

import (
	"strconv"
	"strings"
)

// TargetType names the kind of catalog selector a rule targets.
type TargetType string

const (
	TargetCategory       TargetType = "category"
	TargetBrand          TargetType = "brand"
	TargetTag            TargetType = "tag"
	TargetCustomTaxonomy TargetType = "custom_taxonomy"
	TargetCustomPostType TargetType = "custom_post_type"
)

// Namespaces implied by legacy bare target values.
const (
	CategoryNamespace = "product_cat"
	TagNamespace      = "product_tag"
)

// Valid reports whether t is one of the known target types.
func (t TargetType) Valid() bool {
	switch t {
	case TargetCategory, TargetBrand, TargetTag, TargetCustomTaxonomy, TargetCustomPostType:
		return true
	default:
		return false
	}
}

// Selector is a term within a namespace.
type Selector struct {
	Namespace string
	Term      TermID
}

func (s Selector) String() string {
	return s.Namespace + ":" + strconv.FormatInt(int64(s.Term), 10)
}

// Target is the closed set of rule targets. Each variant is matched by the
// resolver; UnknownTarget never matches.
type Target interface {
	Type() TargetType
	target()
}

// CategoryTarget selects items in a category term.
type CategoryTarget struct{ Selector Selector }

// TagTarget selects items carrying a tag term.
type TagTarget struct{ Selector Selector }

// CustomTaxonomyTarget selects items in a term of an arbitrary namespace.
type CustomTaxonomyTarget struct{ Selector Selector }

// BrandTarget selects items of a brand. An empty Namespace marks a legacy
// rule whose namespace is discovered by probing the brand namespaces.
type BrandTarget struct {
	Namespace string
	Term      TermID
}

// PostTypeTarget selects items by content type.
type PostTypeTarget struct{ PostType string }

// UnknownTarget keeps an undecodable persisted target so it survives a
// round trip. It never matches.
type UnknownTarget struct {
	Kind TargetType
	Raw  string
}

func (CategoryTarget) Type() TargetType       { return TargetCategory }
func (TagTarget) Type() TargetType            { return TargetTag }
func (CustomTaxonomyTarget) Type() TargetType { return TargetCustomTaxonomy }
func (BrandTarget) Type() TargetType          { return TargetBrand }
func (PostTypeTarget) Type() TargetType       { return TargetCustomPostType }
func (t UnknownTarget) Type() TargetType      { return t.Kind }

func (CategoryTarget) target()       {}
func (TagTarget) target()            {}
func (CustomTaxonomyTarget) target() {}
func (BrandTarget) target()          {}
func (PostTypeTarget) target()       {}
func (UnknownTarget) target()        {}

// Legacy reports whether the brand has no stored namespace.
func (t BrandTarget) Legacy() bool { return t.Namespace == "" }

// ParseTarget decodes the persisted (target_type, target_value) pair.
// Values are "namespace:termId" or a legacy bare value whose namespace is
// implied by the target type.
func ParseTarget(kind TargetType, value string) Target {
	value = strings.TrimSpace(value)
	unknown := UnknownTarget{Kind: kind, Raw: value}

	if kind == TargetCustomPostType {
		if value == "" {
			return unknown
		}
		return PostTypeTarget{PostType: value}
	}

	ns, raw, qualified := strings.Cut(value, ":")
	if !qualified {
		raw, ns = value, ""
	}
	ns = strings.TrimSpace(ns)
	if qualified && ns == "" {
		return unknown
	}
	term, ok := parseTermID(raw)
	if !ok {
		return unknown
	}

	switch kind {
	case TargetCategory:
		if !qualified {
			ns = CategoryNamespace
		}
		return CategoryTarget{Selector: Selector{Namespace: ns, Term: term}}
	case TargetTag:
		if !qualified {
			ns = TagNamespace
		}
		return TagTarget{Selector: Selector{Namespace: ns, Term: term}}
	case TargetCustomTaxonomy:
		if !qualified {
			return unknown
		}
		return CustomTaxonomyTarget{Selector: Selector{Namespace: ns, Term: term}}
	case TargetBrand:
		return BrandTarget{Namespace: ns, Term: term}
	default:
		return unknown
	}
}

// EncodeTarget is the inverse of ParseTarget.
func EncodeTarget(t Target) (TargetType, string) {
	switch t := t.(type) {
	case CategoryTarget:
		return TargetCategory, t.Selector.String()
	case TagTarget:
		return TargetTag, t.Selector.String()
	case CustomTaxonomyTarget:
		return TargetCustomTaxonomy, t.Selector.String()
	case BrandTarget:
		if t.Legacy() {
			return TargetBrand, strconv.FormatInt(int64(t.Term), 10)
		}
		return TargetBrand, Selector{Namespace: t.Namespace, Term: t.Term}.String()
	case PostTypeTarget:
		return TargetCustomPostType, t.PostType
	case UnknownTarget:
		return t.Kind, t.Raw
	default:
		return "", ""
	}
}

func parseTermID(s string) (TermID, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return TermID(id), true
}
