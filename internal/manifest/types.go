// Package manifest implements the manifest validator and JSON/HTML
// extractor described in spec.md §4.3: it validates a manifest statically,
// matches a live response against it, and extracts the disclosed values a
// client has chosen to reveal.
//
// This package has no equivalent in the teacher repo (summitto-tlsnotaryserver
// predates manifest-driven disclosure entirely); its semantics are grounded
// on original_source/web-prover-core's manifest.rs, parser/extractor.rs,
// parser/predicate.rs and parser/extractors/html.rs, re-expressed in the
// teacher's idiom (plain structs, exported validation methods, accumulated
// error lists instead of a Result-returning combinator chain).
package manifest

import "encoding/json"

// ManifestVersion is the only manifest_version this validator accepts.
const ManifestVersion = "2"

// HTTP11 is the only HTTP version manifests may declare.
const HTTP11 = "HTTP/1.1"

// Manifest is the immutable-once-loaded declarative description of the
// expected request and response, per spec.md §3.
type Manifest struct {
	ManifestVersion string   `json:"manifestVersion"`
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
}

// Request is the manifest's request lock section.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Version string            `json:"version"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Vars    map[string]TemplateVar `json:"vars,omitempty"`
}

// TemplateVar constrains one `<% name %>` template token.
type TemplateVar struct {
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required"`
	Default     *string `json:"default,omitempty"`
	Pattern     *string `json:"pattern,omitempty"`
}

// Response is the manifest's response lock section.
type Response struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Message string            `json:"message"`
	Headers map[string]string `json:"headers"`
	Body    ExtractorConfig   `json:"body"`
}

// DataFormat is the body format an ExtractorConfig operates on.
type DataFormat string

const (
	DataFormatJSON DataFormat = "json"
	DataFormatHTML DataFormat = "html"
)

// ExtractorConfig describes how to extract disclosed values from a response
// body, per spec.md §3.
type ExtractorConfig struct {
	Format     DataFormat  `json:"format"`
	Extractors []Extractor `json:"extractors"`
}

// ExtractorType is the JSON-natural type an Extractor expects to find.
type ExtractorType string

const (
	ExtractorTypeString  ExtractorType = "string"
	ExtractorTypeNumber  ExtractorType = "number"
	ExtractorTypeBoolean ExtractorType = "boolean"
	ExtractorTypeArray   ExtractorType = "array"
	ExtractorTypeObject  ExtractorType = "object"
)

// Extractor is one named disclosure rule.
type Extractor struct {
	ID             string        `json:"id"`
	Description    string        `json:"description,omitempty"`
	Selector       []string      `json:"selector"`
	ExtractorType  ExtractorType `json:"type"`
	Required       *bool         `json:"required,omitempty"`
	Predicates     []Predicate   `json:"predicates,omitempty"`
	Attribute      *string       `json:"attribute,omitempty"`
}

// IsRequired returns the extractor's required flag, defaulting to true per
// spec.md §3.
func (e Extractor) IsRequired() bool {
	return e.Required == nil || *e.Required
}

// PredicateType selects which family of comparisons a Predicate applies.
type PredicateType string

const (
	PredicateTypeValue  PredicateType = "value"
	PredicateTypeLength PredicateType = "length"
	PredicateTypeRegex  PredicateType = "regex"
	PredicateTypeString PredicateType = "string"
	PredicateTypeArray  PredicateType = "array"
)

// Comparison is the operation a Predicate performs.
type Comparison string

const (
	ComparisonEqual              Comparison = "equal"
	ComparisonNotEqual           Comparison = "notEqual"
	ComparisonGreaterThan        Comparison = "greaterThan"
	ComparisonLessThan           Comparison = "lessThan"
	ComparisonGreaterThanOrEqual Comparison = "greaterThanOrEqual"
	ComparisonLessThanOrEqual    Comparison = "lessThanOrEqual"
	ComparisonContains           Comparison = "contains"
	ComparisonNotContains        Comparison = "notContains"
	ComparisonStartsWith         Comparison = "startsWith"
	ComparisonEndsWith           Comparison = "endsWith"
	ComparisonIncludes           Comparison = "includes"
	ComparisonEvery              Comparison = "every"
	ComparisonSome               Comparison = "some"
)

// Predicate is one constraint applied, in declaration order, to an
// extracted value.
type Predicate struct {
	PredicateType    PredicateType    `json:"type"`
	Comparison       Comparison       `json:"comparison"`
	Value            json.RawMessage  `json:"value"`
	CaseSensitive    *bool            `json:"caseSensitive,omitempty"`
	Flags            *string          `json:"flags,omitempty"`
	Description      string           `json:"description,omitempty"`
	NestedPredicate  *Predicate       `json:"nestedPredicate,omitempty"`
}

// IsCaseSensitive returns the predicate's case_sensitive flag, defaulting to
// true per spec.md §4.3.
func (p Predicate) IsCaseSensitive() bool {
	return p.CaseSensitive == nil || *p.CaseSensitive
}

// ExtractionResult is the lifecycle object described in spec.md §3: created
// empty per response, populated or error-extended per extractor in
// declaration order.
type ExtractionResult struct {
	Values map[string]json.RawMessage `json:"values"`
	Errors []string                   `json:"errors"`
}

// NewExtractionResult creates an empty result.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{Values: map[string]json.RawMessage{}}
}

// NotaryResponse is the live response the validator matches against a
// manifest.
type NotaryResponse struct {
	Status  string
	Version string
	Message string
	Headers map[string]string
	Body    []byte
}

// FromBytes parses a manifest from its UTF-8 JSON wire format.
func FromBytes(b []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ToBytes serializes a manifest back to its UTF-8 JSON wire format. Per
// spec.md §8's round-trip invariant, FromBytes(ToBytes(m)) == m.
func (m *Manifest) ToBytes() ([]byte, error) {
	return json.Marshal(m)
}
