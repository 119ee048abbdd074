package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/webproof/notary/internal/cryptoutil"
)

// Match compares a live NotaryResponse against the manifest's response lock,
// then runs the extractor pipeline over the body, per spec.md §4.3's
// "Response matching" and "Extraction" operations. Match failures on
// status/version/message/headers are fatal: the error is returned with a nil
// ExtractionResult. Failures of required extractors are recorded in the
// result's Errors and make Match return the result together with an error;
// failures of non-required extractors are not recorded and do not fail the
// match.
func (m *Manifest) Match(resp NotaryResponse) (*ExtractionResult, error) {
	if resp.Status != m.Response.Status {
		return nil, fmt.Errorf("response status %q does not match manifest status %q", resp.Status, m.Response.Status)
	}
	if resp.Version != m.Response.Version {
		return nil, fmt.Errorf("response version %q does not match manifest version %q", resp.Version, m.Response.Version)
	}
	if resp.Message != m.Response.Message {
		return nil, fmt.Errorf("response message %q does not match manifest message %q", resp.Message, m.Response.Message)
	}
	for name, want := range m.Response.Headers {
		got, ok := lookupHeaderCI(resp.Headers, name)
		if !ok {
			return nil, fmt.Errorf("response is missing required header %q", name)
		}
		if got != want {
			return nil, fmt.Errorf("response header %q is %q, manifest requires %q", name, got, want)
		}
	}

	result := NewExtractionResult()

	switch m.Response.Body.Format {
	case DataFormatJSON:
		for _, ex := range m.Response.Body.Extractors {
			value, err := ExtractJSONValue(resp.Body, ex.Selector)
			if err != nil {
				recordExtractorError(result, ex, err)
				continue
			}
			if err := validateExtractorType(value, ex.ExtractorType); err != nil {
				recordExtractorError(result, ex, err)
				continue
			}
			if err := applyExtractorPredicates(value, ex); err != nil {
				recordExtractorError(result, ex, err)
				continue
			}
			result.Values[ex.ID] = value
		}
	case DataFormatHTML:
		for _, ex := range m.Response.Body.Extractors {
			value, err := ExtractHTMLValue(resp.Body, ex.Selector, ex.Attribute, ex.ExtractorType)
			if err != nil {
				recordExtractorError(result, ex, err)
				continue
			}
			if err := applyExtractorPredicates(value, ex); err != nil {
				recordExtractorError(result, ex, err)
				continue
			}
			result.Values[ex.ID] = value
		}
	default:
		return nil, fmt.Errorf("unsupported response body format %q", m.Response.Body.Format)
	}

	for _, ex := range m.Response.Body.Extractors {
		if ex.IsRequired() {
			if _, ok := result.Values[ex.ID]; !ok {
				return result, fmt.Errorf("required extractor %q failed", ex.ID)
			}
		}
	}

	return result, nil
}

// validateExtractorType checks value's natural JSON type against extractor's
// declared type, per spec.md §4.3's "type-check against extractor_type" step
// (grounded on original_source/web-prover-core/src/parser/extractor.rs's
// validate_type, called between selector traversal and predicate
// evaluation). Number matches both ints and floats, since JSON has no
// separate integer type.
func validateExtractorType(value json.RawMessage, extractorType ExtractorType) error {
	decoded := decodeAny(value)
	var ok bool
	switch extractorType {
	case ExtractorTypeString:
		_, ok = decoded.(string)
	case ExtractorTypeNumber:
		_, ok = decoded.(float64)
	case ExtractorTypeBoolean:
		_, ok = decoded.(bool)
	case ExtractorTypeArray:
		_, ok = decoded.([]interface{})
	case ExtractorTypeObject:
		_, ok = decoded.(map[string]interface{})
	default:
		return fmt.Errorf("unknown extractor type %q", extractorType)
	}
	if !ok {
		return fmt.Errorf("Expected %s, got %s", extractorType, jsonTypeName(decoded))
	}
	return nil
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

// recordExtractorError records an extractor failure only when the
// extractor is required, per spec.md §4.3's "non-required extractors
// silently drop" (original_source/web-prover-core/src/parser/extractor.rs
// only pushes to result.errors when extractor.required is true). Errors
// are serialized into the extraction result's bound digest, so a failing
// non-required extractor must never perturb it.
func recordExtractorError(result *ExtractionResult, ex Extractor, err error) {
	if !ex.IsRequired() {
		return
	}
	result.Errors = append(result.Errors, fmt.Sprintf("extractor %q: %v", ex.ID, err))
}

func applyExtractorPredicates(value json.RawMessage, ex Extractor) error {
	for _, p := range ex.Predicates {
		if err := ValidatePredicate(value, p); err != nil {
			return fmt.Errorf("predicate %s %s failed: %w", p.PredicateType, p.Comparison, err)
		}
	}
	return nil
}

// Digest returns the Keccak-256 digest binding an ExtractionResult into the
// proof, per spec.md §4.3's "Result digest" (canonical form is the result's
// JSON encoding, sorted by Go's stable map key ordering in encoding/json).
func (r *ExtractionResult) Digest() ([]byte, error) {
	canonical, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing extraction result: %w", err)
	}
	return cryptoutil.Keccak256(canonical), nil
}
