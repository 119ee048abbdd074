package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleManifest(t *testing.T) *Manifest {
	t.Helper()
	raw := []byte(`{
		"manifestVersion": "2",
		"id": "example",
		"request": {
			"method": "GET",
			"url": "https://api.example.com/user/<% userId %>",
			"version": "HTTP/1.1",
			"headers": {"Authorization": "Bearer <% token %>"},
			"vars": {
				"userId": {"required": true, "default": "42", "pattern": "^[0-9]+$"},
				"token": {"required": true, "default": "abc"}
			}
		},
		"response": {
			"status": "200",
			"version": "HTTP/1.1",
			"message": "OK",
			"headers": {"Content-Type": "application/json"},
			"body": {
				"format": "json",
				"extractors": [
					{"id": "balance", "selector": ["account", "balance"], "type": "number",
					 "predicates": [{"type": "value", "comparison": "greaterThan", "value": 0}]},
					{"id": "name", "selector": ["account", "name"], "type": "string"}
				]
			}
		}
	}`)
	m, err := FromBytes(raw)
	require.NoError(t, err)
	return m
}

func TestManifestValidatePasses(t *testing.T) {
	m := sampleManifest(t)
	summary := m.Validate()
	require.True(t, summary.OK(), "%v", summary.Errors)
}

func TestManifestValidateRejectsBadScheme(t *testing.T) {
	m := sampleManifest(t)
	m.Request.URL = "http://api.example.com/user/1"
	summary := m.Validate()
	require.False(t, summary.OK())
}

func TestManifestValidateRejectsUnusedVarWithoutDefault(t *testing.T) {
	m := sampleManifest(t)
	m.Request.Vars["unused"] = TemplateVar{Required: false}
	summary := m.Validate()
	require.False(t, summary.OK())
}

func TestManifestRoundTrip(t *testing.T) {
	m := sampleManifest(t)
	b, err := m.ToBytes()
	require.NoError(t, err)
	m2, err := FromBytes(b)
	require.NoError(t, err)
	require.Equal(t, m.Request.URL, m2.Request.URL)
}

func TestMatchSucceedsAndExtracts(t *testing.T) {
	m := sampleManifest(t)
	resp := NotaryResponse{
		Status:  "200",
		Version: "HTTP/1.1",
		Message: "OK",
		Headers: map[string]string{"content-type": "application/json"},
		Body:    []byte(`{"account": {"balance": 42, "name": "alice"}}`),
	}
	result, err := m.Match(resp)
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	var balance float64
	require.NoError(t, json.Unmarshal(result.Values["balance"], &balance))
	require.Equal(t, float64(42), balance)
}

func TestMatchFailsRequiredExtractor(t *testing.T) {
	m := sampleManifest(t)
	resp := NotaryResponse{
		Status:  "200",
		Version: "HTTP/1.1",
		Message: "OK",
		Headers: map[string]string{"content-type": "application/json"},
		Body:    []byte(`{"account": {"name": "alice"}}`),
	}
	_, err := m.Match(resp)
	require.Error(t, err)
}

func TestMatchRejectsWrongStatus(t *testing.T) {
	m := sampleManifest(t)
	resp := NotaryResponse{
		Status:  "404",
		Version: "HTTP/1.1",
		Message: "OK",
		Headers: map[string]string{"content-type": "application/json"},
		Body:    []byte(`{}`),
	}
	_, err := m.Match(resp)
	require.Error(t, err)
}

func TestExtractJSONValueOutOfBounds(t *testing.T) {
	_, err := ExtractJSONValue([]byte(`{"a": [1,2,3]}`), []string{"a", "5"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of bounds")
}

func TestExtractJSONValueMissingKey(t *testing.T) {
	_, err := ExtractJSONValue([]byte(`{"a": 1}`), []string{"b"})
	require.Error(t, err)
}

func TestValidatePredicateArrayEvery(t *testing.T) {
	arr := []byte(`[1, 2, 3]`)
	p := Predicate{
		PredicateType: PredicateTypeArray,
		Comparison:    ComparisonEvery,
		NestedPredicate: &Predicate{
			PredicateType: PredicateTypeValue,
			Comparison:    ComparisonGreaterThan,
			Value:         []byte("0"),
		},
	}
	require.NoError(t, ValidatePredicate(arr, p))
}

func TestValidatePredicateArraySomeEmptyFails(t *testing.T) {
	arr := []byte(`[]`)
	p := Predicate{
		PredicateType: PredicateTypeArray,
		Comparison:    ComparisonSome,
		NestedPredicate: &Predicate{
			PredicateType: PredicateTypeValue,
			Comparison:    ComparisonEqual,
			Value:         []byte("1"),
		},
	}
	require.Error(t, ValidatePredicate(arr, p))
}

func TestValidatePredicateRegex(t *testing.T) {
	flags := "i"
	p := Predicate{
		PredicateType: PredicateTypeRegex,
		Comparison:    ComparisonEqual,
		Value:         []byte(`"^HELLO"`),
		Flags:         &flags,
	}
	require.NoError(t, ValidatePredicate([]byte(`"hello world"`), p))
}

func TestDigestIsDeterministic(t *testing.T) {
	r := NewExtractionResult()
	r.Values["x"] = []byte(`1`)
	d1, err := r.Digest()
	require.NoError(t, err)
	d2, err := r.Digest()
	require.NoError(t, err)
	require.Equal(t, d1, d2)
	require.Len(t, d1, 32)
}
