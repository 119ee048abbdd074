package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ulpEpsilon is the tolerance used for float equality in numeric
// comparisons, per spec.md §4.3's "ULP-tolerant equality".
const ulpEpsilon = 1e-9

// ValidatePredicate applies one predicate to an extracted value, dispatching
// by PredicateType, per spec.md §4.3.
func ValidatePredicate(value json.RawMessage, p Predicate) error {
	switch p.PredicateType {
	case PredicateTypeValue:
		return validateValuePredicate(value, p)
	case PredicateTypeLength:
		return validateLengthPredicate(value, p)
	case PredicateTypeRegex:
		return validateRegexPredicate(value, p)
	case PredicateTypeString:
		return validateStringPredicate(value, p)
	case PredicateTypeArray:
		return validateArrayPredicate(value, p)
	default:
		return fmt.Errorf("unknown predicate type %q", p.PredicateType)
	}
}

func decodeAny(raw json.RawMessage) interface{} {
	var v interface{}
	_ = json.Unmarshal(raw, &v)
	return v
}

func asFloat(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asArray(v interface{}) ([]interface{}, bool) {
	a, ok := v.([]interface{})
	return a, ok
}

func rawEqual(a, b json.RawMessage) bool {
	var av, bv interface{}
	_ = json.Unmarshal(a, &av)
	_ = json.Unmarshal(b, &bv)
	return fmt.Sprint(av) == fmt.Sprint(bv) && sameJSONType(av, bv)
}

func sameJSONType(a, b interface{}) bool {
	switch a.(type) {
	case float64:
		_, ok := b.(float64)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	default:
		return true
	}
}

func validateValuePredicate(raw json.RawMessage, p Predicate) error {
	value := decodeAny(raw)
	expected := decodeAny(p.Value)

	switch p.Comparison {
	case ComparisonEqual, ComparisonNotEqual:
		vf, vIsNum := asFloat(value)
		ef, eIsNum := asFloat(expected)
		var equal bool
		if vIsNum && eIsNum {
			equal = math.Abs(vf-ef) < ulpEpsilon
		} else {
			equal = rawEqual(raw, p.Value)
		}
		if p.Comparison == ComparisonEqual && !equal {
			return fmt.Errorf("value %v does not equal expected %v", value, expected)
		}
		if p.Comparison == ComparisonNotEqual && equal {
			return fmt.Errorf("value %v unexpectedly equals %v", value, expected)
		}
		return nil
	case ComparisonGreaterThan, ComparisonLessThan, ComparisonGreaterThanOrEqual, ComparisonLessThanOrEqual:
		vf, vOK := asFloat(value)
		ef, eOK := asFloat(expected)
		if !vOK || !eOK {
			return fmt.Errorf("comparison %q requires numeric operands", p.Comparison)
		}
		switch p.Comparison {
		case ComparisonGreaterThan:
			if !(vf > ef) {
				return fmt.Errorf("value %v is not greater than %v", vf, ef)
			}
		case ComparisonLessThan:
			if !(vf < ef) {
				return fmt.Errorf("value %v is not less than %v", vf, ef)
			}
		case ComparisonGreaterThanOrEqual:
			if vf < ef {
				return fmt.Errorf("value %v is less than %v", vf, ef)
			}
		case ComparisonLessThanOrEqual:
			if vf > ef {
				return fmt.Errorf("value %v is greater than %v", vf, ef)
			}
		}
		return nil
	case ComparisonContains, ComparisonNotContains:
		return validateContains(value, expected, p.Comparison == ComparisonContains, p.IsCaseSensitive())
	case ComparisonStartsWith, ComparisonEndsWith:
		return validateStringPredicate(raw, p)
	default:
		return fmt.Errorf("comparison %q is not a value predicate", p.Comparison)
	}
}

func validateContains(value, expected interface{}, wantContains, caseSensitive bool) error {
	if s, ok := asString(value); ok {
		pattern, ok := asString(expected)
		if !ok {
			return fmt.Errorf("contains comparison on a string requires a string pattern")
		}
		haystack, needle := s, pattern
		if !caseSensitive {
			haystack, needle = strings.ToLower(haystack), strings.ToLower(needle)
		}
		contains := strings.Contains(haystack, needle)
		if contains != wantContains {
			if wantContains {
				return fmt.Errorf("string %q does not contain %q", s, pattern)
			}
			return fmt.Errorf("string %q unexpectedly contains %q", s, pattern)
		}
		return nil
	}
	if arr, ok := asArray(value); ok {
		member := false
		for _, el := range arr {
			if fmt.Sprint(el) == fmt.Sprint(expected) {
				member = true
				break
			}
		}
		if member != wantContains {
			if wantContains {
				return fmt.Errorf("array does not include %v", expected)
			}
			return fmt.Errorf("array unexpectedly includes %v", expected)
		}
		return nil
	}
	return fmt.Errorf("contains/notContains is only defined for strings and arrays")
}

func validateLengthPredicate(raw json.RawMessage, p Predicate) error {
	value := decodeAny(raw)
	var length int
	switch v := value.(type) {
	case string:
		length = len(v)
	case []interface{}:
		length = len(v)
	case map[string]interface{}:
		length = len(v)
	default:
		return fmt.Errorf("length predicate does not apply to this value's type")
	}

	var expected float64
	if err := json.Unmarshal(p.Value, &expected); err != nil || expected < 0 {
		return fmt.Errorf("length predicate comparison value must be a non-negative integer")
	}
	exp := int(expected)

	switch p.Comparison {
	case ComparisonEqual:
		if length != exp {
			return fmt.Errorf("length %d does not equal %d", length, exp)
		}
	case ComparisonNotEqual:
		if length == exp {
			return fmt.Errorf("length %d unexpectedly equals %d", length, exp)
		}
	case ComparisonGreaterThan:
		if length <= exp {
			return fmt.Errorf("length %d is not greater than %d", length, exp)
		}
	case ComparisonLessThan:
		if length >= exp {
			return fmt.Errorf("length %d is not less than %d", length, exp)
		}
	case ComparisonGreaterThanOrEqual:
		if length < exp {
			return fmt.Errorf("length %d is less than %d", length, exp)
		}
	case ComparisonLessThanOrEqual:
		if length > exp {
			return fmt.Errorf("length %d is greater than %d", length, exp)
		}
	default:
		return fmt.Errorf("comparison %q is not valid for a length predicate", p.Comparison)
	}
	return nil
}

func validateRegexPredicate(raw json.RawMessage, p Predicate) error {
	s, ok := asString(decodeAny(raw))
	if !ok {
		return fmt.Errorf("regex predicate only applies to strings")
	}
	var pattern string
	if err := json.Unmarshal(p.Value, &pattern); err != nil {
		return fmt.Errorf("regex predicate comparison value must be a string pattern")
	}

	re, err := compileRuntimeRegex(pattern, p.Flags)
	if err != nil {
		return fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	matches := re.MatchString(s)

	switch p.Comparison {
	case ComparisonEqual, ComparisonContains:
		if !matches {
			return fmt.Errorf("string %q does not match pattern %q", s, pattern)
		}
	case ComparisonNotEqual, ComparisonNotContains:
		if matches {
			return fmt.Errorf("string %q unexpectedly matches pattern %q", s, pattern)
		}
	default:
		return fmt.Errorf("comparison %q is not valid for a regex predicate", p.Comparison)
	}
	return nil
}

// compileRuntimeRegex compiles a pattern with the flags subset {i, m, s}
// using Go's stdlib RE2 engine. Per spec.md §9's design note, the runtime
// predicate engine is deliberately distinct from the ECMAScript-compatible
// engine (regexp2) used for manifest-author-facing `vars` patterns.
func compileRuntimeRegex(pattern string, flags *string) (*regexp.Regexp, error) {
	prefix := ""
	if flags != nil {
		for _, f := range *flags {
			switch f {
			case 'i', 'm', 's':
				prefix += string(f)
			default:
				return nil, fmt.Errorf("unsupported regex flag %q", f)
			}
		}
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	return regexp.Compile(pattern)
}

func validateStringPredicate(raw json.RawMessage, p Predicate) error {
	s, ok := asString(decodeAny(raw))
	if !ok {
		return fmt.Errorf("string predicate only applies to strings")
	}
	var operand string
	if err := json.Unmarshal(p.Value, &operand); err != nil {
		return fmt.Errorf("string predicate comparison value must be a string")
	}

	compareS, compareOperand := s, operand
	if !p.IsCaseSensitive() {
		compareS, compareOperand = strings.ToLower(s), strings.ToLower(operand)
	}

	switch p.Comparison {
	case ComparisonStartsWith:
		if !strings.HasPrefix(compareS, compareOperand) {
			return fmt.Errorf("string %q does not start with %q", s, operand)
		}
	case ComparisonEndsWith:
		if !strings.HasSuffix(compareS, compareOperand) {
			return fmt.Errorf("string %q does not end with %q", s, operand)
		}
	default:
		return fmt.Errorf("comparison %q is not valid for a string predicate", p.Comparison)
	}
	return nil
}

func validateArrayPredicate(raw json.RawMessage, p Predicate) error {
	arr, ok := asArray(decodeAny(raw))
	if !ok {
		return fmt.Errorf("array predicate only applies to arrays")
	}

	switch p.Comparison {
	case ComparisonIncludes:
		expected := decodeAny(p.Value)
		for _, el := range arr {
			if fmt.Sprint(el) == fmt.Sprint(expected) {
				return nil
			}
		}
		return fmt.Errorf("array does not include %v", expected)
	case ComparisonEvery:
		if p.NestedPredicate == nil {
			return fmt.Errorf("array predicate %q requires a nestedPredicate", p.Comparison)
		}
		// Empty array is vacuously true for "every", per spec.md §4.3.
		for _, el := range arr {
			elRaw, err := json.Marshal(el)
			if err != nil {
				return err
			}
			if err := ValidatePredicate(elRaw, *p.NestedPredicate); err != nil {
				return fmt.Errorf("element %v fails nested predicate: %w", el, err)
			}
		}
		return nil
	case ComparisonSome:
		if p.NestedPredicate == nil {
			return fmt.Errorf("array predicate %q requires a nestedPredicate", p.Comparison)
		}
		if len(arr) == 0 {
			// Empty array fails "some", per spec.md §4.3.
			return fmt.Errorf("array is empty, \"some\" predicate requires at least one match")
		}
		for _, el := range arr {
			elRaw, err := json.Marshal(el)
			if err != nil {
				return err
			}
			if ValidatePredicate(elRaw, *p.NestedPredicate) == nil {
				return nil
			}
		}
		return fmt.Errorf("no array element satisfies the nested predicate")
	default:
		return fmt.Errorf("comparison %q is not valid for an array predicate", p.Comparison)
	}
}
