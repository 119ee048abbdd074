package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractHTMLValue narrows an HTML document through a sequence of CSS
// selector segments, per spec.md §4.3's HTML extractor (grounded on
// original_source's parser/extractors/html.rs, re-expressed with goquery's
// Selection type in place of a hand-rolled DOM walk). Each segment narrows
// the current match set to its descendants; the final segment's matches are
// either returned as a JSON array (ExtractorTypeArray) or, for any other
// extractor type, only the first match is converted and returned.
func ExtractHTMLValue(doc []byte, selector []string, attribute *string, extractorType ExtractorType) (json.RawMessage, error) {
	if len(selector) == 0 {
		return nil, fmt.Errorf("html selector must not be empty")
	}

	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing html document: %w", err)
	}

	sel := root.Selection
	for i, seg := range selector {
		next := sel.Find(seg)
		if next.Length() == 0 {
			return nil, fmt.Errorf("css selector %q at segment %d matched no elements", seg, i)
		}
		sel = next
	}

	if extractorType == ExtractorTypeArray {
		var values []interface{}
		for i := range sel.Nodes {
			node := sel.Eq(i)
			v, err := htmlNodeValue(node, attribute)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			values = append(values, v)
		}
		return json.Marshal(values)
	}

	first := sel.First()
	v, err := htmlNodeValue(first, attribute)
	if err != nil {
		return nil, err
	}
	return convertHTMLScalar(v, extractorType)
}

func htmlNodeValue(sel *goquery.Selection, attribute *string) (string, error) {
	if attribute != nil {
		val, ok := sel.Attr(*attribute)
		if !ok {
			return "", fmt.Errorf("attribute %q not present on matched element", *attribute)
		}
		return val, nil
	}
	return strings.TrimSpace(sel.Text()), nil
}

func convertHTMLScalar(raw string, extractorType ExtractorType) (json.RawMessage, error) {
	switch extractorType {
	case ExtractorTypeString:
		return json.Marshal(raw)
	case ExtractorTypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("html text %q is not a number: %w", raw, err)
		}
		return json.Marshal(f)
	case ExtractorTypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("html text %q is not a boolean: %w", raw, err)
		}
		return json.Marshal(b)
	case ExtractorTypeObject:
		return nil, fmt.Errorf("object extractor type is not supported for html bodies")
	default:
		return json.Marshal(raw)
	}
}
