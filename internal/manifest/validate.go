package manifest

import (
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// templateTokenRe matches `<% name %>` tokens in header values and bodies,
// per spec.md §6's "Template tokens: `<% name %>`, regex `<%\s*(\w+)\s*%>`".
var templateTokenRe = regexp.MustCompile(`<%\s*(\w+)\s*%>`)

// ValidationSummary accumulates manifest validation errors rather than
// bailing on the first one, per spec.md §4.3.
type ValidationSummary struct {
	Errors    []string
	Extracted *ExtractionResult
}

// OK reports whether validation found no errors.
func (v *ValidationSummary) OK() bool { return len(v.Errors) == 0 }

func (v *ValidationSummary) addf(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate statically validates a manifest per spec.md §4.3's "Manifest
// validation (static)" rules, accumulating every failing check instead of
// stopping at the first.
func (m *Manifest) Validate() *ValidationSummary {
	v := &ValidationSummary{}

	if m.ManifestVersion != ManifestVersion {
		v.addf("manifest_version must be %q, got %q", ManifestVersion, m.ManifestVersion)
	}

	m.validateRequest(v)
	m.validateResponse(v)
	m.validateVars(v)

	return v
}

func (m *Manifest) validateRequest(v *ValidationSummary) {
	req := m.Request
	if req.Method != "GET" && req.Method != "POST" {
		v.addf("request method must be GET or POST, got %q", req.Method)
	}
	parsed, err := url.Parse(req.URL)
	if err != nil {
		v.addf("request URL does not parse: %v", err)
	} else if parsed.Scheme != "https" {
		v.addf("request URL scheme must be https, got %q", parsed.Scheme)
	}
	if req.Version != HTTP11 {
		v.addf("request version must be %q, got %q", HTTP11, req.Version)
	}
}

var supportedStatuses = map[string]bool{"200": true, "201": true}

func (m *Manifest) validateResponse(v *ValidationSummary) {
	resp := m.Response
	if !supportedStatuses[resp.Status] {
		v.addf("response status must be 200 or 201, got %q", resp.Status)
	}
	if resp.Version != HTTP11 {
		v.addf("response version must be %q, got %q", HTTP11, resp.Version)
	}
	if resp.Message == "" {
		v.addf("response message must not be empty")
	} else if len(resp.Message) > 1024 {
		v.addf("response message must be at most 1024 bytes, got %d", len(resp.Message))
	}

	headerCount := len(resp.Headers)
	if headerCount < 1 || headerCount > 25 {
		v.addf("response must declare between 1 and 25 headers, got %d", headerCount)
	}

	contentType, ok := lookupHeaderCI(resp.Headers, "Content-Type")
	if !ok {
		v.addf("response must declare a Content-Type header")
	} else {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			v.addf("response Content-Type header is not a valid media type: %v", err)
		} else if mediaType != "application/json" && mediaType != "text/plain" {
			v.addf("response Content-Type must be application/json or text/plain, got %q", mediaType)
		} else if mediaType == "application/json" && len(resp.Body.Extractors) == 0 {
			v.addf("JSON response body must declare at least one extractor")
		}
	}

	if len(resp.Body.Extractors) > 100 {
		v.addf("response body must declare at most 100 extractors, got %d", len(resp.Body.Extractors))
	}
}

// validateVars checks spec.md §4.3's template-variable rules: every `<% name
// %>` token appearing in a header value or body must be declared in vars;
// every declared vars entry must either be used or provide a default; if
// pattern is present it must compile, and any provided default must match
// it.
func (m *Manifest) validateVars(v *ValidationSummary) {
	used := map[string]bool{}
	for _, value := range m.Request.Headers {
		for _, tok := range templateTokenRe.FindAllStringSubmatch(value, -1) {
			used[tok[1]] = true
		}
	}
	for _, tok := range templateTokenRe.FindAllSubmatch(m.Request.Body, -1) {
		used[string(tok[1])] = true
	}

	for name := range used {
		if _, declared := m.Request.Vars[name]; !declared {
			v.addf("Token `<%% %s %%>` not declared in `vars`", name)
		}
	}

	for name, tv := range m.Request.Vars {
		if !used[name] && tv.Default == nil {
			v.addf("vars entry %q is unused and provides no default", name)
		}
		if tv.Pattern == nil {
			continue
		}
		re, err := regexp2.Compile(*tv.Pattern, regexp2.ECMAScript)
		if err != nil {
			v.addf("vars entry %q has an invalid pattern: %v", name, err)
			continue
		}
		if tv.Default != nil {
			matched, err := re.MatchString(*tv.Default)
			if err != nil {
				v.addf("vars entry %q: matching default against pattern: %v", name, err)
			} else if !matched {
				v.addf("vars entry %q default %q does not match pattern %q", name, *tv.Default, *tv.Pattern)
			}
		}
	}
}

func lookupHeaderCI(headers map[string]string, key string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
