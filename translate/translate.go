// Package translate implements batch machine translation of pending units
// through the Microsoft Translator v3 HTTP boundary.
//
// A batch is the capped set of untranslated units of one document, in
// document order. The request pairs each unit's source text 1:1 with the
// provider's expected shape; the response must come back with the same
// length and order, otherwise nothing is applied.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xlf-tools/xlfsync/xlffile"
)

// DefaultEndpoint is the Microsoft Translator v3 translate endpoint.
const DefaultEndpoint = "https://api.cognitive.microsofttranslator.com/translate?api-version=3.0"

// DefaultTimeout bounds a single provider request. The service answers
// small batches well under this; a hung connection must not stall a run.
const DefaultTimeout = 30 * time.Second

// authFailureCode is the provider's error code for a rejected credential.
const authFailureCode = 401000

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for the translation service.
type Provider struct {
	// Endpoint is the translate URL including the api-version query.
	Endpoint string
	// APIKey is the subscription key.
	APIKey string
	// Category is an optional custom translation category id.
	Category string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout (DefaultTimeout when zero).
	Timeout time.Duration
}

// DefaultProvider returns the provider configuration with defaults applied.
func DefaultProvider(apiKey string) Provider {
	return Provider{
		Endpoint: DefaultEndpoint,
		APIKey:   apiKey,
		Timeout:  DefaultTimeout,
	}
}

func (p Provider) effectiveTimeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

// requestURL builds the full translate URL for a language pair.
func (p Provider) requestURL(sourceLang, targetLang string) string {
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u := endpoint + "&from=" + url.QueryEscape(sourceLang) + "&to=" + url.QueryEscape(targetLang)
	if p.Category != "" {
		u += "&category=" + url.QueryEscape(p.Category)
	}
	return u
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// AuthError reports a rejected credential. The caller may prompt for a new
// key and retry once; the package itself never retries.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("translation service rejected the credential (code %d): %s", e.Code, e.Message)
}

// ResponseError reports an error-carrying or malformed provider response,
// including a response whose length does not match the request. The batch
// is abandoned; no translation is applied.
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string {
	return "translation service error: " + e.Message
}

// ---------------------------------------------------------------------------
// Batch selection
// ---------------------------------------------------------------------------

// SelectPending returns the document's untranslated units in document order,
// truncated to at most max entries. max <= 0 means no cap.
func SelectPending(doc *xlffile.File, max int) []*xlffile.Unit {
	var pending []*xlffile.Unit
	for _, u := range doc.Units() {
		if u.IsTranslated() {
			continue
		}
		pending = append(pending, u)
		if max > 0 && len(pending) >= max {
			break
		}
	}
	return pending
}

// ---------------------------------------------------------------------------
// Wire codec
// ---------------------------------------------------------------------------

type requestItem struct {
	Text string `json:"Text"`
}

type resultItem struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

type errorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// BuildRequest packages the units' source texts for the provider,
// order-preserving, one item per unit. The provider sees plain text, not the
// stored escaped form.
func BuildRequest(units []*xlffile.Unit) ([]byte, error) {
	items := make([]requestItem, len(units))
	for i, u := range units {
		items[i] = requestItem{Text: xlffile.UnescapeText(u.Source)}
	}
	return json.Marshal(items)
}

// ParseResponse decodes a provider response body, enforcing that it carries
// exactly want translations in request order. A top-level error object is
// surfaced as *AuthError (credential rejected) or *ResponseError; a length
// mismatch is a *ResponseError.
func ParseResponse(body []byte, want int) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &ResponseError{Message: "empty response"}
	}

	if trimmed[0] == '{' {
		var env errorEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil || env.Error == nil {
			return nil, &ResponseError{Message: "unexpected response shape: " + truncate(string(trimmed), 200)}
		}
		if env.Error.Code == authFailureCode {
			return nil, &AuthError{Code: env.Error.Code, Message: env.Error.Message}
		}
		return nil, &ResponseError{Message: fmt.Sprintf("code %d: %s", env.Error.Code, env.Error.Message)}
	}

	var results []resultItem
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil, &ResponseError{Message: "invalid JSON response: " + err.Error()}
	}
	if len(results) != want {
		return nil, &ResponseError{Message: fmt.Sprintf("response length %d does not match request length %d", len(results), want)}
	}

	out := make([]string, want)
	for i, r := range results {
		if len(r.Translations) == 0 {
			return nil, &ResponseError{Message: fmt.Sprintf("result %d carries no translation", i)}
		}
		out[i] = r.Translations[0].Text
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Provider call
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Translate submits one batch of units and returns the translated strings in
// request order. It performs exactly one request: credential-refresh retries
// are the caller's decision (check for *AuthError with errors.As).
func Translate(ctx context.Context, prov Provider, sourceLang, targetLang string, units []*xlffile.Unit) ([]string, error) {
	if len(units) == 0 {
		return nil, nil
	}

	body, err := BuildRequest(units)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", prov.requestURL(sourceLang, targetLang), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", prov.APIKey)

	client := makeHTTPClient(prov.Proxy, prov.effectiveTimeout())
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	// The service reports failures (including auth) as a JSON error object,
	// with a matching non-200 status. Parse the body first so the typed
	// error wins over a bare status code.
	translations, perr := ParseResponse(respBody, len(units))
	if perr != nil {
		var re *ResponseError
		if resp.StatusCode != http.StatusOK && errors.As(perr, &re) && strings.HasPrefix(re.Message, "unexpected") {
			return nil, &ResponseError{Message: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200))}
		}
		return nil, perr
	}
	return translations, nil
}

// ---------------------------------------------------------------------------
// Merge
// ---------------------------------------------------------------------------

// Apply assigns translations[i] to units[i].target, all or nothing. On a
// length mismatch no unit changes and a *ResponseError is returned.
func Apply(doc *xlffile.File, units []*xlffile.Unit, translations []string) error {
	if len(translations) != len(units) {
		return &ResponseError{Message: fmt.Sprintf("cannot apply %d translations to %d units", len(translations), len(units))}
	}
	for i, u := range units {
		doc.SetTarget(u.ID, translations[i])
	}
	return nil
}

// TranslateDocument runs the full batch flow for one document: select
// pending up to max, submit, apply. Returns the number of units translated.
// The document is not persisted; that is the caller's step.
func TranslateDocument(ctx context.Context, prov Provider, doc *xlffile.File, sourceLang string, max int) (int, error) {
	targetLang := doc.TargetLanguage()
	if targetLang == "" {
		return 0, &ResponseError{Message: "document has no target-language attribute"}
	}

	units := SelectPending(doc, max)
	if len(units) == 0 {
		return 0, nil
	}

	translations, err := Translate(ctx, prov, sourceLang, targetLang, units)
	if err != nil {
		return 0, err
	}
	if err := Apply(doc, units, translations); err != nil {
		return 0, err
	}
	return len(units), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
