package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xlf-tools/xlfsync/xlffile"
)

func docWith(units ...*xlffile.Unit) *xlffile.File {
	f := &xlffile.File{}
	f.SetTargetLanguage("de-DE")
	for _, u := range units {
		f.InsertUnit(u)
	}
	return f
}

func pendingUnit(id, source string) *xlffile.Unit {
	return &xlffile.Unit{ID: id, Source: source, HasTarget: true}
}

func translatedUnit(id, source, target string) *xlffile.Unit {
	return &xlffile.Unit{ID: id, Source: source, Target: target, HasTarget: true}
}

func TestSelectPending(t *testing.T) {
	doc := docWith(
		translatedUnit("a", "A", "A-de"),
		pendingUnit("b", "B"),
		pendingUnit("c", "C"),
		pendingUnit("d", "D"),
	)

	got := SelectPending(doc, 2)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("capped selection = %v", idsOf(got))
	}

	got = SelectPending(doc, 0)
	if len(got) != 3 {
		t.Errorf("uncapped selection = %v, want 3 units", idsOf(got))
	}

	got = SelectPending(doc, 10)
	if len(got) != 3 {
		t.Errorf("oversized cap selection = %v, want 3 units", idsOf(got))
	}
}

func idsOf(units []*xlffile.Unit) []string {
	var out []string
	for _, u := range units {
		out = append(out, u.ID)
	}
	return out
}

func TestBuildRequest(t *testing.T) {
	body, err := BuildRequest([]*xlffile.Unit{
		pendingUnit("a", "Hello"),
		pendingUnit("b", "World"),
	})
	if err != nil {
		t.Fatal(err)
	}
	var items []map[string]string
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0]["Text"] != "Hello" || items[1]["Text"] != "World" {
		t.Errorf("request = %s", body)
	}
}

func TestBuildRequestSendsPlainText(t *testing.T) {
	// Stored source is escaped; the provider must see the plain text.
	body, err := BuildRequest([]*xlffile.Unit{
		pendingUnit("a", "if a &lt; b then c &gt; d"),
	})
	if err != nil {
		t.Fatal(err)
	}
	var items []map[string]string
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatal(err)
	}
	if items[0]["Text"] != "if a < b then c > d" {
		t.Errorf("Text = %q", items[0]["Text"])
	}
}

func TestApplyEscapesTranslations(t *testing.T) {
	doc := docWith(pendingUnit("a", "A"))
	units := doc.Units()

	if err := Apply(doc, units, []string{"x < y & z"}); err != nil {
		t.Fatal(err)
	}
	if got := doc.UnitByID("a").Target; got != "x &lt; y &amp; z" {
		t.Errorf("target = %q, want the escaped form", got)
	}
}

func TestParseResponse(t *testing.T) {
	good := `[{"translations":[{"text":"Hallo"}]},{"translations":[{"text":"Welt"}]}]`
	out, err := ParseResponse([]byte(good), 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out[0] != "Hallo" || out[1] != "Welt" {
		t.Errorf("translations = %v", out)
	}

	_, err = ParseResponse([]byte(good), 3)
	var re *ResponseError
	if !errors.As(err, &re) {
		t.Errorf("length mismatch error = %v, want *ResponseError", err)
	}

	auth := `{"error":{"code":401000,"message":"The request is not authorized because credentials are missing or invalid."}}`
	_, err = ParseResponse([]byte(auth), 1)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("auth error = %v, want *AuthError", err)
	}
	if ae.Code != 401000 {
		t.Errorf("code = %d", ae.Code)
	}

	other := `{"error":{"code":429001,"message":"rate limited"}}`
	_, err = ParseResponse([]byte(other), 1)
	if !errors.As(err, &re) || errors.As(err, &ae) {
		t.Errorf("non-auth error = %v, want plain *ResponseError", err)
	}

	_, err = ParseResponse([]byte(""), 1)
	if !errors.As(err, &re) {
		t.Errorf("empty body error = %v", err)
	}

	_, err = ParseResponse([]byte(`{"weird":true}`), 1)
	if !errors.As(err, &re) {
		t.Errorf("unexpected shape error = %v", err)
	}
}

func TestTranslateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret" {
			t.Errorf("key header = %q", r.Header.Get("Ocp-Apim-Subscription-Key"))
		}
		q := r.URL.Query()
		if q.Get("from") != "en-US" || q.Get("to") != "de-DE" {
			t.Errorf("language pair = %s -> %s", q.Get("from"), q.Get("to"))
		}
		var items []struct {
			Text string `json:"Text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
			t.Errorf("request body: %v", err)
		}
		var resp []map[string]any
		for _, it := range items {
			resp = append(resp, map[string]any{
				"translations": []map[string]string{{"text": "de:" + it.Text}},
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	prov := Provider{Endpoint: srv.URL + "/translate?api-version=3.0", APIKey: "secret"}
	out, err := Translate(context.Background(), prov, "en-US", "de-DE", []*xlffile.Unit{
		pendingUnit("a", "Hello"),
		pendingUnit("b", "World"),
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(out) != 2 || out[0] != "de:Hello" || out[1] != "de:World" {
		t.Errorf("translations = %v", out)
	}
}

func TestTranslateAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401000,"message":"invalid key"}}`))
	}))
	defer srv.Close()

	prov := Provider{Endpoint: srv.URL + "/translate?api-version=3.0", APIKey: "bad"}
	_, err := Translate(context.Background(), prov, "en-US", "de-DE", []*xlffile.Unit{
		pendingUnit("a", "Hello"),
	})
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want *AuthError", err)
	}
}

func TestTranslateEmptyBatch(t *testing.T) {
	out, err := Translate(context.Background(), DefaultProvider("k"), "en-US", "de-DE", nil)
	if err != nil || out != nil {
		t.Errorf("empty batch: out=%v err=%v", out, err)
	}
}

func TestTranslateDocumentAllOrNothing(t *testing.T) {
	// The provider answers with fewer results than requested. No unit of the
	// document may change.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"translations":[{"text":"one"}]},{"translations":[{"text":"two"}]}]`))
	}))
	defer srv.Close()

	doc := docWith(
		pendingUnit("a", "A"),
		pendingUnit("b", "B"),
		pendingUnit("c", "C"),
	)
	prov := Provider{Endpoint: srv.URL + "/translate?api-version=3.0", APIKey: "k"}

	n, err := TranslateDocument(context.Background(), prov, doc, "en-US", 0)
	var re *ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *ResponseError", err)
	}
	if n != 0 {
		t.Errorf("translated = %d, want 0", n)
	}
	for _, u := range doc.Units() {
		if u.Target != "" {
			t.Errorf("unit %q target = %q, applied despite failure", u.ID, u.Target)
		}
	}
}

func TestTranslateDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var items []struct {
			Text string `json:"Text"`
		}
		json.NewDecoder(r.Body).Decode(&items)
		var resp []map[string]any
		for _, it := range items {
			resp = append(resp, map[string]any{
				"translations": []map[string]string{{"text": strings.ToLower(it.Text)}},
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	doc := docWith(
		translatedUnit("a", "Keep", "Behalten"),
		pendingUnit("b", "HELLO"),
		pendingUnit("c", "WORLD"),
	)
	prov := Provider{Endpoint: srv.URL + "/translate?api-version=3.0", APIKey: "k"}

	n, err := TranslateDocument(context.Background(), prov, doc, "en-US", 0)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if n != 2 {
		t.Errorf("translated = %d, want 2", n)
	}
	if got := doc.UnitByID("b").Target; got != "hello" {
		t.Errorf("b target = %q", got)
	}
	if got := doc.UnitByID("a").Target; got != "Behalten" {
		t.Errorf("a target = %q, existing translation touched", got)
	}
}

func TestTranslateDocumentNoTargetLanguage(t *testing.T) {
	doc := &xlffile.File{}
	doc.InsertUnit(pendingUnit("a", "A"))

	_, err := TranslateDocument(context.Background(), DefaultProvider("k"), doc, "en-US", 0)
	if err == nil {
		t.Fatal("expected error for missing target-language")
	}
}

func TestRequestURL(t *testing.T) {
	p := Provider{Endpoint: "https://example.test/translate?api-version=3.0", Category: "my cat"}
	got := p.requestURL("en-US", "fr-FR")
	want := "https://example.test/translate?api-version=3.0&from=en-US&to=fr-FR&category=my+cat"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}
}
