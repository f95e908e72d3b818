package xlffile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDoc = `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2" xmlns="urn:oasis:names:tc:xliff:document:1.2">
  <file datatype="xml" source-language="en-US" target-language="de-DE" original="MyApp">
    <header><tool tool-id="gen" tool-name="Generator"></tool></header>
    <body>
      <group id="body">
        <!-- exported strings -->
        <trans-unit id="Table 100-Field 5-Property 2879900210" size-unit="char" translate="yes">
          <source>Save</source>
          <target>Speichern</target>
          <note from="Developer" annotates="general" priority="2"></note>
          <note from="Xliff Generator" annotates="general" priority="3">Table MyTable - Field Action - Property Caption</note>
        </trans-unit>
        <trans-unit id="Page 200-Control 7-Property 2879900210">
          <source>Cancel</source>
          <target></target>
          <note from="Developer" annotates="general" priority="2"></note>
          <note from="Xliff Generator" annotates="general" priority="3">Page MyPage - Control Cancel - Property Caption</note>
        </trans-unit>
      </group>
    </body>
  </file>
</xliff>`

func TestParseSampleDocument(t *testing.T) {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	units := f.Units()
	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}

	u := units[0]
	if u.ID != "Table 100-Field 5-Property 2879900210" {
		t.Errorf("id = %q", u.ID)
	}
	if u.Source != "Save" {
		t.Errorf("source = %q, want Save", u.Source)
	}
	if u.Target != "Speichern" || !u.HasTarget {
		t.Errorf("target = %q (hasTarget=%v)", u.Target, u.HasTarget)
	}
	if got := u.Description(); got != "Table MyTable - Field Action - Property Caption" {
		t.Errorf("description = %q", got)
	}
	if len(u.Attrs) != 2 {
		t.Errorf("extra attrs = %d, want 2 (size-unit, translate)", len(u.Attrs))
	}

	if f.TargetLanguage() != "de-DE" {
		t.Errorf("target-language = %q", f.TargetLanguage())
	}
	if f.SourceLanguage() != "en-US" {
		t.Errorf("source-language = %q", f.SourceLanguage())
	}
	if !f.HasGroup {
		t.Error("group wrapper not detected")
	}
	if len(f.Prolog) != 1 || !strings.Contains(f.Prolog[0], "tool-id") {
		t.Errorf("header not preserved: %v", f.Prolog)
	}
}

func TestRoundTripPreservesStructure(t *testing.T) {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	out := string(f.Marshal())

	for _, want := range []string{
		`target-language="de-DE"`,
		`<!-- exported strings -->`,
		`<tool tool-id="gen" tool-name="Generator"></tool>`,
		`<trans-unit id="Table 100-Field 5-Property 2879900210" size-unit="char" translate="yes">`,
		`<note from="Developer" annotates="general" priority="2"></note>`,
		`<target>Speichern</target>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized output missing %q", want)
		}
	}

	// Re-parsing the output must yield the same units.
	f2, err := Parse([]byte(out))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(f2.Units()) != 2 {
		t.Fatalf("reparsed units = %d, want 2", len(f2.Units()))
	}
	if f2.Units()[0].Target != "Speichern" {
		t.Errorf("reparsed target = %q", f2.Units()[0].Target)
	}
}

func TestParseErrorOnMalformedInput(t *testing.T) {
	_, err := Parse([]byte("<xliff><file><body><trans-unit id='x'>"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}

	_, err = Parse([]byte("<html><body>nope</body></html>"))
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError for non-XLIFF root", err)
	}
}

func TestParseFileAttachesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.de-DE.xlf")
	if err := os.WriteFile(path, []byte("not xml at <<"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseFile(path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Path != path {
		t.Errorf("path = %q, want %q", pe.Path, path)
	}
}

func TestMutations(t *testing.T) {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !f.SetTarget("Page 200-Control 7-Property 2879900210", "Abbrechen") {
		t.Fatal("SetTarget returned false for known id")
	}
	if f.SetTarget("unknown", "x") {
		t.Error("SetTarget should return false for unknown id")
	}

	if !f.SetID("Page 200-Control 7-Property 2879900210", "Page 300-Control 7-Property 2879900210") {
		t.Fatal("SetID failed")
	}
	if f.UnitByID("Page 200-Control 7-Property 2879900210") != nil {
		t.Error("old id still resolvable after SetID")
	}
	u := f.UnitByID("Page 300-Control 7-Property 2879900210")
	if u == nil || u.Target != "Abbrechen" {
		t.Fatalf("relabeled unit lost state: %+v", u)
	}

	if !f.RemoveUnit("Table 100-Field 5-Property 2879900210") {
		t.Fatal("RemoveUnit failed")
	}
	if len(f.Units()) != 1 {
		t.Fatalf("units after remove = %d, want 1", len(f.Units()))
	}

	nu := &Unit{ID: "New 1-Property 2", Source: "New", HasTarget: true}
	f.InsertUnit(nu)
	if f.UnitByID("New 1-Property 2") == nil {
		t.Error("inserted unit not indexed")
	}
}

func TestRelocateUnit(t *testing.T) {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f.InsertUnit(&Unit{ID: "third", Source: "Third", HasTarget: true})

	if !f.RelocateUnit("third", 0) {
		t.Fatal("RelocateUnit failed")
	}
	units := f.Units()
	if units[0].ID != "third" {
		t.Errorf("first unit = %q, want third", units[0].ID)
	}
	if len(units) != 3 {
		t.Errorf("units = %d, want 3", len(units))
	}
	// Index must still resolve after the move.
	if f.UnitByID("Table 100-Field 5-Property 2879900210") == nil {
		t.Error("index broken after relocate")
	}
}

func TestSetDescriptionCreatesNotes(t *testing.T) {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f.InsertUnit(&Unit{ID: "bare", Source: "Bare"})

	if !f.SetDescription("bare", "hint") {
		t.Fatal("SetDescription failed")
	}
	if got := f.UnitByID("bare").Description(); got != "hint" {
		t.Errorf("description = %q, want hint", got)
	}
}

func TestEnsureTargets(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2">
  <file source-language="en-US" original="App">
    <body>
      <trans-unit id="a"><source>A</source><note></note></trans-unit>
      <trans-unit id="b"><source>B</source><target>X</target></trans-unit>
    </body>
  </file>
</xliff>`
	f, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if changed := f.EnsureTargets(); changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}
	out := string(f.Marshal())
	if !strings.Contains(out, "<target></target>") {
		t.Error("empty target element not emitted")
	}
}

func TestSetTargetLanguageAddsAttribute(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2">
  <file source-language="en-US" original="App">
    <body>
      <trans-unit id="a"><source>A</source></trans-unit>
    </body>
  </file>
</xliff>`
	f, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f.SetTargetLanguage("fr-FR")
	if f.TargetLanguage() != "fr-FR" {
		t.Errorf("target-language = %q", f.TargetLanguage())
	}
	f.SetTargetLanguage("de-DE")
	if f.TargetLanguage() != "de-DE" {
		t.Errorf("target-language after update = %q", f.TargetLanguage())
	}
	out := string(f.Marshal())
	if strings.Count(out, "target-language") != 1 {
		t.Error("target-language attribute duplicated")
	}
}

func TestInlinePlaceholderSurvives(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2">
  <file source-language="en-US" original="App">
    <body>
      <trans-unit id="a"><source>Hello <x id="1"></x> world</source></trans-unit>
    </body>
  </file>
</xliff>`
	f, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	u := f.Units()[0]
	if !strings.Contains(u.Source, `<x id="1"></x>`) {
		t.Fatalf("placeholder lost: %q", u.Source)
	}
	out := string(f.Marshal())
	if !strings.Contains(out, `<x id="1"></x>`) {
		t.Error("placeholder not re-emitted")
	}
}

func TestEscaping(t *testing.T) {
	f := &File{}
	f.InsertUnit(&Unit{ID: `a"b`, Source: EscapeText("1 < 2 & 3"), HasTarget: true})
	f.SetTarget(`a"b`, "x > y")
	out := string(f.Marshal())
	if !strings.Contains(out, `id="a&quot;b"`) {
		t.Error("attribute quote not escaped")
	}
	if !strings.Contains(out, "<source>1 &lt; 2 &amp; 3</source>") {
		t.Errorf("source not escaped: %s", out)
	}
	if !strings.Contains(out, "<target>x &gt; y</target>") {
		t.Errorf("target not escaped: %s", out)
	}
}

func TestBracketedTextRoundTrip(t *testing.T) {
	// Plain text carrying both comparison brackets must stay escaped through
	// parse and re-emit; the output must parse again to the same content.
	doc := `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2">
  <file source-language="en-US" original="App">
    <body>
      <trans-unit id="a"><source>if a &lt; b then c &gt; d</source></trans-unit>
    </body>
  </file>
</xliff>`
	f, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := f.Units()[0].Source; got != "if a &lt; b then c &gt; d" {
		t.Errorf("source = %q, want the escaped form", got)
	}

	out := string(f.Marshal())
	if !strings.Contains(out, "<source>if a &lt; b then c &gt; d</source>") {
		t.Fatalf("re-emit corrupted the text:\n%s", out)
	}

	f2, err := Parse([]byte(out))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if f2.Units()[0].Source != f.Units()[0].Source {
		t.Errorf("round trip changed source: %q != %q", f2.Units()[0].Source, f.Units()[0].Source)
	}
}

func TestMarkupWithAmpersandRoundTrip(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2">
  <file source-language="en-US" original="App">
    <body>
      <trans-unit id="a"><source>Drag &amp; drop <x id="1"></x> here</source></trans-unit>
    </body>
  </file>
</xliff>`
	f, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := `Drag &amp; drop <x id="1"></x> here`
	if got := f.Units()[0].Source; got != want {
		t.Errorf("source = %q, want %q", got, want)
	}

	out := string(f.Marshal())
	if !strings.Contains(out, "<source>"+want+"</source>") {
		t.Fatalf("re-emit corrupted mixed content:\n%s", out)
	}
	if _, err := Parse([]byte(out)); err != nil {
		t.Fatalf("reparse: %v", err)
	}
}

func TestEscapeTextRoundTrip(t *testing.T) {
	for _, s := range []string{"a < b", "c > d", "x & y", `plain "quoted" text`, "&lt;already&gt;"} {
		if got := UnescapeText(EscapeText(s)); got != s {
			t.Errorf("round trip of %q = %q", s, got)
		}
	}
}

func TestHeaderCommentPreserved(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2">
  <file source-language="en-US" original="App">
    <header><!-- generator metadata --><tool tool-id="gen" tool-name="Gen"></tool></header>
    <!-- between header and body -->
    <body>
      <trans-unit id="a"><source>A</source></trans-unit>
    </body>
  </file>
</xliff>`
	f, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	out := string(f.Marshal())
	for _, want := range []string{
		"<!-- generator metadata -->",
		"<!-- between header and body -->",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if _, err := Parse([]byte(out)); err != nil {
		t.Fatalf("reparse: %v", err)
	}
}

func TestFileChildrenAfterBodyPreserved(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<xliff version="1.2">
  <file source-language="en-US" original="App">
    <body>
      <trans-unit id="a"><source>A</source></trans-unit>
    </body>
    <!-- trailing -->
    <count-group name="totals"><count>1</count></count-group>
  </file>
</xliff>`
	f, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.Epilog) != 2 {
		t.Fatalf("epilog = %v, want comment and element", f.Epilog)
	}
	if len(f.Prolog) != 0 {
		t.Errorf("prolog = %v, want empty", f.Prolog)
	}

	out := string(f.Marshal())
	bodyEnd := strings.Index(out, "</body>")
	countPos := strings.Index(out, "<count-group")
	if countPos < bodyEnd {
		t.Errorf("after-body element re-emitted before </body>:\n%s", out)
	}
	if !strings.Contains(out, "<!-- trailing -->") {
		t.Error("after-body comment lost")
	}
	if _, err := Parse([]byte(out)); err != nil {
		t.Fatalf("reparse: %v", err)
	}
}
