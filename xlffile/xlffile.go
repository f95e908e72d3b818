// Package xlffile implements reading and writing of XLIFF 1.2 translation
// files as produced by AL-style authoring tools.
//
// A document is parsed into a typed tree: the <xliff>/<file>/<body> shell
// with its attributes, an optional <group> wrapper, and an ordered list of
// body nodes. Each node is a trans-unit, an XML comment, or an unrecognized
// element kept as raw XML. Everything that is not modeled as a unit field
// (extra notes, unit attributes, header elements, comments) survives a
// parse/serialize round trip.
package xlffile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ParseError reports a malformed XLIFF document. It is fatal for the single
// document being processed; callers must not abort sibling documents.
type ParseError struct {
	// Path is the source file, empty when parsing from memory.
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("parsing XLIFF document: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// Note is a <note> child of a trans-unit. Attributes (from, annotates,
// priority) are preserved verbatim.
type Note struct {
	Attrs []xml.Attr
	Text  string
}

// Unit is a single <trans-unit>: one localizable string.
type Unit struct {
	// ID is the trans-unit id attribute, unique within a document.
	ID string
	// Attrs holds all trans-unit attributes except id, in document order
	// (size-unit, translate, xml:space, ...).
	Attrs []xml.Attr
	// Source is the original-language content in canonical inline form:
	// character data XML-escaped, inline child markup (placeholders) kept
	// as literal XML. Marshal emits it verbatim; UnescapeText recovers the
	// plain text.
	Source string
	// Target is the localized content, same form as Source; empty means
	// untranslated.
	Target string
	// HasTarget records whether a <target> element exists. Catalog files
	// typically have none; language documents get one on creation.
	HasTarget bool
	// Notes are all <note> children in document order. By convention the
	// note at index 1 carries the human-readable description.
	Notes []Note
	// Extra holds unrecognized child elements as raw XML, re-emitted after
	// the notes.
	Extra []string
}

// Description returns the description note text (note index 1), or "" when
// the unit has fewer than two notes.
func (u *Unit) Description() string {
	if len(u.Notes) < 2 {
		return ""
	}
	return u.Notes[1].Text
}

// IsTranslated reports whether the unit carries a non-empty target.
func (u *Unit) IsTranslated() bool { return u.Target != "" }

// Clone returns a deep copy of the unit.
func (u *Unit) Clone() *Unit {
	c := *u
	c.Attrs = append([]xml.Attr(nil), u.Attrs...)
	c.Notes = make([]Note, len(u.Notes))
	for i, n := range u.Notes {
		c.Notes[i] = Note{Attrs: append([]xml.Attr(nil), n.Attrs...), Text: n.Text}
	}
	c.Extra = append([]string(nil), u.Extra...)
	return &c
}

// NodeKind identifies the type of a body node.
type NodeKind int

const (
	// KindUnit is a <trans-unit> element.
	KindUnit NodeKind = iota
	// KindComment is an XML comment between units.
	KindComment
	// KindRaw is an unrecognized element kept as raw XML.
	KindRaw
)

// Node is one child of <body> (or of the <group> wrapper) in document order.
type Node struct {
	Kind    NodeKind
	Unit    *Unit  // KindUnit
	Comment string // KindComment, without <!-- -->
	Raw     string // KindRaw, verbatim XML
}

// File is a parsed XLIFF document.
type File struct {
	// XliffAttrs are the attributes of the <xliff> element (version, xmlns...).
	XliffAttrs []xml.Attr
	// FileAttrs are the attributes of the <file> element, including
	// source-language and target-language.
	FileAttrs []xml.Attr
	// Prolog holds <file> children that precede <body> (e.g. <header>) as
	// raw XML, comments included.
	Prolog []string
	// Epilog holds <file> children that follow </body> as raw XML.
	Epilog []string
	// HasGroup records whether units live inside a <group> wrapper.
	HasGroup bool
	// GroupAttrs are the attributes of that wrapper, if present.
	GroupAttrs []xml.Attr
	// Nodes are the body children in document order.
	Nodes []*Node

	// byID maps unit id to index in Nodes.
	byID map[string]int
}

// Units returns the trans-units in document order.
func (f *File) Units() []*Unit {
	var units []*Unit
	for _, n := range f.Nodes {
		if n.Kind == KindUnit {
			units = append(units, n.Unit)
		}
	}
	return units
}

// UnitByID returns the unit with the given id, or nil.
func (f *File) UnitByID(id string) *Unit {
	idx, ok := f.byID[id]
	if !ok {
		return nil
	}
	return f.Nodes[idx].Unit
}

// Stats returns (total, translated, pending) unit counts.
func (f *File) Stats() (total, translated, pending int) {
	for _, u := range f.Units() {
		total++
		if u.IsTranslated() {
			translated++
		} else {
			pending++
		}
	}
	return
}

// SourceLanguage returns the <file> source-language attribute.
func (f *File) SourceLanguage() string { return attrValue(f.FileAttrs, "source-language") }

// TargetLanguage returns the <file> target-language attribute.
func (f *File) TargetLanguage() string { return attrValue(f.FileAttrs, "target-language") }

// SetTargetLanguage sets (or adds) the target-language attribute on <file>.
func (f *File) SetTargetLanguage(lang string) {
	for i, a := range f.FileAttrs {
		if a.Name.Local == "target-language" && a.Name.Space == "" {
			f.FileAttrs[i].Value = lang
			return
		}
	}
	f.FileAttrs = append(f.FileAttrs, xml.Attr{Name: xml.Name{Local: "target-language"}, Value: lang})
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// InsertUnit appends a unit to the end of the group.
func (f *File) InsertUnit(u *Unit) {
	idx := len(f.Nodes)
	f.Nodes = append(f.Nodes, &Node{Kind: KindUnit, Unit: u})
	if f.byID == nil {
		f.byID = make(map[string]int)
	}
	f.byID[u.ID] = idx
}

// RemoveUnit deletes the unit with the given id. Returns false if absent.
func (f *File) RemoveUnit(id string) bool {
	idx, ok := f.byID[id]
	if !ok {
		return false
	}
	f.Nodes = append(f.Nodes[:idx], f.Nodes[idx+1:]...)
	f.reindex()
	return true
}

// SetTarget sets the target of a unit to the given plain text, escaping XML
// specials, and creates the target element if the unit had none. Returns
// false if the id is unknown.
func (f *File) SetTarget(id, text string) bool {
	u := f.UnitByID(id)
	if u == nil {
		return false
	}
	u.Target = EscapeText(text)
	u.HasTarget = true
	return true
}

// SetSource replaces the source of a unit with canonical inline content, as
// produced by the parser (another unit's Source field).
func (f *File) SetSource(id, text string) bool {
	u := f.UnitByID(id)
	if u == nil {
		return false
	}
	u.Source = text
	return true
}

// SetDescription sets the description note (note index 1), creating notes as
// needed. Returns false if the id is unknown.
func (f *File) SetDescription(id, text string) bool {
	u := f.UnitByID(id)
	if u == nil {
		return false
	}
	for len(u.Notes) < 2 {
		u.Notes = append(u.Notes, Note{})
	}
	u.Notes[1].Text = text
	return true
}

// SetID relabels a unit. Returns false if oldID is unknown or newID is
// already taken by another unit.
func (f *File) SetID(oldID, newID string) bool {
	idx, ok := f.byID[oldID]
	if !ok {
		return false
	}
	if oldID == newID {
		return true
	}
	if _, taken := f.byID[newID]; taken {
		return false
	}
	f.Nodes[idx].Unit.ID = newID
	delete(f.byID, oldID)
	f.byID[newID] = idx
	return true
}

// RelocateUnit moves a unit so that it becomes the pos-th trans-unit in the
// document (clamped to the unit count). Non-unit nodes keep their relative
// position ahead of the insertion point.
func (f *File) RelocateUnit(id string, pos int) bool {
	idx, ok := f.byID[id]
	if !ok {
		return false
	}
	node := f.Nodes[idx]
	f.Nodes = append(f.Nodes[:idx], f.Nodes[idx+1:]...)

	// Find the node index where the pos-th unit slot begins.
	insertAt := len(f.Nodes)
	seen := 0
	for i, n := range f.Nodes {
		if n.Kind != KindUnit {
			continue
		}
		if seen == pos {
			insertAt = i
			break
		}
		seen++
	}
	f.Nodes = append(f.Nodes, nil)
	copy(f.Nodes[insertAt+1:], f.Nodes[insertAt:])
	f.Nodes[insertAt] = node
	f.reindex()
	return true
}

// EnsureTargets adds an empty target element to every unit lacking one.
// Returns the number of units changed.
func (f *File) EnsureTargets() int {
	changed := 0
	for _, u := range f.Units() {
		if !u.HasTarget {
			u.HasTarget = true
			changed++
		}
	}
	return changed
}

func (f *File) reindex() {
	f.byID = make(map[string]int)
	for i, n := range f.Nodes {
		if n.Kind == KindUnit {
			f.byID[n.Unit.ID] = i
		}
	}
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses an XLIFF file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return f, nil
}

// Parse parses XLIFF 1.2 data.
func Parse(data []byte) (*File, error) {
	f := &File{byID: make(map[string]int)}
	dec := xml.NewDecoder(strings.NewReader(string(data)))

	var (
		sawXliff bool
		sawFile  bool
		sawBody  bool
		inFile   bool
		inBody   bool
		bodyDone bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case !sawXliff:
				if t.Name.Local != "xliff" {
					return nil, &ParseError{Err: fmt.Errorf("root element is <%s>, want <xliff>", t.Name.Local)}
				}
				sawXliff = true
				f.XliffAttrs = copyAttrs(t.Attr)

			case !sawFile && t.Name.Local == "file":
				sawFile = true
				inFile = true
				f.FileAttrs = copyAttrs(t.Attr)

			case inFile && !inBody && !bodyDone && t.Name.Local == "body":
				sawBody = true
				inBody = true

			case inFile && !inBody:
				// <header> and friends: keep verbatim, on whichever side of
				// <body> they appeared.
				raw, err := captureElement(dec, t)
				if err != nil {
					return nil, &ParseError{Err: err}
				}
				if bodyDone {
					f.Epilog = append(f.Epilog, raw)
				} else {
					f.Prolog = append(f.Prolog, raw)
				}

			case inBody && t.Name.Local == "group" && !f.HasGroup && !f.hasUnits():
				f.HasGroup = true
				f.GroupAttrs = copyAttrs(t.Attr)

			case inBody && t.Name.Local == "trans-unit":
				u, err := parseUnit(dec, t)
				if err != nil {
					return nil, &ParseError{Err: err}
				}
				f.InsertUnit(u)

			case inBody:
				raw, err := captureElement(dec, t)
				if err != nil {
					return nil, &ParseError{Err: err}
				}
				f.Nodes = append(f.Nodes, &Node{Kind: KindRaw, Raw: raw})

			default:
				if err := dec.Skip(); err != nil {
					return nil, &ParseError{Err: err}
				}
			}

		case xml.Comment:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch {
			case inBody:
				f.Nodes = append(f.Nodes, &Node{Kind: KindComment, Comment: text})
			case inFile && bodyDone:
				f.Epilog = append(f.Epilog, "<!-- "+text+" -->")
			case inFile:
				f.Prolog = append(f.Prolog, "<!-- "+text+" -->")
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "body":
				inBody = false
				bodyDone = true
			case "file":
				inFile = false
			}
		}
	}

	if !sawXliff || !sawFile || !sawBody {
		return nil, &ParseError{Err: fmt.Errorf("not an XLIFF document: missing xliff/file/body structure")}
	}
	return f, nil
}

func (f *File) hasUnits() bool { return len(f.byID) > 0 }

func copyAttrs(attrs []xml.Attr) []xml.Attr {
	return append([]xml.Attr(nil), attrs...)
}

// parseUnit parses a <trans-unit> element already opened.
func parseUnit(dec *xml.Decoder, elem xml.StartElement) (*Unit, error) {
	u := &Unit{}
	for _, a := range elem.Attr {
		if a.Name.Local == "id" && a.Name.Space == "" {
			u.ID = a.Value
		} else {
			u.Attrs = append(u.Attrs, a)
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading <trans-unit id=%q>: %w", u.ID, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "source":
				text, err := readInline(dec)
				if err != nil {
					return nil, fmt.Errorf("reading <source> of %q: %w", u.ID, err)
				}
				u.Source = text
			case "target":
				text, err := readInline(dec)
				if err != nil {
					return nil, fmt.Errorf("reading <target> of %q: %w", u.ID, err)
				}
				u.Target = text
				u.HasTarget = true
			case "note":
				attrs := copyAttrs(t.Attr)
				text, err := readInline(dec)
				if err != nil {
					return nil, fmt.Errorf("reading <note> of %q: %w", u.ID, err)
				}
				u.Notes = append(u.Notes, Note{Attrs: attrs, Text: text})
			default:
				raw, err := captureElement(dec, t)
				if err != nil {
					return nil, fmt.Errorf("reading <%s> of %q: %w", t.Name.Local, u.ID, err)
				}
				u.Extra = append(u.Extra, raw)
			}
		case xml.EndElement:
			if t.Name.Local == "trans-unit" {
				return u, nil
			}
		}
	}
}

// readInline reads the inner content of an element until its close tag into
// canonical inline form: character data is re-escaped, inline child elements
// (placeholders like <x id="..."/>) and comments are reconstructed as literal
// XML. The result is valid element content and is emitted verbatim by
// Marshal.
func readInline(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.WriteString(EscapeText(string(t)))
		case xml.Comment:
			b.WriteString("<!--")
			b.WriteString(string(t))
			b.WriteString("-->")
		case xml.StartElement:
			depth++
			writeStartTag(&b, t)
		case xml.EndElement:
			depth--
			if depth > 0 {
				writeEndTag(&b, t)
			}
		}
	}
	return b.String(), nil
}

// captureElement reconstructs a full element (start tag through matching end
// tag) as a raw XML string.
func captureElement(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var b strings.Builder
	writeStartTag(&b, start)
	inner, err := readInline(dec)
	if err != nil {
		return "", err
	}
	b.WriteString(inner)
	writeEndTag(&b, xml.EndElement{Name: start.Name})
	return b.String(), nil
}

func writeStartTag(b *strings.Builder, t xml.StartElement) {
	b.WriteString("<")
	b.WriteString(qualifiedName(t.Name))
	for _, a := range t.Attr {
		fmt.Fprintf(b, ` %s="%s"`, qualifiedName(a.Name), escapeAttr(a.Value))
	}
	b.WriteString(">")
}

func writeEndTag(b *strings.Builder, t xml.EndElement) {
	b.WriteString("</")
	b.WriteString(qualifiedName(t.Name))
	b.WriteString(">")
}

func qualifiedName(n xml.Name) string {
	// The decoder resolves xmlns prefixes to full URIs; collapse the known
	// XML namespace back to its prefix and drop the rest (XLIFF files from
	// authoring tools only use default-namespace children here).
	if n.Space == "http://www.w3.org/XML/1998/namespace" || n.Space == "xml" {
		return "xml:" + n.Local
	}
	return n.Local
}

// ---------------------------------------------------------------------------
// Serializing
// ---------------------------------------------------------------------------

// Marshal produces the XLIFF output.
func (f *File) Marshal() []byte {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")

	b.WriteString("<xliff")
	writeAttrs(&b, f.XliffAttrs)
	b.WriteString(">\n")

	b.WriteString("  <file")
	writeAttrs(&b, f.FileAttrs)
	b.WriteString(">\n")

	for _, raw := range f.Prolog {
		b.WriteString("    ")
		b.WriteString(raw)
		b.WriteString("\n")
	}

	b.WriteString("    <body>\n")
	indent := "      "
	if f.HasGroup {
		b.WriteString("      <group")
		writeAttrs(&b, f.GroupAttrs)
		b.WriteString(">\n")
		indent = "        "
	}

	for _, n := range f.Nodes {
		switch n.Kind {
		case KindComment:
			fmt.Fprintf(&b, "%s<!-- %s -->\n", indent, n.Comment)
		case KindRaw:
			fmt.Fprintf(&b, "%s%s\n", indent, n.Raw)
		case KindUnit:
			marshalUnit(&b, n.Unit, indent)
		}
	}

	if f.HasGroup {
		b.WriteString("      </group>\n")
	}
	b.WriteString("    </body>\n")

	for _, raw := range f.Epilog {
		b.WriteString("    ")
		b.WriteString(raw)
		b.WriteString("\n")
	}

	b.WriteString("  </file>\n")
	b.WriteString("</xliff>\n")
	return []byte(b.String())
}

func marshalUnit(b *strings.Builder, u *Unit, indent string) {
	fmt.Fprintf(b, "%s<trans-unit id=\"%s\"", indent, escapeAttr(u.ID))
	writeAttrs(b, u.Attrs)
	b.WriteString(">\n")

	// Source, target and note text are stored in canonical inline form:
	// already escaped, inline markup literal.
	inner := indent + "  "
	fmt.Fprintf(b, "%s<source>%s</source>\n", inner, u.Source)
	if u.HasTarget {
		fmt.Fprintf(b, "%s<target>%s</target>\n", inner, u.Target)
	}
	for _, n := range u.Notes {
		fmt.Fprintf(b, "%s<note", inner)
		writeAttrs(b, n.Attrs)
		fmt.Fprintf(b, ">%s</note>\n", n.Text)
	}
	for _, raw := range u.Extra {
		fmt.Fprintf(b, "%s%s\n", inner, raw)
	}

	fmt.Fprintf(b, "%s</trans-unit>\n", indent)
}

func writeAttrs(b *strings.Builder, attrs []xml.Attr) {
	for _, a := range attrs {
		fmt.Fprintf(b, ` %s="%s"`, qualifiedName(a.Name), escapeAttr(a.Value))
	}
}

// EscapeText escapes plain text for use as XML character data.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// UnescapeText recovers the plain text of canonical inline content. Only
// meaningful for content without inline markup, such as text going to a
// translation provider or an edit form.
func UnescapeText(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	return strings.ReplaceAll(s, "&amp;", "&")
}

func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
