// Package langmeta provides language tag validation and display metadata
// for CLI output.
package langmeta

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Meta describes language display metadata.
type Meta struct {
	Name string
}

// Registry contains canonical native names for common target languages.
// Locale variants fall back to the base language in Resolve().
var Registry = map[string]Meta{
	"ar":    {Name: "العربية"},
	"cs":    {Name: "Čeština"},
	"da":    {Name: "Dansk"},
	"de":    {Name: "Deutsch"},
	"de-AT": {Name: "Deutsch (Österreich)"},
	"de-CH": {Name: "Deutsch (Schweiz)"},
	"de-DE": {Name: "Deutsch (Deutschland)"},
	"el":    {Name: "Ελληνικά"},
	"en":    {Name: "English"},
	"en-GB": {Name: "English (UK)"},
	"en-US": {Name: "English (US)"},
	"es":    {Name: "Español"},
	"es-MX": {Name: "Español (México)"},
	"fi":    {Name: "Suomi"},
	"fr":    {Name: "Français"},
	"fr-BE": {Name: "Français (Belgique)"},
	"fr-CA": {Name: "Français (Canada)"},
	"fr-FR": {Name: "Français (France)"},
	"it":    {Name: "Italiano"},
	"ja":    {Name: "日本語"},
	"ko":    {Name: "한국어"},
	"nb-NO": {Name: "Norsk bokmål"},
	"nl":    {Name: "Nederlands"},
	"nl-BE": {Name: "Nederlands (België)"},
	"nl-NL": {Name: "Nederlands (Nederland)"},
	"pl":    {Name: "Polski"},
	"pt":    {Name: "Português"},
	"pt-BR": {Name: "Português (Brasil)"},
	"ru":    {Name: "Русский"},
	"sv":    {Name: "Svenska"},
	"tr":    {Name: "Türkçe"},
	"uk":    {Name: "Українська"},
	"zh":    {Name: "中文"},
	"zh-CN": {Name: "简体中文"},
	"zh-TW": {Name: "繁體中文"},
}

// Normalize validates a language tag and returns its canonical BCP 47 form
// (e.g. "de_de" -> "de-DE"). Invalid tags return an error.
func Normalize(tag string) (string, error) {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	return t.String(), nil
}

// Resolve returns best-effort display metadata for a language code,
// supporting variants like pt_BR, pt-BR, and base-language fallbacks.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized, err := Normalize(lang)
	if err == nil {
		if m, ok := Registry[normalized]; ok {
			return m
		}
		if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
			if m, ok := Registry[parts[0]]; ok {
				return m
			}
		}
	}
	return Meta{Name: lang}
}
