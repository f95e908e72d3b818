// Package workspace locates the authoritative catalog and the per-language
// documents of a project, loads and persists them, and runs per-document
// operations through a bounded pipeline that treats each document path as a
// single-writer resource.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xlf-tools/xlfsync/xlffile"
)

// CatalogSuffix marks the authoritative catalog file.
const CatalogSuffix = ".g.xlf"

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// CatalogMissingError reports that the authoritative catalog could not be
// found or parsed. This is fatal to a whole run: there is nothing to
// reconcile against.
type CatalogMissingError struct {
	Root string
	Err  error
}

func (e *CatalogMissingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog in %s: %v", e.Root, e.Err)
	}
	return fmt.Sprintf("no %s catalog found under %s", CatalogSuffix, e.Root)
}

func (e *CatalogMissingError) Unwrap() error { return e.Err }

// PersistenceError reports a failed document write. The original file is
// left intact; nothing retries automatically.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

// FindCatalog returns the first catalog file under root, walking in
// lexical order.
func FindCatalog(root string) (string, error) {
	matches, err := findBySuffix(root, CatalogSuffix)
	if err != nil {
		return "", &CatalogMissingError{Root: root, Err: err}
	}
	if len(matches) == 0 {
		return "", &CatalogMissingError{Root: root}
	}
	return matches[0], nil
}

// FindLanguageFiles returns all documents for the given language suffix
// (e.g. "de-DE" matches *.de-DE.xlf), excluding catalog files, in lexical
// order.
func FindLanguageFiles(root, suffix string) ([]string, error) {
	matches, err := findBySuffix(root, "."+suffix+".xlf")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if strings.HasSuffix(m, CatalogSuffix) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// DetectLanguages derives the language suffixes present in the workspace
// from existing *.<lang>.xlf documents, excluding the catalog. The result is
// sorted and deduplicated.
func DetectLanguages(root string) ([]string, error) {
	matches, err := findBySuffix(root, ".xlf")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		if strings.HasSuffix(m, CatalogSuffix) {
			continue
		}
		// app.de-DE.xlf -> de-DE
		base := strings.TrimSuffix(filepath.Base(m), ".xlf")
		i := strings.LastIndexByte(base, '.')
		if i < 0 {
			continue
		}
		lang := base[i+1:]
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	sort.Strings(out)
	return out, nil
}

func findBySuffix(root, suffix string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Don't descend into VCS or dependency directories.
			name := d.Name()
			if path != root && (name == ".git" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// ---------------------------------------------------------------------------
// Load / save
// ---------------------------------------------------------------------------

// LoadCatalog finds and parses the authoritative catalog. Any failure is a
// *CatalogMissingError.
func LoadCatalog(root string) (*xlffile.File, string, error) {
	path, err := FindCatalog(root)
	if err != nil {
		return nil, "", err
	}
	f, err := xlffile.ParseFile(path)
	if err != nil {
		return nil, "", &CatalogMissingError{Root: root, Err: err}
	}
	return f, path, nil
}

// LoadDocument parses one language document.
func LoadDocument(path string) (*xlffile.File, error) {
	return xlffile.ParseFile(path)
}

// SaveDocument serializes the document and replaces path atomically: the
// content goes to a temp file in the same directory first, then renames over
// the original, so a failed write never truncates an existing file.
func SaveDocument(path string, f *xlffile.File) error {
	data := f.Marshal()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Language file initialization
// ---------------------------------------------------------------------------

// LanguagePath derives the language-document path from the catalog path:
// app.g.xlf -> app.<suffix>.xlf.
func LanguagePath(catalogPath, suffix string) string {
	return strings.TrimSuffix(catalogPath, CatalogSuffix) + "." + suffix + ".xlf"
}

// InitLanguageFile creates a new language document from the catalog: same
// units, target-language set, an empty target element in every unit.
// Refuses to overwrite an existing file.
func InitLanguageFile(catalogPath, suffix, targetLang string) (string, error) {
	newPath := LanguagePath(catalogPath, suffix)
	if _, err := os.Stat(newPath); err == nil {
		return "", fmt.Errorf("file exists already: %s", newPath)
	}

	f, err := xlffile.ParseFile(catalogPath)
	if err != nil {
		return "", err
	}
	f.SetTargetLanguage(targetLang)
	f.EnsureTargets()

	if err := SaveDocument(newPath, f); err != nil {
		return "", err
	}
	return newPath, nil
}
