// xlfsync — keeps XLIFF language documents in sync with the authoritative
// catalog and mediates the machine/human translation workflow.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xlf-tools/xlfsync/config"
	"github.com/xlf-tools/xlfsync/i18n"
	"github.com/xlf-tools/xlfsync/langmeta"
	"github.com/xlf-tools/xlfsync/mergeback"
	"github.com/xlf-tools/xlfsync/reconcile"
	"github.com/xlf-tools/xlfsync/settings"
	"github.com/xlf-tools/xlfsync/translate"
	"github.com/xlf-tools/xlfsync/workspace"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xlfsync",
		Short: "XLIFF catalog sync with machine translation",
		Long: `xlfsync — XLIFF translation catalog reconciliation.

Keeps per-language *.xlf documents in sync with the authoritative *.g.xlf
catalog: creates missing units, drops obsolete ones, re-links renamed units,
and drives the machine/human translation workflow for pending units.

Commands:
  status      Show catalog and per-language translation statistics
  sync        Reconcile language documents against the catalog
  init        Create a new language document from the catalog
  translate   Machine-translate pending units
  export      Write pending units as an editable JSON form
  apply       Merge a JSON edits file back into the documents
  auth        Manage the translation service credential`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Workspace root directory")

	root.AddCommand(
		newStatusCmd(),
		newSyncCmd(),
		newInitCmd(),
		newTranslateCmd(),
		newExportCmd(),
		newApplyCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xlfsync version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// languageSuffix resolves the language suffix: flag wins over config; with
// neither set, a workspace holding exactly one language is auto-detected.
func languageSuffix(cfg *config.Config, flagLang string) (string, error) {
	if flagLang != "" {
		return flagLang, nil
	}
	if cfg.Language != "" {
		return cfg.Language, nil
	}
	langs, err := workspace.DetectLanguages(rootDir)
	if err != nil {
		return "", err
	}
	switch len(langs) {
	case 1:
		logInfo("detected language %s", langs[0])
		return langs[0], nil
	case 0:
		return "", fmt.Errorf("no language configured: set `language` in %s or pass --language", config.FileName)
	default:
		return "", fmt.Errorf("multiple languages found (%s): set `language` in %s or pass --language",
			strings.Join(langs, ", "), config.FileName)
	}
}

// languageDocuments lists the workspace documents for a suffix.
func languageDocuments(cfg *config.Config, flagLang string) ([]string, error) {
	suffix, err := languageSuffix(cfg, flagLang)
	if err != nil {
		return nil, err
	}
	paths, err := workspace.FindLanguageFiles(rootDir, suffix)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no *.%s.xlf documents found under %s (run `xlfsync init`)", suffix, rootDir)
	}
	return paths, nil
}

func providerFromConfig(cfg *config.Config, apiKey string) translate.Provider {
	prov := translate.DefaultProvider(apiKey)
	if cfg.Endpoint != "" {
		prov.Endpoint = cfg.Endpoint
	}
	prov.Category = cfg.Category
	prov.Proxy = cfg.Proxy
	if t := cfg.Timeout(); t > 0 {
		prov.Timeout = t
	}
	return prov
}

// promptAPIKey asks the user for a credential on stdin.
func promptAPIKey() (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", i18n.T("Enter the translation service API key"))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("empty API key")
	}
	return key, nil
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog and per-language translation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}

			catalog, catalogPath, err := workspace.LoadCatalog(rootDir)
			if err != nil {
				return err
			}
			total, _, _ := catalog.Stats()
			fmt.Printf("Catalog:  %s (%d units, source %s)\n", catalogPath, total, catalog.SourceLanguage())

			suffix, err := languageSuffix(cfg, "")
			if err != nil {
				logWarning("%v", err)
				return nil
			}

			paths, err := workspace.FindLanguageFiles(rootDir, suffix)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				logWarning("no *.%s.xlf documents found", suffix)
				return nil
			}

			fmt.Printf("Language: %s (%s)\n\n", suffix, langmeta.Resolve(suffix).Name)
			fmt.Printf("  %-50s %8s %10s %8s\n", "DOCUMENT", "UNITS", "TRANSLATED", "PENDING")
			for _, p := range paths {
				doc, err := workspace.LoadDocument(p)
				if err != nil {
					logError("%v", err)
					continue
				}
				t, tr, pend := doc.Stats()
				fmt.Printf("  %-50s %8d %10d %8d\n", p, t, tr, pend)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var flagLang string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile language documents against the catalog",
		Long: `Reconcile each language document against the authoritative catalog.

Creates units for new catalog ids (empty target), removes units whose id
left the catalog, re-links renamed units (same content, changed id) while
keeping their translation, and refreshes source and description text.
Existing target text is never modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}

			catalog, catalogPath, err := workspace.LoadCatalog(rootDir)
			if err != nil {
				return err
			}
			logInfo("catalog: %s", catalogPath)

			paths, err := languageDocuments(cfg, flagLang)
			if err != nil {
				return err
			}

			failures := workspace.ForEachDocument(cmd.Context(), paths, cfg.MaxConcurrent, func(ctx context.Context, path string) error {
				doc, err := workspace.LoadDocument(path)
				if err != nil {
					return err
				}
				stats := reconcile.Reconcile(catalog, doc)
				for _, r := range stats.Renames {
					logInfo("%s: %s ==> %s", path, r.DocumentID, r.CatalogID)
				}
				if !stats.Changed() {
					logInfo("%s: up to date", path)
					return nil
				}
				if err := workspace.SaveDocument(path, doc); err != nil {
					return err
				}
				logSuccess("%s: +%d units, -%d units, %d renamed", path, stats.Created, stats.Removed, stats.Renamed())
				return nil
			})

			if err := reportFailures(failures); err != nil {
				return err
			}

			// Optional prefill of the units the reconciliation just created.
			if cfg.UseTranslator {
				return machineTranslate(cmd.Context(), cfg, "", paths, cfg.MaxPending)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagLang, "language", "", "Language suffix override (e.g. de-DE)")
	return cmd
}

func reportFailures(failures []workspace.DocumentError) error {
	for _, f := range failures {
		logError("%v", f)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d document(s) failed", len(failures))
	}
	return nil
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var flagSuffix string

	cmd := &cobra.Command{
		Use:   "init <target-language>",
		Short: "Create a new language document from the catalog",
		Long: `Create a new language document as a copy of the catalog.

The target-language attribute is set on the new file and every unit gets an
empty target element. Examples of target languages: de-DE, en-US, fr-FR.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}

			targetLang, err := langmeta.Normalize(args[0])
			if err != nil {
				return err
			}

			suffix := flagSuffix
			if suffix == "" {
				suffix = targetLang
			}

			catalogPath, err := workspace.FindCatalog(rootDir)
			if err != nil {
				return err
			}

			newPath, err := workspace.InitLanguageFile(catalogPath, suffix, targetLang)
			if err != nil {
				return err
			}
			logSuccess("created %s (%s)", newPath, langmeta.Resolve(targetLang).Name)

			if cfg.Language == "" {
				cfg.Language = suffix
				if err := cfg.Save(rootDir); err != nil {
					logWarning("could not save %s: %v", config.FileName, err)
				} else {
					logInfo("language %q saved to %s", suffix, config.FileName)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagSuffix, "suffix", "", "File suffix (defaults to the target language)")
	return cmd
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		flagLang   string
		flagAPIKey string
		flagMax    int
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Machine-translate pending units",
		Long: `Machine-translate pending units of each language document.

Selects untranslated units in document order (capped per document), submits
them to the translation service, and persists the results. A batch is
applied all-or-nothing: a malformed or mismatched response changes nothing.

If the service rejects the credential, you are prompted once for a new key
and the failed documents are retried once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}

			paths, err := languageDocuments(cfg, flagLang)
			if err != nil {
				return err
			}

			max := cfg.MaxPending
			if flagMax > 0 {
				max = flagMax
			}

			if err := machineTranslate(cmd.Context(), cfg, flagAPIKey, paths, max); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("Done."))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagLang, "language", "", "Language suffix override (e.g. de-DE)")
	cmd.Flags().StringVar(&flagAPIKey, "api-key", "", "Translation service API key")
	cmd.Flags().IntVar(&flagMax, "max", 0, "Maximum pending units per document (default from config)")
	return cmd
}

// machineTranslate resolves the credential and translates the pending units
// of the given documents, prompting for a key when none is configured. On a
// rejected credential it re-prompts once and retries only the documents that
// failed authentication. Never loops.
func machineTranslate(ctx context.Context, cfg *config.Config, flagAPIKey string, paths []string, max int) error {
	key, source := settings.ResolveAPIKey(flagAPIKey)
	if key == "" {
		var err error
		key, err = promptAPIKey()
		if err != nil {
			return err
		}
		if err := settings.SetAPIKey(key); err != nil {
			logWarning("could not store API key: %v", err)
		}
	} else {
		logInfo("using API key from %s (%s)", source, settings.MaskKey(key))
	}

	failed, authFailed := translateAll(ctx, cfg, key, paths, max)

	if len(authFailed) > 0 {
		logWarning("credential rejected by the translation service")
		key, err := promptAPIKey()
		if err != nil {
			return err
		}
		if err := settings.SetAPIKey(key); err != nil {
			logWarning("could not store API key: %v", err)
		}
		retryFailed, retryAuth := translateAll(ctx, cfg, key, authFailed, max)
		failed = append(failed, retryFailed...)
		failed = append(failed, retryAuth...)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d document(s) failed", len(failed))
	}
	return nil
}

// translateAll machine-translates every document and persists results.
// Returns the paths that failed, with authentication failures separated so
// the caller can drive the single credential-refresh retry.
func translateAll(ctx context.Context, cfg *config.Config, apiKey string, paths []string, max int) (failed, authFailed []string) {
	prov := providerFromConfig(cfg, apiKey)

	failures := workspace.ForEachDocument(ctx, paths, cfg.MaxConcurrent, func(ctx context.Context, path string) error {
		doc, err := workspace.LoadDocument(path)
		if err != nil {
			return err
		}
		n, err := translate.TranslateDocument(ctx, prov, doc, cfg.SourceLang, max)
		if err != nil {
			return err
		}
		if n == 0 {
			logInfo("%s: %s", path, i18n.T("Nothing to translate."))
			return nil
		}
		if err := workspace.SaveDocument(path, doc); err != nil {
			return err
		}
		logSuccess("%s: translated %d unit(s)", path, n)
		return nil
	})

	for _, f := range failures {
		var authErr *translate.AuthError
		if errors.As(f.Err, &authErr) {
			authFailed = append(authFailed, f.Path)
			continue
		}
		logError("%v", f)
		failed = append(failed, f.Path)
	}
	return failed, authFailed
}

// ---------------------------------------------------------------------------
// export
// ---------------------------------------------------------------------------

func newExportCmd() *cobra.Command {
	var (
		flagLang   string
		flagOutput string
		flagMax    int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write pending units as an editable JSON form",
		Long: `Write the pending units of each language document as a JSON form.

The form lists {id, source, target, description} entries in document order,
capped per document. Edit the target fields and feed the result back with
` + "`xlfsync apply`" + `. Documents are not modified by export.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}

			paths, err := languageDocuments(cfg, flagLang)
			if err != nil {
				return err
			}

			max := cfg.MaxPending
			if flagMax > 0 {
				max = flagMax
			}

			var entries []mergeback.FormEntry
			for _, path := range paths {
				doc, err := workspace.LoadDocument(path)
				if err != nil {
					logError("%v", err)
					continue
				}
				pending := translate.SelectPending(doc, max)
				entries = append(entries, mergeback.Form(pending)...)
			}

			if len(entries) == 0 {
				logInfo("%s", i18n.T("Nothing to translate."))
				return nil
			}

			out := os.Stdout
			if flagOutput != "" {
				f, err := os.Create(flagOutput)
				if err != nil {
					return fmt.Errorf("creating %s: %w", flagOutput, err)
				}
				defer f.Close()
				out = f
			}
			if err := mergeback.WriteForm(out, entries); err != nil {
				return err
			}
			if flagOutput != "" {
				logSuccess("wrote %d entries to %s", len(entries), flagOutput)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagLang, "language", "", "Language suffix override (e.g. de-DE)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().IntVar(&flagMax, "max", 0, "Maximum pending units per document (default from config)")
	return cmd
}

// ---------------------------------------------------------------------------
// apply
// ---------------------------------------------------------------------------

func newApplyCmd() *cobra.Command {
	var flagLang string

	cmd := &cobra.Command{
		Use:   "apply <edits.json>",
		Short: "Merge a JSON edits file back into the documents",
		Long: `Merge finalized target text from a JSON edits file into the documents.

Only edits with a non-empty target are applied; an empty target means "no
change", never "clear the translation". Edits for ids that no longer exist
are dropped silently.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			edits, err := mergeback.ReadEdits(f)
			f.Close()
			if err != nil {
				return err
			}

			paths, err := languageDocuments(cfg, flagLang)
			if err != nil {
				return err
			}

			failures := workspace.ForEachDocument(cmd.Context(), paths, cfg.MaxConcurrent, func(ctx context.Context, path string) error {
				doc, err := workspace.LoadDocument(path)
				if err != nil {
					return err
				}
				applied := mergeback.Apply(doc, edits)
				if applied == 0 {
					logInfo("%s: no matching edits", path)
					return nil
				}
				if err := workspace.SaveDocument(path, doc); err != nil {
					return err
				}
				logSuccess("%s: applied %d edit(s)", path, applied)
				return nil
			})

			if err := reportFailures(failures); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("Translations have been inserted."))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagLang, "language", "", "Language suffix override (e.g. de-DE)")
	return cmd
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the translation service credential",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "login",
			Short: "Store the translation service API key",
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := promptAPIKey()
				if err != nil {
					return err
				}
				if err := settings.SetAPIKey(key); err != nil {
					return err
				}
				logSuccess("API key stored in %s", settings.FilePath())
				return nil
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Remove the stored API key",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := settings.Remove(); err != nil {
					return err
				}
				logSuccess("credential removed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Show the stored credential (masked)",
			Run: func(cmd *cobra.Command, args []string) {
				key, source := settings.ResolveAPIKey("")
				if key == "" {
					fmt.Println("no credential configured")
					return
				}
				fmt.Printf("translator: %s (from %s)\n", settings.MaskKey(key), source)
			},
		},
	)

	return cmd
}
