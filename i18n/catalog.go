package i18n

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	signin "github.com/goliatone/go-signin"
)

// DefaultLocale is the last locale tried before echoing the key.
const DefaultLocale = "en-us"

//go:embed locales/*.yaml
var localesFS embed.FS

// Table holds the strings of one locale, namespace -> key -> text.
type Table map[string]map[string]string

// Catalog stores locale tables. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: map[string]Table{}}
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the embedded locale tables.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = NewCatalog()
		defaultErr = defaultCatalog.LoadFS(localesFS, "locales/*.yaml")
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

// NormalizeLocale lowercases locale and uses "-" as separator, so "fr_CA"
// and "fr-CA" both become "fr-ca".
func NormalizeLocale(locale string) string {
	locale = strings.TrimSpace(strings.ToLower(locale))
	return strings.ReplaceAll(locale, "_", "-")
}

// Register merges t into the table for locale.
func (c *Catalog) Register(locale string, t Table) {
	locale = NormalizeLocale(locale)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.tables[locale]
	if !ok {
		existing = Table{}
		c.tables[locale] = existing
	}

	for ns, keys := range t {
		if existing[ns] == nil {
			existing[ns] = map[string]string{}
		}
		for k, v := range keys {
			existing[ns][k] = v
		}
	}
}

// LoadYAML parses data as a Table and registers it under locale.
func (c *Catalog) LoadYAML(locale string, data []byte) error {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse locale table").
			WithMetadata(map[string]any{"locale": locale})
	}
	c.Register(locale, t)
	return nil
}

// LoadFS registers every file matching pattern, the locale is the file name
// without extension.
func (c *Catalog) LoadFS(fsys fs.FS, pattern string) error {
	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid locale pattern")
	}

	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read locale table").
				WithMetadata(map[string]any{"file": file})
		}

		locale := strings.TrimSuffix(path.Base(file), path.Ext(file))
		if err := c.LoadYAML(locale, data); err != nil {
			return err
		}
	}

	return nil
}

// Locales lists registered locales, sorted.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.tables))
	for locale := range c.tables {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Lookup finds key in locale only, without fallback.
func (c *Catalog) Lookup(locale, namespace, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[NormalizeLocale(locale)]
	if !ok {
		return "", false
	}
	msg, ok := t[namespace][key]
	return msg, ok && msg != ""
}

// Resolve tries locale, then its base language, then DefaultLocale. A key
// missing everywhere is returned as "namespace.key".
func (c *Catalog) Resolve(locale, namespace, key string) string {
	for _, candidate := range fallbackChain(locale) {
		if msg, ok := c.Lookup(candidate, namespace, key); ok {
			return msg
		}
	}
	return namespace + "." + key
}

// Translator returns a signin.Translator bound to locale.
func (c *Catalog) Translator(locale string) signin.Translator {
	return signin.TranslatorFunc(func(_ context.Context, namespace, key string) string {
		return c.Resolve(locale, namespace, key)
	})
}

// Provider binds translators to Config.Locale. A nil config uses
// DefaultLocale.
func (c *Catalog) Provider() signin.TranslatorProvider {
	return func(cfg *signin.Config) signin.Translator {
		locale := DefaultLocale
		if cfg != nil && cfg.Locale != "" {
			locale = cfg.Locale
		}
		return c.Translator(locale)
	}
}

func fallbackChain(locale string) []string {
	locale = NormalizeLocale(locale)
	chain := make([]string, 0, 3)

	if locale != "" {
		chain = append(chain, locale)
		if base, _, ok := strings.Cut(locale, "-"); ok && base != "" {
			chain = append(chain, base)
		}
	}

	if locale != DefaultLocale {
		chain = append(chain, DefaultLocale)
	}

	return chain
}
