// Package i18n serves the provider's user-facing strings from embedded
// YAML catalogs, one file per language. Missing keys fall back to English
// and then to the key itself.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the fallback catalog.
const DefaultLanguage = "en"

// Message keys.
const (
	ErrFailedProcessImage     = "error:failedprocessimage"
	ErrGlobalRateLimitReached = "error:globalratelimitexceeded"
	ErrNoImageData            = "error:noimagedata"
	ErrUnknown                = "error:unknownerror"
	ErrUserRateLimitReached   = "error:userratelimitexceeded"
	ErrNotConfigured          = "error:notconfigured"
	InvalidJSON               = "invalidjson"
)

//go:embed catalogs/*.yaml
var catalogFS embed.FS

// Catalog holds messages by language and key.
type Catalog struct {
	messages map[string]map[string]string
}

// Load parses every embedded catalog.
func Load() (*Catalog, error) {
	entries, err := catalogFS.ReadDir("catalogs")
	if err != nil {
		return nil, fmt.Errorf("read catalogs: %w", err)
	}

	c := &Catalog{messages: make(map[string]map[string]string)}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		data, err := catalogFS.ReadFile(path.Join("catalogs", name))
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", name, err)
		}
		var msgs map[string]string
		if err := yaml.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", name, err)
		}
		c.messages[strings.TrimSuffix(name, ".yaml")] = msgs
	}
	if _, ok := c.messages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("missing %s catalog", DefaultLanguage)
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide catalog. It panics if the embedded
// catalogs are broken, which is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load()
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// T returns the message for key in lang. A "{$a}" placeholder is replaced by arg.
func (c *Catalog) T(lang, key string, arg ...string) string {
	msg, ok := c.lookup(lang, key)
	if !ok {
		return key
	}
	if len(arg) > 0 {
		msg = strings.ReplaceAll(msg, "{$a}", arg[0])
	}
	return msg
}

// Languages returns the available languages, sorted.
func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.messages))
	for lang := range c.messages {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) lookup(lang, key string) (string, bool) {
	lang = normalizeLanguage(lang)
	if msgs, ok := c.messages[lang]; ok {
		if msg, ok := msgs[key]; ok {
			return msg, true
		}
	}
	msg, ok := c.messages[DefaultLanguage][key]
	return msg, ok
}

// normalizeLanguage reduces "it_IT" or "it-IT" to "it".
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "_-"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}
