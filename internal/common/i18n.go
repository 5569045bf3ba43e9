// Package common provides i18n (internationalization) support
package common

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed locales/*.json
var embeddedLocales embed.FS

// I18n handles internationalization
type I18n struct {
	mu           sync.RWMutex
	translations map[string]map[string]interface{} // locale -> translations
	fallback     string                            // fallback locale
	current      string                            // current locale
}

// NewI18n creates a new i18n instance
func NewI18n(fallbackLocale string) *I18n {
	return &I18n{
		translations: make(map[string]map[string]interface{}),
		fallback:     fallbackLocale,
		current:      fallbackLocale,
	}
}

// NewDefaultI18n returns an instance with the bundled locales loaded
func NewDefaultI18n(locale string) (*I18n, error) {
	i := NewI18n("en")
	if err := i.LoadEmbedded(); err != nil {
		return nil, err
	}
	i.SetLocale(locale)
	return i, nil
}

// LoadLocaleData loads translations from JSON bytes
func (i *I18n) LoadLocaleData(locale string, data []byte) error {
	var translations map[string]interface{}
	if err := json.Unmarshal(data, &translations); err != nil {
		return fmt.Errorf("failed to parse locale %s: %w", locale, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.translations[locale] = translations
	return nil
}

// LoadEmbedded loads every locale bundled with the binary
func (i *I18n) LoadEmbedded() error {
	entries, err := embeddedLocales.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("failed to list locale files: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := embeddedLocales.ReadFile(path.Join("locales", name))
		if err != nil {
			return fmt.Errorf("failed to read locale file %s: %w", name, err)
		}
		locale := strings.TrimSuffix(name, ".json")
		if err := i.LoadLocaleData(locale, data); err != nil {
			return err
		}
	}
	return nil
}

// SetLocale sets the current locale. Unknown locales are ignored.
func (i *I18n) SetLocale(locale string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.translations[locale]; exists {
		i.current = locale
	}
}

// GetLocale returns the current locale
func (i *I18n) GetLocale() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.current
}

// GetAvailableLocales returns all loaded locales
func (i *I18n) GetAvailableLocales() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	locales := make([]string, 0, len(i.translations))
	for locale := range i.translations {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	return locales
}

// T translates a key to the current locale
func (i *I18n) T(key string, args ...interface{}) string {
	if i == nil {
		return key
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	if text := i.getTranslation(i.current, key); text != "" {
		if len(args) > 0 {
			return fmt.Sprintf(text, args...)
		}
		return text
	}

	if i.current != i.fallback {
		if text := i.getTranslation(i.fallback, key); text != "" {
			if len(args) > 0 {
				return fmt.Sprintf(text, args...)
			}
			return text
		}
	}

	return key
}

// Lines returns a translated list, e.g. the fixed recommendation bullets
func (i *I18n) Lines(key string) []string {
	if i == nil {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	lines := i.getList(i.current, key)
	if len(lines) == 0 && i.current != i.fallback {
		lines = i.getList(i.fallback, key)
	}
	return lines
}

// lookup walks nested keys (e.g., "unusual.sections.summary")
func (i *I18n) lookup(locale, key string) interface{} {
	translations, exists := i.translations[locale]
	if !exists {
		return nil
	}

	var current interface{} = translations
	for _, k := range strings.Split(key, ".") {
		switch v := current.(type) {
		case map[string]interface{}:
			current = v[k]
		default:
			return nil
		}
	}
	return current
}

func (i *I18n) getTranslation(locale, key string) string {
	if str, ok := i.lookup(locale, key).(string); ok {
		return str
	}
	return ""
}

func (i *I18n) getList(locale, key string) []string {
	items, ok := i.lookup(locale, key).([]interface{})
	if !ok {
		return nil
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			lines = append(lines, s)
		}
	}
	return lines
}
