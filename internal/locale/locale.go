// Package locale builds the localized name and description maps stored on
// artifacts.
//
// Every map produced here contains an entry for the scope's default locale,
// falling back to the raw declared value when no explicit translation for
// that locale exists. Content that declares its own authored-in locale gets
// the same fallback under that locale too.
package locale

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/roach88/cmsync/internal/model"
)

// DefaultFallback is used when a scope's locale cannot be determined.
var DefaultFallback = language.AmericanEnglish

// ScopeLocales looks up the default locale id recorded for a scope.
// Implemented by *store.Store.
type ScopeLocales interface {
	ScopeLocale(ctx context.Context, scopeID int64) (string, error)
}

// Resolver computes scope default locales and builds locale maps.
type Resolver struct {
	locales  ScopeLocales
	fallback language.Tag
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallback sets the locale used when a scope's locale is unknown.
func WithFallback(tag language.Tag) Option {
	return func(r *Resolver) {
		r.fallback = tag
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver reading scope locales from locales.
func NewResolver(locales ScopeLocales, opts ...Option) *Resolver {
	r := &Resolver{
		locales:  locales,
		fallback: DefaultFallback,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultLocale returns the default locale of a scope. When the scope has no
// recorded or parseable locale, the resolver's fallback is returned and a
// warning is logged.
func (r *Resolver) DefaultLocale(ctx context.Context, scope model.Scope) language.Tag {
	id, err := r.locales.ScopeLocale(ctx, scope.ID)
	if err != nil {
		r.logger.Warn("scope default locale unavailable, using fallback",
			"scope", scope.ID,
			"fallback", r.fallback.String(),
			"error", err,
		)
		return r.fallback
	}
	tag, err := Canonical(id)
	if err != nil {
		r.logger.Warn("scope default locale unparseable, using fallback",
			"scope", scope.ID,
			"locale", id,
			"fallback", r.fallback.String(),
			"error", err,
		)
		return r.fallback
	}
	return tag
}

// BuildMap builds a locale map from explicit translations and guarantees an
// entry for scopeDefault, inserting fallback when no translation covers it.
//
// Translations with an unparseable locale or an empty value are skipped.
func (r *Resolver) BuildMap(translations []model.Translation, scopeDefault language.Tag, fallback string) model.LocaleMap {
	m := make(model.LocaleMap, len(translations)+1)
	for _, tr := range translations {
		if tr.Value == "" {
			continue
		}
		tag, err := Canonical(tr.Locale)
		if err != nil {
			r.logger.Warn("skipping translation with invalid locale",
				"locale", tr.Locale,
				"error", err,
			)
			continue
		}
		m[Key(tag)] = tr.Value
	}
	if _, ok := m[Key(scopeDefault)]; !ok {
		m[Key(scopeDefault)] = fallback
	}
	return m
}

// AddContentLocale inserts fallback under the content's own authored-in
// locale when it differs from the scope default and has no entry yet.
// A nil map is allocated.
func AddContentLocale(m model.LocaleMap, content, scopeDefault language.Tag, fallback string) model.LocaleMap {
	if m == nil {
		m = model.LocaleMap{}
	}
	if Key(content) == Key(scopeDefault) {
		return m
	}
	if _, ok := m[Key(content)]; !ok {
		m[Key(content)] = fallback
	}
	return m
}

// Canonical parses a locale id in either "en_US" or "en-US" form.
func Canonical(id string) (language.Tag, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return language.Und, fmt.Errorf("empty locale id")
	}
	tag, err := language.Parse(strings.ReplaceAll(id, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("parse locale %q: %w", id, err)
	}
	return tag, nil
}

// Key returns the map key of a tag.
func Key(tag language.Tag) string {
	return tag.String()
}
