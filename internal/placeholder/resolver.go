// Package placeholder expands reference tokens embedded in raw content.
//
// A token names an artifact kind and a key, e.g. {{$ART-STRUCT-BY-KEY=NEWS$}}
// ("the id of article definition NEWS in this scope"), and is replaced by
// the resolved value. Valueless tokens such as {{$SCOPE-ID$}} are also
// supported.
//
// Resolution is transitive: only innermost tokens (whose value holds no
// other token) match a pass, and the text is rescanned until no token is
// left. A pass budget and a repeated-text check guarantee termination; both
// surface as errors carrying the caller's context hint instead of looping.
//
// Text that opens with "{{$" but is not a token, e.g. {{$index}} in an
// embedded client-side template, is left as is. An opener followed by a
// registered kind that never closes is reported as malformed.
package placeholder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/cmsync/internal/model"
)

// DefaultMaxPasses bounds the number of rescans of one text.
const DefaultMaxPasses = 10

// Token delimiters.
const (
	TokenOpen  = "{{$"
	TokenClose = "$}}"
)

// tokenRE matches innermost tokens only: the value may not contain braces
// or dollar signs, so a token nested in another token's value is resolved
// one pass before its parent.
var tokenRE = regexp.MustCompile(`\{\{\$([A-Z][A-Z0-9_-]*)(?:=([^{}$]*))?\$\}\}`)

// Built-in token kinds.
const (
	KindArticleDefinition  = "ART-STRUCT-BY-KEY"
	KindRecordSetStructure = "DDL-STRUCT-BY-KEY"
	KindTemplate           = "ART-TEMPLATE-BY-KEY"
	KindRecordSet          = "DDL-REC-SET-ID-BY-KEY"
	KindArticle            = "ARTICLE-BY-ID"
	KindFolder             = "FOLDER-ID-BY-PATH"
	KindScopeID            = "SCOPE-ID"
	KindCompanyID          = "COMPANY-ID"
)

// Lookup fetches artifacts by natural key. Implemented by *store.Store.
type Lookup interface {
	FetchByKey(ctx context.Context, scopeID int64, kind model.Kind, className, key string) (*model.Artifact, error)
}

// Request is what a token kind function receives.
type Request struct {
	Scope     model.Scope
	CompanyID int64
	Value     string
}

// KindFunc resolves one token to its replacement text.
type KindFunc func(ctx context.Context, req Request) (string, error)

// Resolver expands placeholder tokens.
type Resolver struct {
	kinds     map[string]KindFunc
	maxPasses int
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxPasses sets the pass budget.
//
// Default: 10 passes (DefaultMaxPasses).
func WithMaxPasses(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxPasses = n
		}
	}
}

// WithKind registers (or overrides) a token kind.
func WithKind(name string, fn KindFunc) Option {
	return func(r *Resolver) {
		r.kinds[name] = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver whose built-in kinds look artifacts up
// through lookup.
func NewResolver(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		kinds:     builtinKinds(lookup),
		maxPasses: DefaultMaxPasses,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands every token in raw.
//
// hint describes the caller context (e.g. "article content news/a.xml") and
// is attached to any error. Errors are tagged model.ErrUnresolvedReference
// and wrap a *ResolveError.
func (r *Resolver) Resolve(ctx context.Context, scope model.Scope, companyID int64, raw, hint string) (string, error) {
	text := raw
	budget := newPassBudget(r.maxPasses)
	history := newTextHistory()
	history.Record(text)

	for {
		matches := tokenRE.FindAllStringSubmatchIndex(text, -1)
		if len(matches) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := budget.Check(); err != nil {
			return "", r.fail(hint, "", "pass budget exhausted", err)
		}

		var b strings.Builder
		last := 0
		for _, m := range matches {
			token := text[m[0]:m[1]]
			kind := text[m[2]:m[3]]
			value := ""
			if m[4] >= 0 {
				value = strings.TrimSpace(text[m[4]:m[5]])
			}

			fn, ok := r.kinds[kind]
			if !ok {
				return "", r.fail(hint, token, "unknown token kind "+kind, nil)
			}
			resolved, err := fn(ctx, Request{Scope: scope, CompanyID: companyID, Value: value})
			if err != nil {
				return "", r.fail(hint, token, "lookup failed", err)
			}

			b.WriteString(text[last:m[0]])
			b.WriteString(resolved)
			last = m[1]
		}
		b.WriteString(text[last:])
		text = b.String()

		if history.Record(text) {
			return "", r.fail(hint, "", "cycle", ErrCycle)
		}
	}

	if i := r.unterminated(text); i >= 0 {
		return "", r.fail(hint, excerpt(text, i), "malformed token", nil)
	}
	return text, nil
}

// unterminated returns the offset of the first opener followed by a
// registered kind name, or -1. Any such opener left after the last pass
// never formed a complete token. Other "{{$" text, such as template
// expressions in CDATA, is not a token and passes through.
func (r *Resolver) unterminated(text string) int {
	for off := 0; ; {
		i := strings.Index(text[off:], TokenOpen)
		if i < 0 {
			return -1
		}
		start := off + i
		rest := text[start+len(TokenOpen):]
		end := strings.IndexFunc(rest, func(c rune) bool {
			return !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-')
		})
		if end < 0 {
			end = len(rest)
		}
		if _, ok := r.kinds[rest[:end]]; ok && end > 0 {
			return start
		}
		off = start + len(TokenOpen)
	}
}

func (r *Resolver) fail(hint, token, reason string, err error) error {
	re := &ResolveError{Hint: hint, Token: token, Reason: reason, Err: err}
	r.logger.Debug("placeholder resolution failed",
		"hint", hint,
		"token", token,
		"reason", reason,
	)
	return model.NewItemError(model.ErrUnresolvedReference, hint, "resolve placeholders", re)
}

// ResolveError describes why a text could not be fully resolved.
type ResolveError struct {
	// Hint is the caller context passed to Resolve.
	Hint string

	// Token is the offending token, if one was identified.
	Token string

	// Reason is a human-readable description.
	Reason string

	// Err is the lookup failure, if any.
	Err error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	msg := e.Reason
	if e.Token != "" {
		msg = fmt.Sprintf("%s: %s", e.Reason, e.Token)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s [%s]", msg, e.Hint)
}

// Unwrap returns the lookup failure.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// excerpt shortens text starting at offset i for error messages.
func excerpt(text string, i int) string {
	end := min(i+48, len(text))
	return text[i:end]
}

func builtinKinds(lookup Lookup) map[string]KindFunc {
	byKey := func(kind model.Kind, className string) KindFunc {
		return func(ctx context.Context, req Request) (string, error) {
			if req.Value == "" {
				return "", errors.New("missing key")
			}
			a, err := lookup.FetchByKey(ctx, req.Scope.ID, kind, className, req.Value)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(a.ID, 10), nil
		}
	}

	return map[string]KindFunc{
		KindArticleDefinition:  byKey(model.KindDocumentDefinition, model.ClassArticle),
		KindRecordSetStructure: byKey(model.KindDocumentDefinition, model.ClassRecordSet),
		KindTemplate:           byKey(model.KindDisplayTemplate, ""),
		KindRecordSet:          byKey(model.KindRecordSet, model.ClassRecordSet),
		KindArticle:            byKey(model.KindArticle, model.ClassArticle),
		KindFolder: func(ctx context.Context, req Request) (string, error) {
			path, err := model.NormalizeFolderPath(req.Value)
			if err != nil {
				return "", err
			}
			return byKey(model.KindWebFolder, model.ClassFolder)(ctx, Request{Scope: req.Scope, Value: path})
		},
		KindScopeID: func(_ context.Context, req Request) (string, error) {
			return strconv.FormatInt(req.Scope.ID, 10), nil
		},
		KindCompanyID: func(_ context.Context, req Request) (string, error) {
			return strconv.FormatInt(req.CompanyID, 10), nil
		},
	}
}
