package placeholder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/store"
)

var testScope = model.Scope{ID: 10, CompanyID: 1, UserID: 7}

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func create(t *testing.T, s *store.Store, kind model.Kind, className, key string) int64 {
	t.Helper()
	id, err := s.Create(context.Background(), &model.Artifact{
		ScopeID:   testScope.ID,
		Kind:      kind,
		ClassName: className,
		Key:       key,
		NameMap:   model.LocaleMap{"en-US": key},
	})
	require.NoError(t, err)
	return id
}

func TestResolve_NoTokens(t *testing.T) {
	r := NewResolver(setupStore(t))

	got, err := r.Resolve(context.Background(), testScope, 1, "<root>plain</root>", "plain")
	require.NoError(t, err)
	assert.Equal(t, "<root>plain</root>", got)
}

func TestResolve_BuiltinKinds(t *testing.T) {
	s := setupStore(t)
	defID := create(t, s, model.KindDocumentDefinition, model.ClassArticle, "NEWS")
	ddlID := create(t, s, model.KindDocumentDefinition, model.ClassRecordSet, "CONTACTS")
	tplID := create(t, s, model.KindDisplayTemplate, model.ClassDocumentDefinition, "NEWS-TPL")
	setID := create(t, s, model.KindRecordSet, model.ClassRecordSet, "PEOPLE")
	artID := create(t, s, model.KindArticle, model.ClassArticle, "WELCOME")
	folderID := create(t, s, model.KindWebFolder, model.ClassFolder, "/news/2024")

	r := NewResolver(s)
	tests := []struct {
		raw  string
		want int64
	}{
		{"{{$ART-STRUCT-BY-KEY=NEWS$}}", defID},
		{"{{$DDL-STRUCT-BY-KEY=CONTACTS$}}", ddlID},
		{"{{$ART-TEMPLATE-BY-KEY=NEWS-TPL$}}", tplID},
		{"{{$DDL-REC-SET-ID-BY-KEY=PEOPLE$}}", setID},
		{"{{$ARTICLE-BY-ID=WELCOME$}}", artID},
		{"{{$FOLDER-ID-BY-PATH=news//2024/$}}", folderID},
		{"{{$SCOPE-ID$}}", testScope.ID},
		{"{{$COMPANY-ID$}}", 99},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), testScope, 99, "id="+tt.raw, "test")
			require.NoError(t, err)
			assert.Equal(t, "id="+strconv.FormatInt(tt.want, 10), got)
		})
	}
}

func TestResolve_ClassMatters(t *testing.T) {
	s := setupStore(t)
	create(t, s, model.KindDocumentDefinition, model.ClassRecordSet, "ONLY-DDL")

	r := NewResolver(s)
	_, err := r.Resolve(context.Background(), testScope, 1, "{{$ART-STRUCT-BY-KEY=ONLY-DDL$}}", "x")
	assert.True(t, model.IsKind(err, model.ErrUnresolvedReference))
}

func TestResolve_MultipleTokensOnePass(t *testing.T) {
	s := setupStore(t)
	a := create(t, s, model.KindArticle, model.ClassArticle, "A")
	b := create(t, s, model.KindArticle, model.ClassArticle, "B")

	r := NewResolver(s)
	got, err := r.Resolve(context.Background(), testScope, 1,
		"[{{$ARTICLE-BY-ID=A$}}|{{$ARTICLE-BY-ID= B $}}]", "list")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("[%d|%d]", a, b), got)
}

func TestResolve_NestedInnermostFirst(t *testing.T) {
	s := setupStore(t)
	id := create(t, s, model.KindArticle, model.ClassArticle, "TARGET")

	var calls []string
	alias := func(_ context.Context, req Request) (string, error) {
		calls = append(calls, req.Value)
		return "TARGET", nil
	}
	r := NewResolver(s, WithKind("ALIAS", alias))

	got, err := r.Resolve(context.Background(), testScope, 1, "{{$ARTICLE-BY-ID={{$ALIAS=t$}}$}}", "nested")
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(id, 10), got)
	assert.Equal(t, []string{"t"}, calls)
}

func TestResolve_TransitiveChain(t *testing.T) {
	chain := func(_ context.Context, req Request) (string, error) {
		n, err := strconv.Atoi(req.Value)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "done", nil
		}
		return fmt.Sprintf("{{$CHAIN=%d$}}", n-1), nil
	}

	r := NewResolver(setupStore(t), WithKind("CHAIN", chain))
	got, err := r.Resolve(context.Background(), testScope, 1, "{{$CHAIN=4$}}", "chain")
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestResolve_PassBudget(t *testing.T) {
	chain := func(_ context.Context, req Request) (string, error) {
		n, _ := strconv.Atoi(req.Value)
		return fmt.Sprintf("{{$CHAIN=%d$}}", n+1), nil
	}

	r := NewResolver(setupStore(t), WithKind("CHAIN", chain), WithMaxPasses(3))
	_, err := r.Resolve(context.Background(), testScope, 1, "{{$CHAIN=0$}}", "article content a.xml")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.ErrUnresolvedReference))
	assert.True(t, IsPassesExceededError(err))
	assert.Contains(t, err.Error(), "article content a.xml")
}

func TestResolve_CycleDetected(t *testing.T) {
	self := func(context.Context, Request) (string, error) {
		return "{{$SELF$}}", nil
	}

	r := NewResolver(setupStore(t), WithKind("SELF", self), WithMaxPasses(1000))
	_, err := r.Resolve(context.Background(), testScope, 1, "x {{$SELF$}}", "loop")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.True(t, model.IsKind(err, model.ErrUnresolvedReference))
}

func TestResolve_Failures(t *testing.T) {
	r := NewResolver(setupStore(t))

	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"unknown kind", "{{$NOPE=1$}}", "unknown token kind NOPE"},
		{"lookup miss", "{{$ART-STRUCT-BY-KEY=MISSING$}}", "lookup failed"},
		{"missing key", "{{$ARTICLE-BY-ID$}}", "missing key"},
		{"malformed", "before {{$ART-STRUCT-BY-KEY=unterminated", "malformed token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), testScope, 1, tt.raw, "hint-"+tt.name)
			require.Error(t, err)

			var ie *model.ItemError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, model.ErrUnresolvedReference, ie.Kind)
			assert.Equal(t, "hint-"+tt.name, ie.Item)

			var re *ResolveError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, "hint-"+tt.name, re.Hint)
			assert.True(t, strings.Contains(err.Error(), tt.reason), err.Error())
		})
	}
}

func TestResolve_NonTokenBracesPassThrough(t *testing.T) {
	s := setupStore(t)
	id := create(t, s, model.KindArticle, model.ClassArticle, "A")
	r := NewResolver(s)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"angular index", "<li>{{$index}}</li>", "<li>{{$index}}</li>"},
		{"vue translate", "<![CDATA[{{$t('x')}}]]>", "<![CDATA[{{$t('x')}}]]>"},
		{"unknown uppercase opener", "{{$NOPE", "{{$NOPE"},
		{"lone opener", "a {{$ b", "a {{$ b"},
		{
			"mixed with token",
			"{{$index}}:{{$ARTICLE-BY-ID=A$}}:{{$index}}",
			fmt.Sprintf("{{$index}}:%d:{{$index}}", id),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), testScope, 1, tt.raw, "body")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_UnterminatedKnownKind(t *testing.T) {
	r := NewResolver(setupStore(t))

	for _, raw := range []string{
		"{{$index}} then {{$SCOPE-ID",
		"{{$ART-STRUCT-BY-KEY={bad}$}}",
	} {
		_, err := r.Resolve(context.Background(), testScope, 1, raw, "body")
		require.Error(t, err, raw)

		var re *ResolveError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "malformed token", re.Reason)
		assert.True(t, strings.HasPrefix(re.Token, "{{$"), re.Token)
		assert.NotContains(t, re.Token, "index")
	}
}

func TestResolve_LookupMissWrapsNotFound(t *testing.T) {
	r := NewResolver(setupStore(t))

	_, err := r.Resolve(context.Background(), testScope, 1, "{{$DDL-REC-SET-ID-BY-KEY=GONE$}}", "record set")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolve_CancelledContext(t *testing.T) {
	r := NewResolver(setupStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, testScope, 1, "{{$SCOPE-ID$}}", "cancel")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPassBudget(t *testing.T) {
	b := newPassBudget(2)
	require.NoError(t, b.Check())
	require.NoError(t, b.Check())
	err := b.Check()
	require.Error(t, err)
	assert.Equal(t, "tokens remain after 2 passes (limit 2)", err.Error())
}

func TestTextHistory(t *testing.T) {
	h := newTextHistory()
	assert.False(t, h.Record("a"))
	assert.False(t, h.Record("b"))
	assert.True(t, h.Record("a"))
}
