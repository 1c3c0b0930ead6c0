package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameOrKey(t *testing.T) {
	assert.Equal(t, "Display", NameOrKey("Display", "KEY"))
	assert.Equal(t, "KEY", NameOrKey("", "KEY"))
}

func TestKindOf(t *testing.T) {
	dup := NewItemError(ErrDuplicateKey, "template T1", "key already taken", nil)
	wrapped := fmt.Errorf("upsert: %w", dup)

	assert.Equal(t, ErrDuplicateKey, KindOf(dup))
	assert.Equal(t, ErrDuplicateKey, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, ErrDuplicateKey))
	assert.Equal(t, ErrPersistence, KindOf(errors.New("disk full")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.False(t, IsKind(nil, ErrPersistence))
}

func TestItemError_Message(t *testing.T) {
	cause := errors.New("no such file")
	err := NewItemError(ErrRead, "article A1", "read content", cause)

	assert.Equal(t, "READ_ERROR: read content (article A1): no such file", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewItemError(ErrParse, "", "bad schema", nil)
	assert.Equal(t, "PARSE_ERROR: bad schema", bare.Error())
}

func TestPolicyOf(t *testing.T) {
	p := PolicyOf([]RolePermission{
		{Role: RoleGuest, Actions: []string{ActionView}},
		{Role: RoleUser},
		{Role: RoleGuest, Actions: []string{}},
	})

	assert.Equal(t, []string{}, p[RoleGuest], "last declaration wins")
	assert.Equal(t, []string{}, p[RoleUser], "nil actions normalize to empty")
	assert.Equal(t, []string{RoleGuest, RoleUser}, p.Roles())
	assert.Nil(t, PolicyOf(nil))
}

func TestPolicyClone_Independent(t *testing.T) {
	p := Policy{RoleOwner: {ActionView, ActionUpdate}}
	c := p.Clone()
	c[RoleOwner][0] = ActionDelete

	assert.Equal(t, ActionView, p[RoleOwner][0])
}

func TestArtifactClone_DeepCopiesMaps(t *testing.T) {
	a := &Artifact{Key: "K", NameMap: LocaleMap{"en-US": "Name"}}
	c := a.Clone()
	c.NameMap["en-US"] = "Other"

	assert.Equal(t, "Name", a.NameMap["en-US"])
	assert.Nil(t, (*Artifact)(nil).Clone())
}

func TestArticleItemKey(t *testing.T) {
	assert.Equal(t, "A-1", Article{ArticleID: "A-1", Title: "Hello"}.ItemKey())
	assert.Equal(t, "Hello", Article{Title: "Hello"}.ItemKey())
}
