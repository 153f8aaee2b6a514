package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	base := New(KindConflict, "already_member", "already a member")
	wrapped := fmt.Errorf("join: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindConflict))
	assert.True(t, errors.Is(wrapped, base))

	e, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "already_member", e.Code)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindNotFound))
}

func TestConstructors(t *testing.T) {
	nf := NotFound("event")
	assert.Equal(t, KindNotFound, nf.Kind)
	assert.Equal(t, "event_not_found", nf.Code)
	assert.Equal(t, "event not found", nf.Error())

	v := Validation("stars must be within 1..5")
	assert.Equal(t, KindValidation, v.Kind)
	assert.Equal(t, "validation", v.Kind.String())
}
