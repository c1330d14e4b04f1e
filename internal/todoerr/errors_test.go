package todoerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_WrappedError(t *testing.T) {
	base := NotFound("Item not found.")
	wrapped := fmt.Errorf("update: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsCancelled(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.False(t, Is(nil, KindUnknown))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(KindStoreIO, CodeGeneric, "read", nil))
	assert.NoError(t, StoreIO("read", nil))
}

func TestStoreIO_KeepsExistingKind(t *testing.T) {
	notFound := NotFound("missing")
	err := StoreIO("update", notFound)
	assert.Same(t, notFound, err)

	cause := errors.New("disk full")
	err = StoreIO("write", cause)
	require.True(t, Is(err, KindStoreIO))
	assert.ErrorIs(t, err, cause)
}

func TestError_Message(t *testing.T) {
	err := New(KindTransport, 404, "Invalid status code.")
	assert.Equal(t, "ToDoListErrorDomain(404) transport: Invalid status code.", err.Error())
	assert.Equal(t, "transport", err.ErrorKind())

	wrapped := Wrap(KindDecode, CodeGeneric, "decode payload", errors.New("unexpected EOF"))
	assert.Contains(t, wrapped.Error(), "unexpected EOF")
}

func TestCancelled_Code(t *testing.T) {
	err := Cancelled("Request explicitly cancelled.")
	assert.Equal(t, CodeCancelled, err.Code)
	assert.Equal(t, Domain, err.Domain)
	assert.True(t, IsCancelled(err))
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Empty(t, UserMessage(Cancelled("stop")))
	assert.NotEmpty(t, UserMessage(New(KindStoreIO, CodeGeneric, "write")))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "unrecoverable_schema", KindUnrecoverableSchema.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
