package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(New(NotFound, "Product not found: %d", 42)))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.Equal(t, Internal, KindOf(nil))

	// The kind survives %w wrapping.
	wrapped := fmt.Errorf("handling request: %w", New(Conflict, "version conflict"))
	assert.Equal(t, Conflict, KindOf(wrapped))
}

func TestMessageDoesNotLeakInternals(t *testing.T) {
	err := Wrap(Internal, errors.New("pq: connection refused"), "failed to load stock rows")
	assert.Equal(t, "An unexpected error occurred", Message(err))

	assert.Equal(t, "Cart is empty", Message(New(BusinessRule, "Cart is empty")))
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("no rows")
	err := Wrap(NotFound, cause, "Order not found")
	assert.Equal(t, "Order not found: no rows", err.Error())
	assert.ErrorIs(t, err, cause)
}
