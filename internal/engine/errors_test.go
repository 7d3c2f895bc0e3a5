package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tagtime/internal/schedule"
)

func TestRuntimeError_Error(t *testing.T) {
	err := newRuntimeError(ErrCodeCursorCorrupt, "load cursor", schedule.ErrCorruptCursor)
	assert.Equal(t, "CURSOR_CORRUPT: load cursor: corrupt scheduler cursor", err.Error())

	bare := &RuntimeError{Code: ErrCodeCursorWrite, Message: "persist"}
	assert.Equal(t, "CURSOR_WRITE: persist", bare.Error())
}

func TestRuntimeError_Unwrap(t *testing.T) {
	err := newRuntimeError(ErrCodeCursorCorrupt, "load cursor", schedule.ErrCorruptCursor)
	assert.True(t, errors.Is(err, schedule.ErrCorruptCursor))
}

func TestIsCursorCorrupt(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", newRuntimeError(ErrCodeCursorCorrupt, "load cursor", nil))
	assert.True(t, IsCursorCorrupt(wrapped))
	assert.False(t, IsCursorCorrupt(newRuntimeError(ErrCodeLedgerWrite, "append", nil)))
	assert.False(t, IsCursorCorrupt(errors.New("plain")))
	assert.False(t, IsCursorCorrupt(nil))
}

func TestIsLedgerWrite(t *testing.T) {
	assert.True(t, IsLedgerWrite(newRuntimeError(ErrCodeLedgerWrite, "append", nil)))
	assert.False(t, IsLedgerWrite(newRuntimeError(ErrCodeCursorWrite, "persist", nil)))
}
