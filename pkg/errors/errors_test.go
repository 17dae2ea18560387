package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByCodeThroughWrapping(t *testing.T) {
	readOnly := Clone(ErrReadOnly, "data entry is locked")
	wrapped := fmt.Errorf("create student: %w", readOnly)

	assert.True(t, Is(wrapped, ErrReadOnly))
	assert.False(t, Is(wrapped, ErrForbidden))
	assert.False(t, Is(sql.ErrNoRows, ErrNotFound))
	assert.Equal(t, "data entry is locked", FromError(wrapped).Message)
	assert.Equal(t, http.StatusForbidden, FromError(wrapped).Status)
}

func TestCloneKeepsOriginalIntact(t *testing.T) {
	clone := Clone(ErrIndexNumberTaken, "index number SCH-4 already allocated")
	assert.Equal(t, "index number already allocated", ErrIndexNumberTaken.Message)
	assert.Equal(t, http.StatusConflict, clone.Status)
	assert.Nil(t, Clone(nil, "x"))
}
