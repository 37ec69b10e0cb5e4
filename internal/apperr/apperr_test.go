package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindInvalidInput.Status())
	assert.Equal(t, http.StatusBadRequest, KindConflict.Status())
	assert.Equal(t, http.StatusUnauthorized, KindUnauthorized.Status())
	assert.Equal(t, http.StatusForbidden, KindForbidden.Status())
	assert.Equal(t, http.StatusNotFound, KindNotFound.Status())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.Status())
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("Patient not found"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestFromStore(t *testing.T) {
	assert.Nil(t, FromStore(nil, "x"))

	err := FromStore(gorm.ErrDuplicatedKey, "Day already exists")
	assert.True(t, Is(err, KindConflict))
	assert.Equal(t, "Day already exists", err.(*Error).Message)

	err = FromStore(errors.New("UNIQUE constraint failed: working_hours.day"), "Day already exists")
	assert.True(t, Is(err, KindConflict))

	err = FromStore(errors.New("connection reset"), "Day already exists")
	assert.True(t, Is(err, KindInternal))
	assert.ErrorContains(t, err, "connection reset")
}
