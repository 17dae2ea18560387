package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert student: %w", &pq.Error{Code: "23505", Constraint: "students_index_scope_number_key"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "students_index_scope_number_key"))
	assert.False(t, IsUniqueViolation(err, "users_email_key"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsRetryable(&pq.Error{Code: "42P01"}))
	assert.False(t, IsRetryable(nil))
}
