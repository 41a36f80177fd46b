package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, MetadataFor(CodeValidation).HTTPStatus)
	assert.Equal(t, http.StatusNotFound, MetadataFor(CodeNotFound).HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, MetadataFor(CodeDependency).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, MetadataFor(Code("bogus")).HTTPStatus)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "load scholars")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDependency, err.Code())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAsAndIsCodeThroughWrapping(t *testing.T) {
	base := New(CodeValidation, "add_amount must be greater than zero")
	wrapped := fmt.Errorf("record consumption: %w", base)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, "add_amount must be greater than zero", typed.Message())
	assert.True(t, IsCode(wrapped, CodeValidation))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeValidation))
}

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "tracker_records_program_scholar_key",
		TableName:      "tracker_records",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeDependency, pgErr, "insert tracker record")

	dump := Dump(err)
	assert.Equal(t, CodeDependency, dump.Code)
	assert.Equal(t, "23505", dump.PGCode)
	assert.Equal(t, "tracker_records", dump.PGTable)
	assert.Equal(t, "tracker_records_program_scholar_key", dump.PGConstraint)
	assert.Len(t, dump.Chain, 2)
}

func TestDumpNil(t *testing.T) {
	assert.Equal(t, ErrorDump{}, Dump(nil))
}

func TestIsNumericOverflow(t *testing.T) {
	assert.True(t, IsNumericOverflow(fmt.Errorf("upsert: %w", &pgconn.PgError{Code: "22003"})))
	assert.True(t, IsNumericOverflow(&pq.Error{Code: "22003"}))
	assert.False(t, IsNumericOverflow(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsNumericOverflow(stdErrors.New("plain")))
	assert.False(t, IsNumericOverflow(nil))
}
