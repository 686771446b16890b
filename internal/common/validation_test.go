package common

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidatorRules(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		value   interface{}
		rule    ValidationRule
		wantMsg string
	}{
		{name: "required blank", value: "  ", rule: Required, wantMsg: "is required"},
		{name: "required set", value: "x", rule: Required},
		{name: "max length", value: "abcd", rule: MaxLength(3), wantMsg: "must be at most 3 characters"},
		{name: "max length counts runes", value: "äöü", rule: MaxLength(3)},
		{name: "int in range", value: 0, rule: IntRange(0, 10)},
		{name: "int above range", value: 11, rule: IntRange(0, 10), wantMsg: "must be between 0 and 10"},
		{name: "int wrong type", value: "5", rule: IntRange(0, 10), wantMsg: "must be an integer"},
		{name: "one of", value: "docx", rule: OneOf("pdf", "docx")},
		{name: "not one of", value: "odt", rule: OneOf("pdf", "docx"), wantMsg: "must be one of pdf, docx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.rule("field", tt.value)
			if tt.wantMsg == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestValidator_Err(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewValidator().Field("limit", 5, IntRange(0, 10)).Err())

	err := NewValidator().Field("limit", 50, IntRange(0, 10)).Err()
	require.Error(t, err)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeInvalidArgument, appErr.Code)
	assert.Equal(t, "limit", appErr.Field)
	assert.Equal(t, "limit must be between 0 and 10", appErr.Message)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	assert.Equal(t, codes.InvalidArgument, status.Code(GRPCStatus(err)))

	err = NewValidator().
		Field("owner", "", Required).
		Field("limit", -1, IntRange(0, 10)).
		Err()
	require.ErrorAs(t, err, &appErr)
	assert.Empty(t, appErr.Field)
	assert.Equal(t, "owner is required; limit must be between 0 and 10", appErr.Message)
}

func TestValidator_AdmissionError(t *testing.T) {
	t.Parallel()
	err := NewValidator().Field("target_format", "odt", OneOf("pdf")).AdmissionError()
	require.Error(t, err)
	assert.True(t, IsAdmission(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}
