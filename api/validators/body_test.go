package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
)

type profilePayload struct {
	FullName *string `json:"full_name" validate:"omitempty,max=10"`
	Phone    *string `json:"phone"`
}

func decode(body string, dest any) error {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	return DecodeJSONBody(httptest.NewRecorder(), req, dest)
}

func TestDecodeJSONBodyAcceptsAllowedFields(t *testing.T) {
	var p profilePayload
	require.NoError(t, decode(`{"full_name":"Ada","phone":null}`, &p))
	require.NotNil(t, p.FullName)
	assert.Equal(t, "Ada", *p.FullName)
	assert.Nil(t, p.Phone)
}

func TestDecodeJSONBodyRejectsUnknownField(t *testing.T) {
	var p profilePayload
	err := decode(`{"full_name":"Ada","stripe_customer_id":"cus_x"}`, &p)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"stripe_customer_id": "is not allowed"}, typed.Details())
}

func TestDecodeJSONBodyRejectsWrongType(t *testing.T) {
	var p profilePayload
	err := decode(`{"phone":5551234}`, &p)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Details(), "phone")
}

func TestDecodeJSONBodyRunsValidator(t *testing.T) {
	var p profilePayload
	err := decode(`{"full_name":"a very long name indeed"}`, &p)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"full_name": "must be at most 10"}, typed.Details())
}

func TestDecodeJSONBodyRejectsEmptyAndTrailing(t *testing.T) {
	var p profilePayload
	assert.True(t, pkgerrors.IsCode(decode(``, &p), pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.IsCode(decode(`{} {}`, &p), pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20", nil)
	v, err := ParseQueryInt(req, "limit", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	v, err = ParseQueryInt(req, "limit", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	req = httptest.NewRequest(http.MethodGet, "/?limit=0", nil)
	_, err = ParseQueryInt(req, "limit", 50, 1, 200)
	assert.Error(t, err)
}
