package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/types"
)

func TestWriteSuccessWritesPayloadAsIs(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, types.CheckoutURL{URL: "https://checkout.stripe.test/cs_1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"url":"https://checkout.stripe.test/cs_1"}`, w.Body.String())
}

func TestWriteErrorKeepsValidationMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty").
		WithDetails(map[string]string{"field": "items"})
	WriteError(context.Background(), nil, w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Cart is empty", body.Error)
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Code)
	assert.NotNil(t, body.Details)
}

func TestWriteErrorHidesUpstreamDetail(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.Wrap(pkgerrors.CodeUpstream, errors.New("stripe: card_declined req_123"), "create stripe customer")
	WriteError(context.Background(), nil, w, err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "req_123")
	assert.NotContains(t, w.Body.String(), "create stripe customer")

	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "payment provider request failed", body.Error)
}

func TestWriteErrorDefaultsToInternalForUntypedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Code)
	assert.Equal(t, "internal server error", body.Error)
}

func TestWriteErrorSignatureIsClientError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeSignature, "invalid signature"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
