package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entitle/internal/infrastructure/emulator"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/logger"
)

type handlerFixture struct {
	router *gin.Engine
	ledger *emulator.Ledger
	signer *emulator.Signer
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := emulator.NewSigner("")
	require.NoError(t, err)
	ledger := emulator.NewLedger(time.Minute)
	h := NewEntitlementHandler(emulator.Policy{"feature-a": true, "feature b": true, "feature-x": false}, ledger, signer, logger.NewNoopLogger())
	h.now = func() time.Time { return time.Unix(1700000000, 0) }

	router := gin.New()
	router.POST("/authorizations", h.Authorize)
	router.POST("/authorizations/:item", h.AuthorizeItem)
	router.POST("/releases", h.Release)
	router.GET("/health", NewHealthHandler(ledger).Liveness)
	return &handlerFixture{router: router, ledger: ledger, signer: signer}
}

func (f *handlerFixture) do(t *testing.T, path, accept string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", constants.ContentTypeJSON)
	req.Header.Set("Accept", accept)
	req.Header.Set(constants.HeaderMachineID, "machine-1")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAuthorize_JSONBatchKeepsOrder(t *testing.T) {
	f := newHandlerFixture(t)
	w := f.do(t, "/authorizations", constants.ContentTypeJSON, map[string]interface{}{
		"items": []string{"feature-x", "feature-a", "unknown"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var decisions []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decisions))
	require.Len(t, decisions, 3)
	assert.Equal(t, false, decisions[0]["feature-x"])
	assert.Equal(t, "not_entitled", decisions[0]["reason"])
	assert.Equal(t, true, decisions[1]["feature-a"])
	assert.NotContains(t, decisions[1], "jti", "check does not consume")
	assert.Equal(t, false, decisions[2]["unknown"])
	assert.Equal(t, 0, f.ledger.Outstanding())
}

func TestAuthorize_SignedConsume(t *testing.T) {
	f := newHandlerFixture(t)
	w := f.do(t, "/authorizations", constants.ContentTypeJWT, map[string]interface{}{
		"items":   []string{"feature-a", "feature-x"},
		"consume": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.ContentTypeJWT, w.Header().Get("Content-Type"))

	tokens := strings.Fields(w.Body.String())
	require.Len(t, tokens, 2)

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokens[0], claims, func(*jwt.Token) (interface{}, error) {
		return f.signer.PublicKey(), nil
	}, jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	assert.Equal(t, true, claims["feature-a"])
	assert.NotEmpty(t, claims["jti"])
	assert.EqualValues(t, 1700000000+60, claims["exp"])
	assert.Equal(t, 1, f.ledger.Outstanding(), "denied items are not consumed")
}

func TestAuthorize_RejectsInvalidRequests(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, "/authorizations", constants.ContentTypeJSON, map[string]interface{}{"items": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/authorizations", strings.NewReader("{"))
	req.Header.Set("Content-Type", constants.ContentTypeJSON)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestAuthorizeItem_Plain(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, "/authorizations/feature%20b", constants.ContentTypeText, map[string]interface{}{"consume": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Body.String())
	assert.Equal(t, 1, f.ledger.Outstanding())

	w = f.do(t, "/authorizations/feature-x", constants.ContentTypeText, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Body.String())
}

func TestRelease(t *testing.T) {
	f := newHandlerFixture(t)
	jti := f.ledger.Consume("feature-a", "machine-1")

	w := f.do(t, "/releases", constants.ContentTypeJSON, map[string]string{"jti": jti})
	require.Equal(t, http.StatusOK, w.Code)
	var decision map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.Equal(t, true, decision[jti])
	assert.Equal(t, "feature-a", decision["item"])

	w = f.do(t, "/releases", constants.ContentTypeJSON, map[string]string{"jti": jti})
	require.Equal(t, http.StatusOK, w.Code)
	decision = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.Equal(t, false, decision[jti])
	assert.Equal(t, constants.ReasonNoSuchConsumption, decision["reason"])

	w = f.do(t, "/releases", constants.ContentTypeJSON, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelease_OtherMachineRefused(t *testing.T) {
	f := newHandlerFixture(t)
	jti := f.ledger.Consume("feature-a", "machine-1")

	w := f.do(t, "/releases", constants.ContentTypeJSON, map[string]string{"jti": jti, "machine_id": "machine-2"})
	require.Equal(t, http.StatusOK, w.Code)
	var decision map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.Equal(t, false, decision[jti])
	assert.Equal(t, "not_owner", decision["reason"])
	assert.Equal(t, 1, f.ledger.Outstanding())
}

func TestHealth(t *testing.T) {
	f := newHandlerFixture(t)
	f.ledger.Consume("feature-a", "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","outstanding":1}`, w.Body.String())
}
