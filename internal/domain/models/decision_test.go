package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
)

func newDecision(t *testing.T, body string) *models.AuthorizationDecision {
	t.Helper()
	fields, err := models.DecodeJSONObject([]byte(body))
	require.NoError(t, err)
	return models.NewAuthorizationDecision("feature.a", []byte(body), constants.ContentTypeJSON, fields)
}

func TestAuthorizationDecision_Lookup(t *testing.T) {
	d := newDecision(t, `{"feature.a":true,"seats":3}`)

	_, ok := d.Lookup("missing")
	assert.False(t, ok)

	v, ok := d.Lookup("seats")
	require.True(t, ok)
	assert.Equal(t, models.JSONNumber, v.Kind())
}

func TestAuthorizationDecision_Bool(t *testing.T) {
	d := newDecision(t, `{"feature.a":true,"feature.b":"yes"}`)

	val, present, err := d.Bool("feature.a")
	require.NoError(t, err)
	assert.True(t, present)
	assert.True(t, val)

	val, present, err = d.Bool("absent")
	require.NoError(t, err)
	assert.False(t, present)
	assert.False(t, val)

	_, present, err = d.Bool("feature.b")
	require.Error(t, err)
	assert.True(t, present)
	assert.True(t, errors.HasCode(err, constants.ErrCodeLookupTypeMismatch))
}

func TestAuthorizationDecision_TokenID(t *testing.T) {
	d := newDecision(t, `{"feature.a":true,"jti":"c0ffee"}`)
	id, ok := d.TokenID()
	assert.True(t, ok)
	assert.Equal(t, "c0ffee", id)
	assert.True(t, d.Releasable())

	noID := newDecision(t, `{"feature.a":true,"jti":7}`)
	assert.False(t, noID.Releasable())
}

func TestAuthorizationDecision_IsGranted(t *testing.T) {
	granted, err := newDecision(t, `{"feature.a":true}`).IsGranted()
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = newDecision(t, `{"other":true}`).IsGranted()
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestAuthorizationDecision_EqualityIgnoresRawBody(t *testing.T) {
	a := newDecision(t, `{"feature.a": true, "n": 1}`)
	b := newDecision(t, `{"n":1,"feature.a":true}`)
	assert.True(t, a.Equal(b))

	outA, err := json.Marshal(a)
	require.NoError(t, err)
	outB, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(outA), string(outB))
	assert.NotEqual(t, a.RawBody(), b.RawBody())
}

func TestAuthorizationDecision_Immutable(t *testing.T) {
	fields := map[string]models.JSONValue{"feature.a": models.BoolValue(true)}
	d := models.NewAuthorizationDecision("feature.a", []byte("true"), constants.ContentTypeText, fields)
	fields["feature.a"] = models.BoolValue(false)
	d.Fields()["feature.a"] = models.BoolValue(false)

	val, _, err := d.Bool("feature.a")
	require.NoError(t, err)
	assert.True(t, val)
}
