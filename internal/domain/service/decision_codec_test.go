package service_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/internal/domain/service/mocks"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
)

func TestDecisionCodec_PlainText(t *testing.T) {
	codec := service.NewDecisionCodec(nil)

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"true", "true", true},
		{"false", "false", false},
		{"padded", "  true\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := codec.Parse("X", []byte(tt.body), "text/plain; charset=utf-8", nil)
			require.NoError(t, err)
			val, present, err := d.Bool("X")
			require.NoError(t, err)
			assert.True(t, present)
			assert.Equal(t, tt.want, val)
		})
	}

	for _, bad := range []string{"TRUE", "yes", "1", "", "true false"} {
		_, err := codec.Parse("X", []byte(bad), "", nil)
		require.Error(t, err, bad)
		assert.True(t, errors.HasCode(err, constants.ErrCodeMalformedDecision), bad)
	}
}

func TestDecisionCodec_JSON(t *testing.T) {
	codec := service.NewDecisionCodec(nil)

	d, err := codec.Parse("feature.a", []byte(`{"feature.a":true,"jti":"t-1"}`), "application/json; charset=utf-8", nil)
	require.NoError(t, err)
	granted, err := d.IsGranted()
	require.NoError(t, err)
	assert.True(t, granted)
	assert.True(t, d.Releasable())

	_, err = codec.Parse("feature.a", []byte(`{"feature.a":true}`), "application/vnd.entitle+json", nil)
	assert.NoError(t, err)

	_, err = codec.Parse("feature.a", []byte(`[true]`), "application/json", nil)
	assert.True(t, errors.IsProtocolError(err))

	_, err = codec.Parse("feature.a", []byte(`{broken`), "application/json", nil)
	assert.True(t, errors.IsProtocolError(err))

	for _, body := range []string{`{"feature.a":true}}`, `{"feature.a":true}]`} {
		_, err = codec.Parse("feature.a", []byte(body), "application/json", nil)
		assert.True(t, errors.IsProtocolError(err), body)
	}
}

func TestDecisionCodec_SignedUsesVerifier(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	verifier := new(mocks.MockSignatureVerifier)
	verifier.On("Verify", "header.payload.sig", pub).Return([]byte(`{"feature.a":false}`), nil)

	codec := service.NewDecisionCodec(verifier)
	d, err := codec.Parse("feature.a", []byte("header.payload.sig\n"), "application/jwt", pub)
	require.NoError(t, err)
	granted, err := d.IsGranted()
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, "application/jwt", d.ContentType())
	verifier.AssertExpectations(t)
}

func TestDecisionCodec_SignedFailurePropagates(t *testing.T) {
	verifier := new(mocks.MockSignatureVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(nil, errors.ErrSignatureInvalid("bad signature"))

	codec := service.NewDecisionCodec(verifier)
	_, err := codec.Parse("feature.a", []byte("a.b.c"), "application/jose", nil)
	require.Error(t, err)
	assert.True(t, errors.IsIntegrityError(err))
}

func TestDecisionCodec_SignedPayloadMustBeObject(t *testing.T) {
	verifier := new(mocks.MockSignatureVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return([]byte(`"granted"`), nil)

	_, err := service.NewDecisionCodec(verifier).Parse("feature.a", []byte("a.b.c"), "application/jwt", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, constants.ErrCodeMalformedDecision))
}

func TestSplitBatch(t *testing.T) {
	parts, err := service.SplitBatch([]byte(`[{"a":true},{"b":false}]`), "application/json")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.JSONEq(t, `{"b":false}`, string(parts[1]))

	parts, err = service.SplitBatch([]byte(`{"a":true}`), "application/json")
	require.NoError(t, err)
	assert.Len(t, parts, 1)

	parts, err = service.SplitBatch([]byte("t1.p.s\n t2.p.s\n"), "application/jwt")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("t1.p.s"), []byte("t2.p.s")}, parts)

	_, err = service.SplitBatch([]byte(`[{"a":true}`), "application/json")
	assert.True(t, errors.IsProtocolError(err))
}
