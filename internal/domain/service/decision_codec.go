package service

import (
	"bytes"
	"crypto"
	"encoding/json"
	"mime"
	"strings"

	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
)

// DecisionCodec decodes entitlement service response bodies into decisions.
// DecisionCodec 将授权服务的响应体解码为裁决。
//
// The media type alone selects the decoding:
//   - application/jwt, application/jose: signed token, verified, payload decoded as JSON
//   - application/json and +json types: JSON object, no signature check
//   - anything else: the bare literal true or false for the requested item
type DecisionCodec struct {
	verifier SignatureVerifier
}

// NewDecisionCodec creates a codec verifying signed decisions with verifier.
func NewDecisionCodec(verifier SignatureVerifier) *DecisionCodec {
	return &DecisionCodec{verifier: verifier}
}

type decisionEncoding int

const (
	encodingPlain decisionEncoding = iota
	encodingJSON
	encodingJWT
)

func classify(contentType string) decisionEncoding {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	switch {
	case mediaType == constants.ContentTypeJWT, mediaType == constants.ContentTypeJOSE:
		return encodingJWT
	case mediaType == constants.ContentTypeJSON, strings.HasSuffix(mediaType, "+json"):
		return encodingJSON
	}
	return encodingPlain
}

// Parse decodes one decision for itemName. A nil key accepts signed
// decisions without verifying them; see SignatureVerifier.Verify.
func (c *DecisionCodec) Parse(itemName string, body []byte, contentType string, key crypto.PublicKey) (*models.AuthorizationDecision, error) {
	switch classify(contentType) {
	case encodingJWT:
		if c.verifier == nil {
			return nil, errors.ErrMissingConfiguration("signature verifier")
		}
		payload, err := c.verifier.Verify(string(bytes.TrimSpace(body)), key)
		if err != nil {
			return nil, err
		}
		fields, err := models.DecodeJSONObject(payload)
		if err != nil {
			return nil, errors.ErrMalformedDecision(itemName, "token payload: "+err.Error(), body).WithCause(err)
		}
		return models.NewAuthorizationDecision(itemName, body, contentType, fields), nil

	case encodingJSON:
		fields, err := models.DecodeJSONObject(body)
		if err != nil {
			return nil, errors.ErrMalformedDecision(itemName, err.Error(), body).WithCause(err)
		}
		return models.NewAuthorizationDecision(itemName, body, contentType, fields), nil
	}

	var granted bool
	switch string(bytes.TrimSpace(body)) {
	case "true":
		granted = true
	case "false":
		granted = false
	default:
		return nil, errors.ErrMalformedDecision(itemName, "expected the literal true or false", body)
	}
	fields := map[string]models.JSONValue{itemName: models.BoolValue(granted)}
	return models.NewAuthorizationDecision(itemName, body, contentType, fields), nil
}

// SplitBatch cuts a batched response body into one body per decision, in
// response order. JSON bodies are an array of objects (a lone object counts as
// one decision); signed bodies are whitespace separated compact tokens; any
// other body is a single decision.
func SplitBatch(body []byte, contentType string) ([][]byte, error) {
	switch classify(contentType) {
	case encodingJWT:
		tokens := strings.Fields(string(body))
		parts := make([][]byte, len(tokens))
		for i, tok := range tokens {
			parts[i] = []byte(tok)
		}
		return parts, nil

	case encodingJSON:
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return [][]byte{body}, nil
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, errors.ErrMalformedDecision("", "batch body is not a JSON array", body).WithCause(err)
		}
		parts := make([][]byte, len(elems))
		for i, e := range elems {
			parts[i] = []byte(e)
		}
		return parts, nil
	}
	return [][]byte{body}, nil
}
