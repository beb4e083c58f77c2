package models

import (
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
)

// AuthorizationDecision is one server verdict for one named item.
// AuthorizationDecision 是服务端针对单个授权项的一次裁决。
//
// The decoded field set is fixed at construction. Equality and JSON encoding
// use the field set only; the raw body is kept for diagnostics.
type AuthorizationDecision struct {
	item        string
	rawBody     []byte
	contentType string
	fields      map[string]JSONValue
}

// NewAuthorizationDecision copies body and fields into a new decision.
func NewAuthorizationDecision(item string, body []byte, contentType string, fields map[string]JSONValue) *AuthorizationDecision {
	raw := make([]byte, len(body))
	copy(raw, body)
	cp := make(map[string]JSONValue, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return &AuthorizationDecision{item: item, rawBody: raw, contentType: contentType, fields: cp}
}

// Item returns the item name the decision was requested for.
func (d *AuthorizationDecision) Item() string { return d.item }

// ContentType returns the media type the decision was decoded from.
func (d *AuthorizationDecision) ContentType() string { return d.contentType }

// RawBody returns a copy of the undecoded response body.
func (d *AuthorizationDecision) RawBody() []byte {
	cp := make([]byte, len(d.rawBody))
	copy(cp, d.rawBody)
	return cp
}

// Fields returns a copy of the decoded field set.
func (d *AuthorizationDecision) Fields() map[string]JSONValue {
	cp := make(map[string]JSONValue, len(d.fields))
	for k, v := range d.fields {
		cp[k] = v
	}
	return cp
}

// Lookup returns the value stored under field. ok is false when the field is absent.
func (d *AuthorizationDecision) Lookup(field string) (JSONValue, bool) {
	v, ok := d.fields[field]
	return v, ok
}

// Bool reads a boolean field. A present field of any other JSON type is a
// lookup type mismatch; it is never coerced.
func (d *AuthorizationDecision) Bool(field string) (value bool, present bool, err error) {
	v, ok := d.fields[field]
	if !ok {
		return false, false, nil
	}
	b, isBool := v.AsBool()
	if !isBool {
		return false, true, errors.ErrLookupTypeMismatch(field, JSONBool.String(), v.Kind().String())
	}
	return b, true, nil
}

// String reads a string field with the same mismatch rule as Bool.
func (d *AuthorizationDecision) String(field string) (value string, present bool, err error) {
	v, ok := d.fields[field]
	if !ok {
		return "", false, nil
	}
	s, isString := v.AsString()
	if !isString {
		return "", true, errors.ErrLookupTypeMismatch(field, JSONString.String(), v.Kind().String())
	}
	return s, true, nil
}

// IsGranted reports the grant flag stored under the item's own name.
// An absent flag is not a grant.
func (d *AuthorizationDecision) IsGranted() (bool, error) {
	granted, _, err := d.Bool(d.item)
	return granted, err
}

// TokenID returns the consumption token identifier, if any.
func (d *AuthorizationDecision) TokenID() (string, bool) {
	id, present, err := d.String(constants.DecisionFieldTokenID)
	if err != nil || !present || id == "" {
		return "", false
	}
	return id, true
}

// Releasable reports whether the decision carries a token identifier.
// Expiry is not considered here.
func (d *AuthorizationDecision) Releasable() bool {
	_, ok := d.TokenID()
	return ok
}

// Equal compares the decoded field sets of two decisions.
func (d *AuthorizationDecision) Equal(o *AuthorizationDecision) bool {
	if d == nil || o == nil {
		return d == o
	}
	return equalObjects(d.fields, o.fields)
}

// MarshalJSON encodes the decoded field set as a JSON object.
func (d *AuthorizationDecision) MarshalJSON() ([]byte, error) {
	return marshalObject(d.fields)
}
