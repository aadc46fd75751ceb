package practice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeyIssuer implements the key/instance binding protocol. The opaque key is
// an HS256-signed token carrying the instance id and the owner subject, so a
// client can round-trip to its own instance but cannot forge a key or replay
// one against another user's instance.
type KeyIssuer struct {
	hmac []byte
	now  func() time.Time
}

func NewKeyIssuer(secret string) *KeyIssuer {
	return &KeyIssuer{hmac: []byte(secret), now: time.Now}
}

type keyClaims struct {
	InstanceID string `json:"iid"`
	jwt.RegisteredClaims
}

// Issue binds an opaque key to (instanceID, ownerID). Pure given a fresh id.
func (k *KeyIssuer) Issue(instanceID, ownerID string) (string, error) {
	now := k.now()
	claims := &keyClaims{
		InstanceID: instanceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  ownerID,
			Issuer:   "mindengage-practice",
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(k.hmac)
}

// Resolve validates a key and returns the bound instance id. A key that does
// not verify yields ErrInvalidKey; a key that verifies but belongs to another
// owner yields ErrForbidden — the two must stay distinguishable.
func (k *KeyIssuer) Resolve(opaqueKey, ownerID string) (string, error) {
	token, err := jwt.ParseWithClaims(opaqueKey, &keyClaims{}, func(t *jwt.Token) (interface{}, error) {
		return k.hmac, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidKey
	}
	claims, ok := token.Claims.(*keyClaims)
	if !ok || claims.InstanceID == "" {
		return "", ErrInvalidKey
	}
	if claims.Subject != ownerID {
		return "", ErrForbidden
	}
	return claims.InstanceID, nil
}

// NormalizeKey accepts the wire shapes clients actually send: a bare string,
// or an object carrying the string under token, key or value (first present
// field wins). Anything else fails closed with ErrMissingKey.
func NormalizeKey(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", ErrMissingKey
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", ErrMissingKey
		}
		return s, nil
	}
	var obj struct {
		Token string `json:"token"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("%w: unrecognized key shape", ErrMissingKey)
	}
	for _, c := range []string{obj.Token, obj.Key, obj.Value} {
		if c != "" {
			return c, nil
		}
	}
	return "", ErrMissingKey
}
