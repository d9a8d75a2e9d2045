package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var errMissingSubject = errors.New("token missing subject claim")

// Claims are the identity claims read from a verified ID token
type Claims struct {
	Sub    string
	Email  string
	Expiry time.Time
}

// Verifier checks ID tokens against the issuer's published keys
type Verifier struct {
	keys     *KeySetCache
	jwksURL  string
	issuer   string
	audience string
}

// NewVerifier creates a verifier. An empty audience skips the audience check.
func NewVerifier(keys *KeySetCache, jwksURL, issuer, audience string) *Verifier {
	return &Verifier{
		keys:     keys,
		jwksURL:  jwksURL,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify checks the token's signature, issuer, audience and expiry and returns its claims.
// A token signed with a key the cached set does not know triggers one key set refetch.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	keys, err := v.keys.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get signing keys: %w", err)
	}

	if kid := keyID(tokenString); kid != "" {
		if _, known := keys.LookupKeyID(kid); !known {
			v.keys.Forget(v.jwksURL)
			if keys, err = v.keys.Get(ctx, v.jwksURL); err != nil {
				return nil, fmt.Errorf("failed to refresh signing keys: %w", err)
			}
		}
	}

	return v.parse(tokenString, keys)
}

func (v *Verifier) parse(tokenString string, keys jwk.Set) (*Claims, error) {
	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, errMissingSubject
	}

	claims := &Claims{
		Sub:    token.Subject(),
		Expiry: token.Expiration(),
	}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	return claims, nil
}

// keyID reads the kid header without verifying the token.
func keyID(tokenString string) string {
	msg, err := jws.Parse([]byte(tokenString))
	if err != nil || len(msg.Signatures()) == 0 {
		return ""
	}
	return msg.Signatures()[0].ProtectedHeaders().KeyID()
}
