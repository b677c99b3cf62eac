// Package identity resolves the caller's user id from a signed bearer token.
// Authentication itself is an external collaborator; this service only
// verifies the signature and reads the subject, once, at the HTTP boundary.
package identity

import (
	"fmt"
	"strconv"

	xerrors "lipia-service/internal/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses an HS256 token and returns the user id from its subject.
func (v *Verifier) Verify(token string) (int64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, xerrors.Wrap(xerrors.ErrUnauthorized, err.Error())
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, xerrors.Wrap(xerrors.ErrUnauthorized, "token missing subject")
	}

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.ErrUnauthorized, "token subject is not a user id")
	}
	return userID, nil
}
