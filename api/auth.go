// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/faults"
)

const (
	headerKey    = "Authorization"
	headerPrefix = "Bearer "

	// minSecretLen is the shortest HS256 secret accepted.
	minSecretLen = 32
)

var (
	ErrWeakSecret      = errors.New("jwt secret shorter than 32 bytes")
	ErrAuthDisabled    = fmt.Errorf("%w: caller tokens are not configured", faults.ErrAuthorization)
	ErrMissingToken    = fmt.Errorf("%w: missing bearer token", faults.ErrAuthorization)
	ErrInvalidToken    = fmt.Errorf("%w: invalid bearer token", faults.ErrAuthorization)
	ErrInvalidSubject  = fmt.Errorf("%w: token subject is not an address", faults.ErrAuthorization)
	errNonPositiveTime = errors.New("token lifetime must be positive")
)

// Auth issues and checks HS256 caller tokens. The subject of a token is the
// caller address every mutating call acts as.
type Auth struct {
	secret []byte
}

func NewAuth(secret []byte) (*Auth, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	return &Auth{secret: secret}, nil
}

// Issue returns a token for caller valid for ttl from now.
func (a *Auth) Issue(caller ids.ShortID, now time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errNonPositiveTime
	}
	claims := jwt.RegisteredClaims{
		Subject:   caller.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Caller returns the address the request acts as.
func (a *Auth) Caller(r *http.Request) (ids.ShortID, error) {
	header := r.Header.Get(headerKey)
	if !strings.HasPrefix(header, headerPrefix) {
		return ids.ShortEmpty, ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		strings.TrimPrefix(header, headerPrefix),
		claims,
		func(*jwt.Token) (interface{}, error) {
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	caller, err := ids.ShortFromString(claims.Subject)
	if err != nil || caller == ids.ShortEmpty {
		return ids.ShortEmpty, ErrInvalidSubject
	}
	return caller, nil
}
