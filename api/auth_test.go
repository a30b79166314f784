// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flightvm/api"
	"github.com/luxfi/flightvm/faults"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func request(token string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthRoundTrip(t *testing.T) {
	require := require.New(t)

	auth, err := api.NewAuth(secret)
	require.NoError(err)

	caller := ids.GenerateTestShortID()
	token, err := auth.Issue(caller, time.Now(), time.Hour)
	require.NoError(err)

	got, err := auth.Caller(request(token))
	require.NoError(err)
	require.Equal(caller, got)
}

func TestAuthRejects(t *testing.T) {
	_, err := api.NewAuth(secret[:31])
	require.ErrorIs(t, err, api.ErrWeakSecret)

	auth, err := api.NewAuth(secret)
	require.NoError(t, err)
	other, err := api.NewAuth([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)

	caller := ids.GenerateTestShortID()
	expired, err := auth.Issue(caller, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue(caller, time.Now(), time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: caller.String(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		expectedErr error
	}{
		{"missing", "", api.ErrMissingToken},
		{"expired", expired, api.ErrInvalidToken},
		{"wrong key", forged, api.ErrInvalidToken},
		{"unsigned", none, api.ErrInvalidToken},
		{"subject", badSubject, api.ErrInvalidSubject},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := auth.Caller(request(test.token))
			require.ErrorIs(t, err, test.expectedErr)
			require.ErrorIs(t, err, faults.ErrAuthorization)
		})
	}
}
