// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth identifies the caller of an agent request.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// User represents an authenticated or unauthenticated caller.
type User interface {
	// IsAuthenticated returns true if the user is authenticated, false otherwise.
	IsAuthenticated() bool

	// UserName returns the username of the user. For unauthenticated users,
	// this returns an empty string.
	UserName() string
}

// UnauthenticatedUser is the anonymous caller. Its zero value is ready to use.
type UnauthenticatedUser struct{}

// IsAuthenticated always returns false for unauthenticated users.
func (UnauthenticatedUser) IsAuthenticated() bool { return false }

// UserName always returns an empty string for unauthenticated users.
func (UnauthenticatedUser) UserName() string { return "" }

// AuthenticatedUser is a caller whose credentials were accepted.
type AuthenticatedUser struct {
	Name string
}

// IsAuthenticated implements [User].
func (AuthenticatedUser) IsAuthenticated() bool { return true }

// UserName implements [User].
func (u AuthenticatedUser) UserName() string { return u.Name }

var (
	// ErrMissingCredentials is returned when a request carries no credentials
	// and anonymous access is not allowed.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidCredentials is returned for unknown or malformed credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator resolves the caller of an HTTP request.
type Authenticator interface {
	Authenticate(r *http.Request) (User, error)
}

// AuthenticatorFunc adapts a function to [Authenticator].
type AuthenticatorFunc func(r *http.Request) (User, error)

// Authenticate implements [Authenticator].
func (f AuthenticatorFunc) Authenticate(r *http.Request) (User, error) { return f(r) }

// Anonymous accepts every request as an [UnauthenticatedUser].
var Anonymous Authenticator = AuthenticatorFunc(func(*http.Request) (User, error) {
	return UnauthenticatedUser{}, nil
})

// BearerTokenAuthenticator accepts static bearer tokens, each mapped to a user name.
type BearerTokenAuthenticator struct {
	tokens         map[string]string
	allowAnonymous bool
}

// NewBearerTokenAuthenticator returns an authenticator for tokens, keyed by
// token with the user name as value. Requests without an Authorization
// header pass as [UnauthenticatedUser] only when allowAnonymous is set.
func NewBearerTokenAuthenticator(tokens map[string]string, allowAnonymous bool) *BearerTokenAuthenticator {
	return &BearerTokenAuthenticator{tokens: tokens, allowAnonymous: allowAnonymous}
}

// Authenticate implements [Authenticator].
func (a *BearerTokenAuthenticator) Authenticate(r *http.Request) (User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if a.allowAnonymous {
			return UnauthenticatedUser{}, nil
		}
		return nil, ErrMissingCredentials
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, ErrInvalidCredentials
	}
	for known, name := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return AuthenticatedUser{Name: name}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

type userKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user carried by ctx, or an [UnauthenticatedUser].
func UserFrom(ctx context.Context) User {
	if u, ok := ctx.Value(userKey{}).(User); ok {
		return u
	}
	return UnauthenticatedUser{}
}
