// Package auth supplies bearer credentials to the API client and mints and
// verifies the shared-secret tokens accepted by the development API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCredential is returned when no bearer credential is available.
var ErrNoCredential = errors.New("no credential available")

// TokenSource returns the bearer credential for the next request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same credential.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", ErrNoCredential
	}
	return strings.TrimSpace(string(t)), nil
}

// EnvToken reads the credential from an environment variable on every call.
type EnvToken string

// Token implements TokenSource.
func (name EnvToken) Token(context.Context) (string, error) {
	v := strings.TrimSpace(os.Getenv(string(name)))
	if v == "" {
		return "", fmt.Errorf("%s is empty: %w", string(name), ErrNoCredential)
	}
	return v, nil
}

// FileToken reads the credential from a file on every call so a rotated
// token is picked up without a restart.
type FileToken string

// Token implements TokenSource.
func (path FileToken) Token(context.Context) (string, error) {
	raw, err := os.ReadFile(string(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("token file %s: %w", string(path), ErrNoCredential)
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	v := strings.TrimSpace(string(raw))
	if v == "" {
		return "", fmt.Errorf("token file %s is empty: %w", string(path), ErrNoCredential)
	}
	return v, nil
}

// Chain tries each source in order and returns the first credential found.
type Chain []TokenSource

// Token implements TokenSource.
func (c Chain) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		tok, err := src.Token(ctx)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, ErrNoCredential) {
			return "", err
		}
	}
	return "", ErrNoCredential
}
