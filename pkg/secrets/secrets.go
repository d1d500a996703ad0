// Package secrets keeps API keys in the operating system keyring so they
// do not have to live in the config file or the environment.
package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name all drip entries live under.
const Service = "drip"

// Known account names.
const (
	CompletionKey = "nous"
	PromptKey     = "gemini"
)

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// ErrUnknownName is returned for account names drip does not use.
var ErrUnknownName = errors.New("unknown secret name")

// ErrUnavailable is returned by Get when the keyring backend cannot be
// reached, e.g. on a host without a Secret Service.
var ErrUnavailable = errors.New("keyring unavailable")

// Validate reports whether name is one of the known accounts.
func Validate(name string) error {
	switch name {
	case CompletionKey, PromptKey:
		return nil
	}
	return fmt.Errorf("%w %q (want %q or %q)", ErrUnknownName, name, CompletionKey, PromptKey)
}

// Get returns the stored secret, or "" when none is stored. Backend
// failures wrap ErrUnavailable.
func Get(name string) (string, error) {
	v, err := keyringGet(Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read %s/%s: %w", ErrUnavailable, Service, name, err)
	}
	return v, nil
}

// Set stores a secret.
func Set(name, value string) error {
	if err := Validate(name); err != nil {
		return err
	}
	if value == "" {
		return errors.New("refusing to store an empty secret")
	}
	if err := keyringSet(Service, name, value); err != nil {
		return fmt.Errorf("write keyring %s/%s: %w", Service, name, err)
	}
	return nil
}

// Delete removes a secret. Deleting a missing secret is not an error.
func Delete(name string) error {
	if err := Validate(name); err != nil {
		return err
	}
	err := keyringDelete(Service, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring %s/%s: %w", Service, name, err)
	}
	return nil
}
