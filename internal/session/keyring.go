package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "luna"

// ErrNotFound indicates that no password is stored for the user.
var ErrNotFound = errors.New("password not found")

// LookupPassword reads the stored password for username from the system keyring.
func LookupPassword(username string) (string, error) {
	secret, err := keyring.Get(keyringService, username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read password for %q: %w", username, err)
	}
	return secret, nil
}

// StorePassword saves the password for username in the system keyring.
func StorePassword(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if password == "" {
		return fmt.Errorf("password for %q cannot be empty", username)
	}
	if err := keyring.Set(keyringService, username, password); err != nil {
		return fmt.Errorf("store password for %q: %w", username, err)
	}
	return nil
}

// DeletePassword removes the stored password for username from the system keyring.
func DeletePassword(username string) error {
	if err := keyring.Delete(keyringService, username); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete password for %q: %w", username, err)
	}
	return nil
}
