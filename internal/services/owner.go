package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os/user"

	"github.com/fyrsmithlabs/dispatchd/internal/dispatch"
)

// ErrEmptyUsername is returned when an owner ID is derived from "".
var ErrEmptyUsername = errors.New("username cannot be empty")

// currentUser is swapped in tests.
var currentUser = user.Current

// DeriveOwnerID maps a user name to a stable identifier: the hex-encoded
// SHA256 of the name. The same name always yields the same ID and the name
// cannot be recovered from it.
func DeriveOwnerID(username string) (string, error) {
	if username == "" {
		return "", ErrEmptyUsername
	}
	hash := sha256.Sum256([]byte(username))
	return hex.EncodeToString(hash[:]), nil
}

// systemAuth authenticates as the OS user running the process.
func systemAuth(context.Context, *dispatch.Context, dispatch.Args) (any, error) {
	u, err := currentUser()
	if err != nil {
		return nil, fmt.Errorf("unable to determine user identity: %w", err)
	}
	if u.Username == "" {
		return nil, AuthError("system username unavailable")
	}
	return u.Username, nil
}

// ownerID returns the owner ID of the authenticated user.
func ownerID(_ context.Context, dc *dispatch.Context, _ dispatch.Args) (any, error) {
	name, ok := dc.GetString(AuthRegistry)
	if !ok {
		return nil, AuthError("not authenticated")
	}
	id, err := DeriveOwnerID(name)
	if err != nil {
		return nil, AuthError(err.Error())
	}
	return id, nil
}
