package auth

import (
	"errors"

	"nathanbeddoewebdev/lxdm/internal/util"
)

const ServiceName = "lxdm"

var ErrPasswordNotFound = errors.New("trust password not found")

// Store holds the trust password of each remote. Passwords are only needed
// to register the client certificate with a remote that does not trust it.
type Store interface {
	SetPassword(remote string, password string) error
	GetPassword(remote string) (string, error)
	DeletePassword(remote string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeRemote normalizes a remote name for consistent key lookup.
func NormalizeRemote(remote string) string {
	return util.NormalizeKey(remote)
}
