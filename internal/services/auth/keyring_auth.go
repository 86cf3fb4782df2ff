package auth

import (
	"errors"

	"github.com/zalando/go-keyring"
)

type KeyringStore struct {
	serviceName string
}

func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

func (k *KeyringStore) SetPassword(remote string, password string) error {
	return keyring.Set(k.serviceName, NormalizeRemote(remote), password)
}

func (k *KeyringStore) GetPassword(remote string) (string, error) {
	password, err := keyring.Get(k.serviceName, NormalizeRemote(remote))
	if err == nil {
		return password, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrPasswordNotFound
	}
	return "", err
}

func (k *KeyringStore) DeletePassword(remote string) error {
	err := keyring.Delete(k.serviceName, NormalizeRemote(remote))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrPasswordNotFound
	}
	return err
}
