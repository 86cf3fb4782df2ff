package providers

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/lxd"
	"nathanbeddoewebdev/lxdm/internal/services/auth"

	"go.uber.org/zap"
)

// RegisterLXD registers the LXD driver factory with the global registry.
func RegisterLXD() {
	Register(lxd.ProviderName, newLXD)
}

func newLXD(remote config.Remote, deps Deps) (domain.Provider, error) {
	opts := []lxd.Option{lxd.WithLogger(deps.Logger)}
	if deps.Observer != nil {
		opts = append(opts, lxd.WithObserver(deps.Observer))
	}

	// The trust password is optional; most remotes already trust the
	// client certificate.
	if deps.Store != nil && deps.RemoteName != "" {
		password, err := deps.Store.GetPassword(deps.RemoteName)
		switch {
		case err == nil:
			opts = append(opts, lxd.WithPassword(password))
		case errors.Is(err, auth.ErrPasswordNotFound):
		default:
			deps.Logger.Debug("trust password unavailable", zap.String("remote", deps.RemoteName), zap.Error(err))
		}
	}

	client, err := lxd.NewClient(remote, opts...)
	if err != nil {
		return nil, fmt.Errorf("lxd: %w", err)
	}
	return client, nil
}
