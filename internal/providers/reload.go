package providers

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/lxdm/internal/domain"

	"golang.org/x/sync/errgroup"
)

// reloadLimit caps concurrent reload requests against one remote.
const reloadLimit = 8

// ListAll lists the remote's containers and reloads each one concurrently.
// The result keeps the listing order.
func ListAll(ctx context.Context, p domain.Provider) ([]domain.Server, error) {
	listed, err := p.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	return ReloadAll(ctx, p, listed)
}

// ReloadAll reloads every server. The first failure cancels the rest.
func ReloadAll(ctx context.Context, p domain.Provider, servers []domain.Server) ([]domain.Server, error) {
	out := make([]domain.Server, len(servers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reloadLimit)

	for i := range servers {
		server := servers[i]
		g.Go(func() error {
			reloaded, err := p.Reload(gctx, &server)
			if err != nil {
				return fmt.Errorf("failed to reload %q: %w", server.Name, err)
			}
			out[i] = *reloaded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
