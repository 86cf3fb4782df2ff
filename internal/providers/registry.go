package providers

import (
	"fmt"
	"sort"
	"sync"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/services/auth"
	"nathanbeddoewebdev/lxdm/internal/util"

	"go.uber.org/zap"
)

// Deps carries the collaborators a factory may wire into its provider.
type Deps struct {
	// RemoteName is the configured name of the remote, used as the
	// auth store key.
	RemoteName string
	Store      auth.Store
	Logger     *zap.Logger
	Observer   domain.OperationObserver
}

type Factory func(remote config.Remote, deps Deps) (domain.Provider, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("providers: empty provider name")
	}
	if factory == nil {
		panic("providers: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("providers: provider %q already registered", name))
	}

	registry[normalizedName] = factory
}

// Get builds a provider for remote using the factory registered for the
// remote's driver.
func Get(remote config.Remote, deps Deps) (domain.Provider, error) {
	remote = remote.WithDefaults()
	normalizedName := util.NormalizeKey(remote.Driver)
	mu.RLock()
	factory, ok := registry[normalizedName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("providers: unknown driver %q", remote.Driver)
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	provider, err := factory(remote, deps)
	if err != nil {
		return nil, err
	}

	return provider, nil
}

// Reset clears the provider registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}

func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
