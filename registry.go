package sqsclient

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Registry is the construction point for [Client] instances, deduplicated by
// connection configuration: repeated [Registry.GetOrCreate] calls with
// field-wise equal [Config] values return the same client, so one underlying
// connection is shared per configuration.
//
// A Registry is an explicit dependency, constructed once at application
// startup and passed to consumers; there is no package-level instance cache.
// Registered clients are never evicted and live for the registry's lifetime.
// That is acceptable while the set of distinct configurations is small and
// static; callers minting configurations dynamically should close and rebuild
// the registry periodically instead.
//
// All methods are safe for concurrent use.
type Registry struct {
	logger *zap.Logger
	opts   []Option

	group   singleflight.Group
	mu      sync.Mutex
	clients map[Config]*Client
}

// NewRegistry creates an empty registry. opts are applied to every client the
// registry constructs. A nil logger is replaced with a no-op logger.
func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		logger:  logger,
		opts:    opts,
		clients: make(map[Config]*Client),
	}
}

// GetOrCreate returns the registered client whose configuration equals cfg,
// constructing and registering one — which eagerly opens its transport
// connection — when none exists yet.
//
// Concurrent calls with equal configurations are collapsed into a single
// construction: every caller receives the same instance, and at most one
// transport connection is opened per configuration. A failed construction
// registers nothing, so a later call retries it.
func (r *Registry) GetOrCreate(ctx context.Context, cfg Config) (*Client, error) {
	r.mu.Lock()
	client, ok := r.clients[cfg]
	r.mu.Unlock()

	if ok {
		return client, nil
	}

	v, err, _ := r.group.Do(cfg.key(), func() (any, error) {
		// A concurrent flight may have registered the client between the
		// lookup above and this call.
		r.mu.Lock()
		client, ok := r.clients[cfg]
		r.mu.Unlock()

		if ok {
			return client, nil
		}

		built, err := NewClient(ctx, cfg, r.logger, r.opts...)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.clients[cfg] = built
		r.mu.Unlock()

		r.logger.Debug("SQS client registered",
			zap.String("queue_url", cfg.QueueURL), zap.String("region", cfg.Region))

		return built, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Client), nil
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.clients)
}

// Close closes every registered client and empties the registry.
// It returns the combined close errors, if any.
func (r *Registry) Close() error {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[Config]*Client)
	r.mu.Unlock()

	var errs []error
	for _, c := range clients {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}

// Borrow runs fn with a client that exists only for the duration of the
// call: the client is constructed, fn is invoked, and the transport handle
// is released before Borrow returns, regardless of fn's outcome.
//
// Borrow bypasses registry deduplication; use it for one-off maintenance
// work (such as [Client.Purge] in tests) where keeping a process-lifetime
// connection is not wanted.
func Borrow(ctx context.Context, cfg Config, logger *zap.Logger, fn func(*Client) error, opts ...Option) (err error) {
	client, err := NewClient(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(client)
}
