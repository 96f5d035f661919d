package rolestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/domain/models"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrCatalogMissing means a built-in role the services depend on is absent.
var ErrCatalogMissing = errors.New("role catalog not seeded")

// Default cache settings. Roles change only through Seed.
const (
	cacheSize = 64
	cacheTTL  = 5 * time.Minute
)

// Catalog is a read-through cache in front of the roles store.
// It is safe for concurrent use.
type Catalog struct {
	store  *Store
	byName *lru.LRU[string, models.Role]
	byID   *lru.LRU[primitive.ObjectID, models.Role]
}

// NewCatalog wraps store with a small expiring cache.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{
		store:  store,
		byName: lru.NewLRU[string, models.Role](cacheSize, nil, cacheTTL),
		byID:   lru.NewLRU[primitive.ObjectID, models.Role](cacheSize, nil, cacheTTL),
	}
}

// ByName returns the role called name.
func (c *Catalog) ByName(ctx context.Context, name string) (models.Role, error) {
	if r, ok := c.byName.Get(name); ok {
		return r, nil
	}
	r, err := c.store.GetByName(ctx, name)
	if err != nil {
		return models.Role{}, err
	}
	c.remember(r)
	return r, nil
}

// ByID returns the role with the given id.
func (c *Catalog) ByID(ctx context.Context, id primitive.ObjectID) (models.Role, error) {
	if r, ok := c.byID.Get(id); ok {
		return r, nil
	}
	r, err := c.store.GetByID(ctx, id)
	if err != nil {
		return models.Role{}, err
	}
	c.remember(r)
	return r, nil
}

// Required returns a built-in role, mapping absence to ErrCatalogMissing.
func (c *Catalog) Required(ctx context.Context, name string) (models.Role, error) {
	r, err := c.ByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return models.Role{}, fmt.Errorf("%w: %s", ErrCatalogMissing, name)
	}
	return r, err
}

// Verify checks that every built-in role exists. Called once at startup so
// a missing seed fails the process instead of a request.
func (c *Catalog) Verify(ctx context.Context) error {
	for _, name := range authz.RoleNames {
		if _, err := c.Required(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Purge drops every cached role.
func (c *Catalog) Purge() {
	c.byName.Purge()
	c.byID.Purge()
}

func (c *Catalog) remember(r models.Role) {
	c.byName.Add(r.Name, r)
	c.byID.Add(r.ID, r)
}
