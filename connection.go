package mongomap

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Connection represents one logical database target. A Connection is
// constructed once at application bootstrap and shared by every record type
// that maps into that database.
type Connection interface {
	// DatabaseName returns the name of the backing database.
	DatabaseName() string

	// Collection resolves the named physical collection. Implementations
	// memoize whatever handles are expensive to build; resolution is
	// idempotent and safe for concurrent use.
	Collection(name string) (RawCollection, error)
}

// ClientFactory builds the driver client for a ClientConnection. The caller
// supplies host, credentials and pool options here; the connection layer never
// inspects them.
type ClientFactory func() (*mongo.Client, error)

// ClientConnection is a Connection backed by a live mongo client. The client
// and database handle are created lazily on the first collection resolution
// and memoized for the connection's lifetime. The driver client is safe for
// concurrent use, so one handle serves every caller regardless of how they
// schedule their work.
type ClientConnection struct {
	databaseName string
	factory      ClientFactory

	once   sync.Once
	client *mongo.Client
	db     *mongo.Database
	err    error
}

// NewConnection creates a connection to the named database using the supplied
// client factory. Nothing is dialed until the first use.
func NewConnection(databaseName string, factory ClientFactory) *ClientConnection {
	return &ClientConnection{databaseName: databaseName, factory: factory}
}

// Dial creates a connection to the named database at the given MongoDB URI.
func Dial(uri, databaseName string) *ClientConnection {
	return NewConnection(databaseName, func() (*mongo.Client, error) {
		return mongo.Connect(options.Client().ApplyURI(uri))
	})
}

func (c *ClientConnection) DatabaseName() string {
	return c.databaseName
}

// Database returns the memoized database handle, dialing on first use.
func (c *ClientConnection) Database() (*mongo.Database, error) {
	c.once.Do(func() {
		c.client, c.err = c.factory()
		if c.err == nil {
			c.db = c.client.Database(c.databaseName)
		}
	})
	return c.db, c.err
}

func (c *ClientConnection) Collection(name string) (RawCollection, error) {
	db, err := c.Database()
	if err != nil {
		return nil, err
	}
	return newMongoCollection(db.Collection(name)), nil
}

// Ping verifies the deployment is reachable.
func (c *ClientConnection) Ping(ctx context.Context) error {
	if _, err := c.Database(); err != nil {
		return err
	}
	return c.client.Ping(ctx, readpref.Primary())
}

// Close releases the underlying client, if one was ever created.
func (c *ClientConnection) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// UndefinedConnection is a placeholder Meta connection for abstract or
// intermediate record metas that are never mapped to a real collection. It
// participates in no I/O: resolving a collection through it is a
// configuration error.
type UndefinedConnection struct{}

func (UndefinedConnection) DatabaseName() string { return "" }

func (UndefinedConnection) Collection(name string) (RawCollection, error) {
	return nil, ErrConnectionUndefined.WithCtx(map[string]any{"collection": name})
}
