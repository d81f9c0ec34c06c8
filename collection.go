package mongomap

import (
	"reflect"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Meta declares how a record type maps onto physical storage: which
// connection it uses, which collection it lives in, and which indexes that
// collection should carry. A Meta is validated exactly once, when the record
// type is registered, never per instance or per call.
type Meta struct {
	// Connection is required. Use UndefinedConnection for metas that exist
	// only to be shared by abstract record bases.
	Connection Connection

	// CollectionName is required whenever Connection is a real connection.
	CollectionName string

	// Indexes is the optional index set submitted by CreateIndexes.
	Indexes []mongo.IndexModel
}

// validateMeta enforces the registration-time configuration contract. Each
// violation gets its own error so callers can tell a missing meta from a
// missing connection from a bad collection name.
func validateMeta(meta *Meta) error {
	if meta == nil {
		return ErrMetaMissing
	}
	if meta.Connection == nil {
		return ErrConnectionMissing
	}
	if isUndefined(meta.Connection) {
		return nil // placeholder metas skip the collection-name contract
	}
	if v := reflect.ValueOf(meta.Connection); v.Kind() == reflect.Ptr && v.IsNil() {
		return ErrConnectionIncorrect
	}
	if meta.CollectionName == "" {
		return ErrCollectionIncorrect
	}
	return nil
}

func isUndefined(conn Connection) bool {
	switch conn.(type) {
	case UndefinedConnection, *UndefinedConnection:
		return true
	}
	return false
}

// DocPtr constrains P to "pointer to the record struct T, implementing
// Document". Register[User] infers P = *User.
type DocPtr[T any] interface {
	*T
	Document
}

// Collection is the typed mapping and query engine for one registered record
// type. It resolves and memoizes its own physical collection handle; the
// cache is per registered type, so sibling types sharing a connection never
// share a handle entry.
//
// Every operation takes a context and is a single implementation serving both
// blocking and cooperative callers; pass context.Background() when there is
// nothing to cancel.
type Collection[T any, P DocPtr[T]] struct {
	name    string
	meta    *Meta
	schema  *schema
	logger  Logger
	metrics Metrics

	resolve sync.Once
	raw     RawCollection
	rawErr  error
}

// CollectionOption configures a Collection at registration time.
type CollectionOption func(*collectionConfig)

type collectionConfig struct {
	logger  Logger
	metrics Metrics
}

// WithLogger attaches a structured logger to the engine.
func WithLogger(logger Logger) CollectionOption {
	return func(c *collectionConfig) { c.logger = logger }
}

// WithMetrics attaches a metrics collector to the engine.
func WithMetrics(metrics Metrics) CollectionOption {
	return func(c *collectionConfig) { c.metrics = metrics }
}

// registry tracks which record types have been registered, to fail fast on
// double registration. Write-once per type.
var (
	registryMu sync.Mutex
	registry   = make(map[reflect.Type]string)
)

// Register validates a record type's configuration and returns its typed
// engine. This is the definition-time validation hook: call it once per
// concrete record type, normally from a package-level var via MustRegister.
//
//	var Users = mongomap.MustRegister[User](&mongomap.Meta{
//	    Connection:     conn,
//	    CollectionName: "users",
//	})
func Register[T any, P DocPtr[T]](meta *Meta, opts ...CollectionOption) (*Collection[T, P], error) {
	if err := validateMeta(meta); err != nil {
		return nil, err
	}

	typ := reflect.TypeOf((*T)(nil)).Elem()
	s, err := buildSchema(typ)
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, dup := registry[typ]; dup {
		return nil, ErrSchemaInvalid.WithCtx(map[string]any{
			"reason":     "record type already registered",
			"type":       typ.String(),
			"collection": existing,
		})
	}
	registry[typ] = meta.CollectionName

	cfg := collectionConfig{logger: &NoOpLogger{}, metrics: &NoOpMetrics{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Collection[T, P]{
		name:    meta.CollectionName,
		meta:    meta,
		schema:  s,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}, nil
}

// MustRegister is Register for package-level declarations; it panics on any
// configuration error, which surfaces misconfiguration at process start.
func MustRegister[T any, P DocPtr[T]](meta *Meta, opts ...CollectionOption) *Collection[T, P] {
	coll, err := Register[T, P](meta, opts...)
	if err != nil {
		panic(err)
	}
	return coll
}

// Unregister removes a record type from the registry. Intended for tests that
// register the same type repeatedly.
func Unregister[T any]() {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, reflect.TypeOf((*T)(nil)).Elem())
}

// Name returns the physical collection name.
func (c *Collection[T, P]) Name() string {
	return c.name
}

// Raw returns the memoized physical collection handle, resolving it on first
// use. Resolution through an UndefinedConnection fails with a configuration
// error rather than attempting I/O.
func (c *Collection[T, P]) Raw() (RawCollection, error) {
	c.resolve.Do(func() {
		c.raw, c.rawErr = c.meta.Connection.Collection(c.name)
	})
	return c.raw, c.rawErr
}

func (c *Collection[T, P]) newDoc() P {
	return P(new(T))
}

// decodeOne turns a raw wire document into a validated record instance. A nil
// raw document yields a nil instance: that is the optional result shape.
func (c *Collection[T, P]) decodeOne(raw bson.Raw) (P, error) {
	if raw == nil {
		var zero P
		return zero, nil
	}
	doc := c.newDoc()
	if err := c.schema.decode(raw, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Collection[T, P]) decodeMany(raws []bson.Raw) ([]P, error) {
	docs := make([]P, 0, len(raws))
	for _, raw := range raws {
		doc, err := c.decodeOne(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// observe records the outcome of one engine operation.
func (c *Collection[T, P]) observe(op string, start time.Time, err error) {
	duration := time.Since(start)
	c.metrics.Timing(MetricOpDuration, duration, "op", op, "collection", c.name)
	if err != nil {
		c.metrics.Increment(MetricOpError, "op", op, "collection", c.name)
		c.logger.Error("operation failed", "op", op, "collection", c.name, "error", err)
		return
	}
	c.metrics.Increment(MetricOpSuccess, "op", op, "collection", c.name)
	c.logger.Debug("operation complete",
		"op", op,
		"collection", c.name,
		"duration_ms", duration.Milliseconds(),
	)
}

func (c *Collection[T, P]) idFilter(id ID) bson.M {
	return bson.M{"_id": id.ObjectID()}
}
