// Package mongomap is a typed object-document mapping layer for MongoDB.
// Applications declare record schemas as plain structs, register them once,
// and get a typed CRUD/query engine per collection, with no hand-written
// query documents for the common cases.
//
// # Quick Start
//
//	type User struct {
//	    mongomap.Base `bson:",inline"`
//	    Name string `bson:"name" mongomap:"required"`
//	    Age  int    `bson:"age"`
//	}
//
//	conn := mongomap.Dial("mongodb://localhost:27017", "app")
//	Users := mongomap.MustRegister[User](&mongomap.Meta{
//	    Connection:     conn,
//	    CollectionName: "users",
//	})
//
//	ctx := context.Background()
//	user := &User{Name: "alice", Age: 30}
//	Users.Save(ctx, user)          // assigns user.ID
//	found, _ := Users.FindOne(ctx, bson.M{"name": "alice"}, mongomap.FindOptions{})
//	Users.Delete(ctx, found)       // clears found.ID
//
// # Core Concepts
//
// Connection: one logical database target. Client and database handles are
// created lazily and memoized for the connection's lifetime. Use
// UndefinedConnection as a placeholder in metas shared by abstract record
// bases; it participates in no I/O.
//
// Meta: per-type configuration (connection, collection name, indexes),
// validated exactly once when the type is registered. Each misconfiguration
// raises its own typed error, so a missing Meta is distinguishable from a
// missing connection or a bad collection name.
//
// Collection: the typed engine returned by Register. Every operation takes a
// context; the same implementation serves blocking callers and cooperative
// ones. Optional query variants (FindOne) return nil on no match, required
// variants (FindOneRequired, Dereference) fail with a query.no_data error,
// and raw variants (FindRaw) skip record-type validation entirely.
//
// Records: structs embedding Base. The identifier lives on the wire under
// "_id" and in code as the ID field; a zero ID means "never persisted". Wire
// serialization excludes the identifier and every field the caller never
// explicitly set, so partial documents do not clobber fields they did not
// touch.
//
// Dereferencing: Dereference resolves one identifier to its record (failing
// before any I/O on an unset identifier); DereferenceList resolves many in a
// single "$in" query and, by default, returns them in the input order.
//
// # Error Handling
//
// Every failure condition this layer defines is a *Error with a stable
// dotted code ("connection.missing", "query.no_data", ...); discriminate
// with errors.Is against the exported prototypes. Driver errors pass through
// uninspected: there is no retry, fallback, or timeout logic in this layer.
//
// # Observability
//
// Loggers (zap, zerolog, or any Logger implementation) and metrics
// (Prometheus or any Metrics implementation) attach at registration:
//
//	logger, _ := mongomap.NewProductionZapLogger()
//	metrics := mongomap.NewPrometheusMetrics(nil)
//	Users := mongomap.MustRegister[User](meta,
//	    mongomap.WithLogger(logger),
//	    mongomap.WithMetrics(metrics),
//	)
//
// # Development and Testing
//
// MemoryConnection runs the full engine against an in-memory store, so
// application code and tests need no MongoDB deployment:
//
//	conn := mongomap.NewMemoryConnection("test")
package mongomap
