// mongomap - MongoDB administration helper
//
// Small operational companion to the mongomap library: check connectivity,
// count documents, and inspect collections without opening a mongo shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongomap/mongomap"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "ping":
			runPing(os.Args[2:])
			return
		case "count":
			runCount(os.Args[2:])
			return
		case "distinct":
			runDistinct(os.Args[2:])
			return
		case "indexes":
			runIndexes(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	printHelp()
	os.Exit(2)
}

func printHelp() {
	fmt.Println(`mongomap - MongoDB administration helper

Usage:
  mongomap ping [flags]                 Check server connectivity
  mongomap count [flags]                Estimated document count for a collection
  mongomap distinct [flags]             Distinct values of a field
  mongomap indexes [flags]              List indexes of a collection

Common flags:
  --uri string         Connection URI (default from MONGO_URI, else mongodb://localhost:27017)
  --db string          Database name (default "test")
  --timeout duration   Operation timeout (default 10s)

count/distinct/indexes flags:
  --collection string  Collection name
  --field string       Field name (distinct only)`)
}

type commonFlags struct {
	uri        string
	db         string
	collection string
	timeout    time.Duration
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.uri, "uri", "", "Connection URI (overrides MONGO_URI)")
	fs.StringVar(&cf.db, "db", "test", "Database name")
	fs.StringVar(&cf.collection, "collection", "", "Collection name")
	fs.DurationVar(&cf.timeout, "timeout", mongomap.DefaultPingTimeout, "Operation timeout")
	return cf
}

func (cf *commonFlags) connect() (*mongomap.ClientConnection, context.Context, context.CancelFunc) {
	uri := cf.uri
	if uri == "" {
		uri = os.Getenv("MONGO_URI")
	}
	if uri == "" {
		uri = mongomap.DefaultURI
	}

	conn := mongomap.Dial(uri, cf.db)
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
	return conn, ctx, cancel
}

func runPing(args []string) {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	cf := registerCommon(fs)
	fs.Parse(args)

	conn, ctx, cancel := cf.connect()
	defer cancel()
	defer conn.Close(context.Background())

	start := time.Now()
	if err := conn.Ping(ctx); err != nil {
		log.Fatalf("ping failed: %v", err)
	}
	fmt.Printf("ok %s (%s)\n", conn.DatabaseName(), time.Since(start).Round(time.Millisecond))
}

func runCount(args []string) {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	cf := registerCommon(fs)
	fs.Parse(args)

	if cf.collection == "" {
		log.Fatal("count requires --collection")
	}

	conn, ctx, cancel := cf.connect()
	defer cancel()
	defer conn.Close(context.Background())

	coll, err := conn.Collection(cf.collection)
	if err != nil {
		log.Fatalf("resolve collection: %v", err)
	}
	n, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		log.Fatalf("count failed: %v", err)
	}
	fmt.Printf("%s.%s: %d documents (estimated)\n", cf.db, cf.collection, n)
}

func runDistinct(args []string) {
	fs := flag.NewFlagSet("distinct", flag.ExitOnError)
	cf := registerCommon(fs)
	field := fs.String("field", "", "Field name")
	fs.Parse(args)

	if cf.collection == "" || *field == "" {
		log.Fatal("distinct requires --collection and --field")
	}

	conn, ctx, cancel := cf.connect()
	defer cancel()
	defer conn.Close(context.Background())

	coll, err := conn.Collection(cf.collection)
	if err != nil {
		log.Fatalf("resolve collection: %v", err)
	}
	values, err := coll.Distinct(ctx, *field, bson.D{})
	if err != nil {
		log.Fatalf("distinct failed: %v", err)
	}
	for _, v := range values {
		fmt.Println(v)
	}
}

func runIndexes(args []string) {
	fs := flag.NewFlagSet("indexes", flag.ExitOnError)
	cf := registerCommon(fs)
	fs.Parse(args)

	if cf.collection == "" {
		log.Fatal("indexes requires --collection")
	}

	conn, ctx, cancel := cf.connect()
	defer cancel()
	defer conn.Close(context.Background())

	db, err := conn.Database()
	if err != nil {
		log.Fatalf("resolve database: %v", err)
	}
	cursor, err := db.Collection(cf.collection).Indexes().List(ctx)
	if err != nil {
		log.Fatalf("list indexes: %v", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var spec bson.M
		if err := cursor.Decode(&spec); err != nil {
			log.Fatalf("decode index: %v", err)
		}
		fmt.Printf("%v\t%v\n", spec["name"], spec["key"])
	}
	if err := cursor.Err(); err != nil {
		log.Fatalf("list indexes: %v", err)
	}
}
