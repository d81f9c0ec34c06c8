package mongomap

import (
	"os"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Configuration defaults for client construction.
const (
	DefaultURI            = "mongodb://localhost:27017"
	DefaultConnectTimeout = 10 * time.Second
	DefaultPingTimeout    = 10 * time.Second
)

// ClientOptionsFromEnv returns driver client options populated from standard
// environment variables.
//
// Environment variables read (with defaults):
//   - MONGO_URI (default: "mongodb://localhost:27017")
//   - MONGO_APP_NAME (default: unset)
//   - MONGO_CONNECT_TIMEOUT_MS (default: 10000)
//
// This is a convenience for 12-factor deployments; construct
// options.ClientOptions directly for advanced scenarios (TLS, replica-set
// read preferences, custom pools).
//
// Example:
//
//	conn := mongomap.NewConnection("app", func() (*mongo.Client, error) {
//	    return mongo.Connect(mongomap.ClientOptionsFromEnv())
//	})
func ClientOptionsFromEnv() *options.ClientOptions {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = DefaultURI
	}

	opts := options.Client().ApplyURI(uri)
	opts.SetConnectTimeout(time.Duration(getEnvAsInt("MONGO_CONNECT_TIMEOUT_MS", int(DefaultConnectTimeout/time.Millisecond))) * time.Millisecond)

	if appName := os.Getenv("MONGO_APP_NAME"); appName != "" {
		opts.SetAppName(appName)
	}
	return opts
}

func getEnvAsInt(name string, fallback int) int {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
