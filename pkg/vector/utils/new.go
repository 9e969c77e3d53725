package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/davidhonghikim/griot-sub000/pkg/vector"
	"github.com/davidhonghikim/griot-sub000/pkg/vector/chroma"
	"github.com/davidhonghikim/griot-sub000/pkg/vector/inmemory"
	"github.com/davidhonghikim/griot-sub000/pkg/vector/pgvector"
	"github.com/davidhonghikim/griot-sub000/pkg/vector/qdrant"
	"github.com/davidhonghikim/griot-sub000/pkg/vector/sqlitevec"
)

const (
	ProviderMemory   = "memory"
	ProviderSQLite   = "sqlite"
	ProviderChroma   = "chroma"
	ProviderQdrant   = "qdrant"
	ProviderPGVector = "pgvector"
)

type NewVectorStoreOpts struct {
	ProviderType string

	// TargetURL is a file path for sqlite, a URL for chroma, host:port for
	// qdrant and a DSN for pgvector.
	TargetURL  string
	Collection string
	APIKey     string
	Dimensions uint
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewVectorStore returns a lazily opened vector.Store for the provider.
// Nothing is dialed until the first call.
func NewVectorStore(o *NewVectorStoreOpts) (*vector.Store, error) {
	open, err := opener(o)
	if err != nil {
		return nil, err
	}
	return vector.NewStore(open, vector.StoreConfig{
		Name:    o.ProviderType,
		Timeout: o.Timeout,
	}, o.Logger), nil
}

func opener(o *NewVectorStoreOpts) (vector.Opener, error) {
	switch o.ProviderType {
	case "", ProviderMemory:
		o.ProviderType = ProviderMemory
		d := inmemory.NewDriver()
		return func(context.Context) (vector.VectorDriver, error) { return d, nil }, nil

	case ProviderSQLite:
		return func(context.Context) (vector.VectorDriver, error) {
			return sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     o.TargetURL,
				Dimensions: o.Dimensions,
			}, o.Logger)
		}, nil

	case ProviderChroma:
		return func(context.Context) (vector.VectorDriver, error) {
			return chroma.NewDriver(chroma.Config{
				URL:            o.TargetURL,
				CollectionName: o.Collection,
			}, o.Logger)
		}, nil

	case ProviderQdrant:
		host, port, err := splitHostPort(o.TargetURL, qdrant.DefaultPort)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (vector.VectorDriver, error) {
			return qdrant.NewDriver(ctx, qdrant.Config{
				Host:           host,
				Port:           port,
				APIKey:         o.APIKey,
				CollectionName: o.Collection,
				Dimensions:     o.Dimensions,
			}, o.Logger)
		}, nil

	case ProviderPGVector:
		return func(ctx context.Context) (vector.VectorDriver, error) {
			return pgvector.NewDriver(ctx, pgvector.Config{
				DSN:        o.TargetURL,
				Table:      o.Collection,
				Dimensions: o.Dimensions,
			}, o.Logger)
		}, nil

	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

func splitHostPort(target string, defaultPort int) (string, int, error) {
	if target == "" {
		return "", 0, fmt.Errorf("vector store target is required")
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return target, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parsing port in %q: %w", target, err)
	}
	return host, port, nil
}
