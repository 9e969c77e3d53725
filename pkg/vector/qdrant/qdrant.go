// Package qdrant provides a Qdrant vector driver over the gRPC client.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/davidhonghikim/griot-sub000/pkg/vector"
)

const (
	DefaultCollectionName = "griot"
	DefaultPort           = 6334

	// Qdrant point ids must be UUIDs or integers, so the document id and
	// content ride along in the payload.
	payloadID      = "_griot_id"
	payloadContent = "_griot_content"
)

// idNamespace derives stable point UUIDs from document ids.
var idNamespace = uuid.MustParse("6f0c1d1e-6b5b-4b7e-9a55-7a3e0b1f6c11")

// Config holds configuration for the Qdrant driver.
type Config struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	CollectionName string

	// Dimensions sizes the collection when it has to be created.
	Dimensions uint
}

// Driver implements vector.VectorDriver on a Qdrant collection with cosine
// distance.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and creates the collection when missing.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.CollectionName == "" {
		c.CollectionName = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, c.CollectionName)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, c.CollectionName, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.CollectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %q: %w", c.CollectionName, err)
		}
	}

	logger.Info("connected to qdrant",
		"host", c.Host,
		"port", c.Port,
		"collection", c.CollectionName,
		"created", !exists,
	)

	return &Driver{client: client, collection: c.CollectionName, logger: logger}, nil
}

// Add upserts documents.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		payload, err := toPayload(doc)
		if err != nil {
			return fmt.Errorf("encoding payload for doc %s: %w", doc.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: payload,
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))
	return nil
}

// Query runs a filtered nearest-neighbour search. Qdrant already reports
// cosine similarity as the score.
func (d *Driver) Query(ctx context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         buildFilter(opts.Filter),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		doc := fromPayload(p.GetPayload())
		doc.Embedding = p.GetVectors().GetVector().GetData()
		results = append(results, vector.QueryResult{Document: doc, Score: p.GetScore()})
	}

	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(ids),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		doc := fromPayload(p.GetPayload())
		doc.Embedding = p.GetVectors().GetVector().GetData()
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant", "count", len(ids))
	return nil
}

// Count returns the exact number of points in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	n, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func pointID(id string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(idNamespace, []byte(id)).String())
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		out[i] = pointID(id)
	}
	return out
}

// toPayload normalizes metadata through JSON so every value is one of the
// types qdrant.TryValueMap accepts.
func toPayload(doc vector.Document) (map[string]*qdrant.Value, error) {
	raw, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m[payloadID] = doc.ID
	m[payloadContent] = doc.Content
	return qdrant.TryValueMap(m)
}

func fromPayload(payload map[string]*qdrant.Value) vector.Document {
	doc := vector.Document{Metadata: make(map[string]any, len(payload))}
	for k, v := range payload {
		switch k {
		case payloadID:
			doc.ID = v.GetStringValue()
		case payloadContent:
			doc.Content = v.GetStringValue()
		default:
			doc.Metadata[k] = valueToAny(v)
		}
	}
	return doc
}

func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_ListValue:
		vals := k.ListValue.GetValues()
		out := make([]any, len(vals))
		for i, e := range vals {
			out[i] = valueToAny(e)
		}
		return out
	case *qdrant.Value_StructValue:
		fields := k.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for name, e := range fields {
			out[name] = valueToAny(e)
		}
		return out
	default:
		return nil
	}
}

// buildFilter maps Match to keyword matches and AnyOf to a keywords match,
// which Qdrant evaluates against array payloads element-wise.
func buildFilter(f vector.Filter) *qdrant.Filter {
	if f.IsEmpty() {
		return nil
	}

	var must []*qdrant.Condition
	for _, k := range f.MatchKeys() {
		must = append(must, qdrant.NewMatch(k, f.Match[k]))
	}
	for _, k := range f.AnyOfKeys() {
		must = append(must, qdrant.NewMatchKeywords(k, f.AnyOf[k]...))
	}
	return &qdrant.Filter{Must: must}
}

var _ vector.VectorDriver = (*Driver)(nil)
