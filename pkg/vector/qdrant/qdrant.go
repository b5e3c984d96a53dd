// Package qdrant provides a vector.Driver backed by a Qdrant collection over
// its gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/medibot/pkg/vector"
)

const (
	defaultCollection = "medical_knowledge"
	defaultPort       = 6334

	// keyDocID holds the caller's chunk id. Qdrant only accepts UUID or
	// integer point ids.
	keyDocID    = "doc_id"
	keyMetadata = "metadata"
)

// Client is the subset of the Qdrant client used by the driver.
type Client interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qc.CreateCollection) error
	Upsert(ctx context.Context, req *qc.UpsertPoints) (*qc.UpdateResult, error)
	Query(ctx context.Context, req *qc.QueryPoints) ([]*qc.ScoredPoint, error)
	Get(ctx context.Context, req *qc.GetPoints) ([]*qc.RetrievedPoint, error)
	Delete(ctx context.Context, req *qc.DeletePoints) (*qc.UpdateResult, error)
	Count(ctx context.Context, req *qc.CountPoints) (uint64, error)
	Close() error
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is host:port or a URL such as http://localhost:6334.
	Target string

	// APIKey is sent with every request when set.
	APIKey string

	// CollectionName defaults to "medical_knowledge".
	CollectionName string

	// Dimensions sizes the collection when it has to be created.
	Dimensions uint64
}

// Driver implements vector.Driver on Qdrant.
type Driver struct {
	client     Client
	collection string
	logger     *slog.Logger
}

// NewDriver dials Qdrant and makes sure the collection exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	host, port, useTLS, err := parseTarget(c.Target)
	if err != nil {
		return nil, err
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	d, err := NewDriverWithClient(ctx, client, c, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return d, nil
}

// NewDriverWithClient builds a driver on an existing client.
func NewDriverWithClient(ctx context.Context, client Client, c Config, logger *slog.Logger) (*Driver, error) {
	if c.CollectionName == "" {
		c.CollectionName = defaultCollection
	}

	d := &Driver{
		client:     client,
		collection: c.CollectionName,
		logger:     logger,
	}

	if err := d.ensureCollection(ctx, c.Dimensions); err != nil {
		return nil, err
	}

	logger.Info("qdrant vector driver initialized",
		"target", c.Target,
		"collection", c.CollectionName,
	)
	return d, nil
}

func parseTarget(target string) (string, int, bool, error) {
	if target == "" {
		return "localhost", defaultPort, false, nil
	}

	useTLS := false
	hostport := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		hostport = u.Host
		useTLS = u.Scheme == "https"
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, defaultPort, useTLS, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, useTLS, nil
}

func (d *Driver) ensureCollection(ctx context.Context, dims uint64) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %w", vector.ErrConnection, err)
	}
	if exists {
		return nil
	}
	if dims == 0 {
		return fmt.Errorf("collection %q does not exist and no dimensions were configured", d.collection)
	}

	err = d.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     dims,
			Distance: qc.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}

	d.logger.Info("created qdrant collection", "collection", d.collection, "dimensions", dims)
	return nil
}

// pointID maps an arbitrary chunk id onto a stable UUID.
func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func payload(doc vector.Document) map[string]any {
	meta := make(map[string]any, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	return map[string]any{
		keyDocID:         doc.ID,
		vector.KeyText:   doc.Text,
		vector.KeySource: doc.Source,
		keyMetadata:      meta,
	}
}

func documentFromPayload(p map[string]*qc.Value) vector.Document {
	doc := vector.Document{
		ID:     p[keyDocID].GetStringValue(),
		Text:   p[vector.KeyText].GetStringValue(),
		Source: p[vector.KeySource].GetStringValue(),
	}
	if fields := p[keyMetadata].GetStructValue().GetFields(); len(fields) > 0 {
		doc.Metadata = make(map[string]string, len(fields))
		for k, v := range fields {
			doc.Metadata[k] = v.GetStringValue()
		}
	}
	return doc
}

// Add upserts documents.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qc.PointStruct, 0, len(docs))
	for _, doc := range docs {
		values, err := qc.TryValueMap(payload(doc))
		if err != nil {
			return fmt.Errorf("encoding payload for %s: %w", doc.ID, err)
		}
		points = append(points, &qc.PointStruct{
			Id:      qc.NewID(pointID(doc.ID)),
			Vectors: qc.NewVectors(doc.Embedding...),
			Payload: values,
		})
	}

	wait := true
	if _, err := d.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))
	return nil
}

// Query returns the topK nearest chunks by cosine similarity.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	points, err := d.client.Query(ctx, &qc.QueryPoints{
		CollectionName: d.collection,
		Query:          qc.NewQuery(embedding...),
		Limit:          qc.PtrOf(uint64(topK)),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying qdrant: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: documentFromPayload(p.GetPayload()),
			Score:    p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

func pointIDs(ids []string) []*qc.PointId {
	out := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		out[i] = qc.NewID(pointID(id))
	}
	return out
}

// Get retrieves documents by id. Embeddings are not returned.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := d.client.Get(ctx, &qc.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(ids),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, documentFromPayload(p.GetPayload()))
	}
	return docs, nil
}

// Delete removes documents by id.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: d.collection,
		Points:         qc.NewPointsSelector(pointIDs(ids)...),
	}); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	n, err := d.client.Count(ctx, &qc.CountPoints{
		CollectionName: d.collection,
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)
