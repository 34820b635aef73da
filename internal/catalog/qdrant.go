package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

const upsertBatchSize = 100

// QdrantSource implements Source and Indexer using Qdrant.
//
// Candidates are fetched with a filtered Scroll (payload filter, vectors
// included) rather than the native ranked Query API. This deliberately
// trades index-accelerated top-k for a filtered scan scored in process,
// because the blended lexical+price scoring cannot be expressed by the
// store's query language. The scan is bounded by the caller's fetch limit.
type QdrantSource struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantSource creates a Qdrant-backed catalog source.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantSource(ctx context.Context, url, collection string) (*QdrantSource, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantSource{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantSource) Close() error {
	return s.client.Close()
}

// Fetch returns up to limit candidates matching the filter, embeddings
// included. Points without a vector or without a name payload are skipped.
func (s *QdrantSource) Fetch(ctx context.Context, filter Filter, limit int) ([]Candidate, error) {
	must := []*qdrant.Condition{
		qdrant.NewRange("price", &qdrant.Range{Lte: qdrant.PtrOf(filter.MaxPrice)}),
	}
	if filter.Category != "" {
		must = append(must, qdrant.NewMatch("category", filter.Category))
	}
	if filter.Color != "" {
		must = append(must, qdrant.NewMatch("color", filter.Color))
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scroll failed: %v", ErrSourceUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(points))
	for _, point := range points {
		vector := point.GetVectors().GetVector().GetData()
		if len(vector) == 0 {
			slog.Warn("skipping point without vector", "id", point.GetId().GetUuid())
			continue
		}
		candidates = append(candidates, Candidate{
			ID:        point.GetId().GetUuid(),
			Embedding: vector,
			Product:   decodePayload(point.GetPayload()),
		})
	}

	return candidates, nil
}

// decodePayload converts a Qdrant payload into a Product snapshot.
// A price that is neither numeric nor parsable leaves HasPrice false;
// downstream ranking treats such products as priced at the budget.
func decodePayload(payload map[string]*qdrant.Value) Product {
	p := Product{
		Name:                 payload["name"].GetStringValue(),
		Brand:                payload["brand"].GetStringValue(),
		DisplayPrice:         payload["display_price"].GetStringValue(),
		Color:                payload["color"].GetStringValue(),
		Category:             payload["category"].GetStringValue(),
		Availability:         payload["availability"].GetStringValue(),
		URL:                  payload["url"].GetStringValue(),
		Image:                payload["image"].GetStringValue(),
		HasDiscount:          payload["has_discount"].GetBoolValue(),
		DisplayOriginalPrice: payload["display_original_price"].GetStringValue(),
	}

	p.Price, p.HasPrice = decodeNumber(payload["price"])
	if !p.HasPrice && payload["price"] != nil {
		slog.Warn("product has unparsable price", "name", p.Name, "raw", payload["price"].String())
	}
	p.OriginalPrice, _ = decodeNumber(payload["original_price"])
	p.DiscountPercent, _ = decodeNumber(payload["discount_percentage"])

	return p
}

// decodeNumber reads a numeric payload value that may be stored as a
// double, an integer, or a display string.
func decodeNumber(v *qdrant.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue, true
	case *qdrant.Value_IntegerValue:
		return float64(kind.IntegerValue), true
	case *qdrant.Value_StringValue:
		price, err := ParsePrice(kind.StringValue)
		if err != nil {
			return 0, false
		}
		return price, true
	default:
		return 0, false
	}
}

// EnsureCollection creates the product collection and its payload indexes
// if they do not exist yet.
func (s *QdrantSource) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	// Payload indexes back the filtered scroll. Creation is idempotent
	// enough for our purposes; errors on re-creation are ignored.
	indexes := []struct {
		field string
		typ   qdrant.FieldType
	}{
		{"price", qdrant.FieldType_FieldTypeFloat},
		{"category", qdrant.FieldType_FieldTypeKeyword},
		{"color", qdrant.FieldType_FieldTypeKeyword},
	}
	for _, idx := range indexes {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      idx.field,
			FieldType:      idx.typ.Enum(),
		})
		if err != nil {
			slog.Debug("payload index creation skipped", "field", idx.field, "error", err)
		}
	}

	return nil
}

// Upsert writes catalog entries to the store in batches.
func (s *QdrantSource) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, entry := range entries {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(entry.ID),
			Vectors: qdrant.NewVectors(entry.Vector...),
			Payload: encodePayload(entry.Product),
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points[start:end],
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}

	return nil
}

func encodePayload(p Product) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"name":          qdrant.NewValueString(p.Name),
		"brand":         qdrant.NewValueString(p.Brand),
		"price":         qdrant.NewValueDouble(p.Price),
		"display_price": qdrant.NewValueString(p.DisplayPrice),
		"color":         qdrant.NewValueString(p.Color),
		"category":      qdrant.NewValueString(p.Category),
		"availability":  qdrant.NewValueString(p.Availability),
		"url":           qdrant.NewValueString(p.URL),
		"image":         qdrant.NewValueString(p.Image),
	}
	if p.HasDiscount {
		payload["has_discount"] = qdrant.NewValueBool(true)
		payload["original_price"] = qdrant.NewValueDouble(p.OriginalPrice)
		payload["display_original_price"] = qdrant.NewValueString(p.DisplayOriginalPrice)
		payload["discount_percentage"] = qdrant.NewValueDouble(p.DiscountPercent)
	}
	return payload
}

// Ensure QdrantSource implements both catalog interfaces
var (
	_ Source  = (*QdrantSource)(nil)
	_ Indexer = (*QdrantSource)(nil)
)
