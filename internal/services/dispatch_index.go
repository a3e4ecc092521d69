package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"alfredoptarigan/job-orchestrator/internal/config"
	"alfredoptarigan/job-orchestrator/internal/models"
)

const (
	indexVectorSize = 768
	indexChunkSize  = 1000
	indexOverlap    = 200
)

type DispatchMatch struct {
	DispatchID uuid.UUID
	JobID      uuid.UUID
	Subject    string
	Score      float32
}

// DispatchIndex is a vector index of sent outreach used to match replies whose
// headers do not point back at a dispatch.
type DispatchIndex interface {
	InitCollection(ctx context.Context) error
	IndexDispatch(ctx context.Context, entry *models.DispatchLog, body string) error
	MatchReply(ctx context.Context, userID uuid.UUID, text string) (*DispatchMatch, error)
}

type qdrantDispatchIndex struct {
	client         *qdrant.Client
	embedder       Embedder
	collectionName string
	threshold      float32
}

// NewDispatchIndex connects to Qdrant when it is configured. Without a URL or
// an embedder the returned index is inert and matches nothing.
func NewDispatchIndex(cfg config.QdrantConfig, embedder Embedder) (DispatchIndex, error) {
	if cfg.URL == "" || embedder == nil {
		return noopDispatchIndex{}, nil
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	// the gRPC port, not the REST one
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantDispatchIndex{
		client:         client,
		embedder:       embedder,
		collectionName: cfg.Collection,
		threshold:      cfg.MatchThreshold,
	}, nil
}

// InitCollection implements DispatchIndex.
func (q *qdrantDispatchIndex) InitCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     indexVectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("✅ Qdrant collection '%s' created successfully", q.collectionName)
	return nil
}

// IndexDispatch implements DispatchIndex. Point ids derive from the dispatch
// id and chunk number, so indexing the same dispatch twice overwrites.
func (q *qdrantDispatchIndex) IndexDispatch(ctx context.Context, entry *models.DispatchLog, body string) error {
	chunks := chunkText(entry.Subject+"\n\n"+body, indexChunkSize, indexOverlap)

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		embedding, err := q.embedder.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", i+1, err)
		}

		pointID := uuid.NewSHA1(entry.ID, []byte(strconv.Itoa(i)))
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID.String()),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"user_id":     entry.UserID.String(),
				"job_id":      entry.JobID.String(),
				"dispatch_id": entry.ID.String(),
				"subject":     entry.Subject,
			}),
		})
	}
	if len(points) == 0 {
		return nil
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// MatchReply implements DispatchIndex. It returns nil when nothing scores
// above the threshold.
func (q *qdrantDispatchIndex) MatchReply(ctx context.Context, userID uuid.UUID, text string) (*DispatchMatch, error) {
	embedding, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed reply: %w", err)
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(embedding...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("user_id", userID.String()),
			},
		},
		Limit:          qdrant.PtrOf(uint64(1)),
		ScoreThreshold: qdrant.PtrOf(q.threshold),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	point := results[0]
	match := &DispatchMatch{Score: point.Score}
	match.DispatchID, _ = uuid.Parse(payloadString(point.Payload, "dispatch_id"))
	match.JobID, _ = uuid.Parse(payloadString(point.Payload, "job_id"))
	match.Subject = payloadString(point.Payload, "subject")
	if match.DispatchID == uuid.Nil {
		return nil, nil
	}

	return match, nil
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if val, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			return val.StringValue
		}
	}
	return ""
}

type noopDispatchIndex struct{}

func (noopDispatchIndex) InitCollection(ctx context.Context) error { return nil }

func (noopDispatchIndex) IndexDispatch(ctx context.Context, entry *models.DispatchLog, body string) error {
	return nil
}

func (noopDispatchIndex) MatchReply(ctx context.Context, userID uuid.UUID, text string) (*DispatchMatch, error) {
	return nil, nil
}
