package vector

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"clone-llm/internal/domain"
)

// ErrUnavailable wraps an upstream connectivity failure. Callers in the
// pipeline orchestrator (C12) treat this as non-fatal for read paths.
var ErrUnavailable = fmt.Errorf("vector store unavailable")

// Store is the per-persona vector memory store (C3): one Qdrant collection
// per persona, six named vectors per point, persona- and user-scoped reads.
// Grounded on the teacher-adjacent qdrantVector client in
// intelligencedev-manifold's qdrant_vector.go, generalized from a single
// dense vector per point to named multi-vectors.
type Store struct {
	client         *qdrant.Client
	vectorSize     uint64
	collectionFunc func(personaID string) string
}

func NewStore(addr, apiKey string, vectorSize int) (*Store, error) {
	host, port := splitAddr(addr)
	cfg := &qdrant.Config{Host: host, Port: port}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Store{
		client:     client,
		vectorSize: uint64(vectorSize),
		collectionFunc: func(personaID string) string {
			return "persona_" + personaID
		},
	}, nil
}

func splitAddr(addr string) (string, int) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return addr, 6334
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6334
	}
	return host, port
}

func (s *Store) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the persona's collection with six equally-sized
// named vectors if it does not already exist. Each persona's points live in
// isolation: a bug that omits persona_id cannot leak across collections.
func (s *Store) EnsureCollection(ctx context.Context, personaID string) error {
	collection := s.collectionFunc(personaID)
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: check collection exists: %v", ErrUnavailable, err)
	}
	if exists {
		return nil
	}

	vectorsConfig := make(map[string]*qdrant.VectorParams, len(domain.AllVectorKinds))
	for _, kind := range domain.AllVectorKinds {
		vectorsConfig[kind] = &qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig:  qdrant.NewVectorsConfigMap(vectorsConfig),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", ErrUnavailable, err)
	}
	return nil
}

// GenerateMemoryID produces a stable, content-derived memory_id so re-running
// the same turn through the pipeline never creates a duplicate point (P2).
func GenerateMemoryID(personaID, userID, content string, happenedAt time.Time) string {
	h := sha1.New()
	h.Write([]byte(personaID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(happenedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

// pointID maps an arbitrary memory_id to the UUID Qdrant requires as a point
// ID, matching the teacher-adjacent deterministic-UUID idiom.
func pointID(memoryID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(memoryID)).String()
}

// Upsert writes a memory record's named vectors and payload. Rejects records
// missing any of the six named vectors, per §4.3.
func (s *Store) Upsert(ctx context.Context, record domain.MemoryRecord) error {
	for _, kind := range domain.AllVectorKinds {
		if len(record.Vectors[kind]) == 0 {
			return fmt.Errorf("vector store: upsert %s: missing %q vector", record.ID, kind)
		}
	}
	if err := s.EnsureCollection(ctx, record.PersonaID); err != nil {
		return err
	}

	vecs := make(map[string]*qdrant.Vector, len(domain.AllVectorKinds))
	for _, kind := range domain.AllVectorKinds {
		vecs[kind] = qdrant.NewVectorDense(record.Vectors[kind])
	}

	payload := qdrant.NewValueMap(map[string]any{
		"_original_id":         record.ID,
		"persona_id":           record.PersonaID,
		"user_id":              record.UserID,
		"content":              record.Content,
		"importance":           record.Importance,
		"emotional_intensity":  record.EmotionalIntensity,
		"primary_emotion":      record.EmotionCategory,
		"sentiment_label":      record.SentimentLabel,
		"happened_at":          record.HappenedAt.UTC().Format(time.RFC3339),
	})

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionFunc(record.PersonaID),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(pointID(record.ID)),
				Vectors: qdrant.NewVectorsMap(vecs),
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, personaID, memoryID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collectionFunc(personaID),
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointID(memoryID))),
	})
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}
	return nil
}

// SearchByDimensions runs one ANN query per provided named vector and
// combines hits by weighted sum, scoped unconditionally to persona and user.
// On upstream failure it returns an empty list and a non-nil error; callers
// treat the error as a warning, never aborting the pipeline (§4.3).
func (s *Store) SearchByDimensions(ctx context.Context, personaID, userID string, dims map[string][]float32, weights map[string]float64, limit int) ([]domain.ScoredMemory, error) {
	if limit <= 0 {
		limit = 10
	}
	combined := make(map[string]float64)
	byID := make(map[string]domain.ScoredMemory)

	for kind, vec := range dims {
		weight, ok := weights[kind]
		if !ok || weight == 0 {
			continue
		}
		using := kind
		qlimit := uint64(limit)
		hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.collectionFunc(personaID),
			Query:          qdrant.NewQueryDense(vec),
			Using:          &using,
			Limit:          &qlimit,
			WithPayload:    qdrant.NewWithPayload(true),
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatch("user_id", userID)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: search %s: %v", ErrUnavailable, kind, err)
		}
		for _, hit := range hits {
			rec, score := recordFromHit(hit)
			combined[rec.ID] += weight * score
			if _, seen := byID[rec.ID]; !seen {
				byID[rec.ID] = domain.ScoredMemory{Record: rec}
			}
		}
	}

	out := make([]domain.ScoredMemory, 0, len(combined))
	for id, score := range combined {
		sm := byID[id]
		sm.Score = float32(score)
		out = append(out, sm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchByContent is a convenience wrapper equivalent to SearchByDimensions
// with only the content dimension weighted.
func (s *Store) SearchByContent(ctx context.Context, personaID, userID string, contentVec []float32, limit int) ([]domain.ScoredMemory, error) {
	return s.SearchByDimensions(ctx, personaID, userID,
		map[string][]float32{domain.VectorKindContent: contentVec},
		map[string]float64{domain.VectorKindContent: 1.0},
		limit,
	)
}

func recordFromHit(hit *qdrant.ScoredPoint) (domain.MemoryRecord, float64) {
	return recordFromPayload(hit.Payload, hit.Id), float64(hit.Score)
}

// recordFromPayload builds a MemoryRecord from a raw point payload, shared by
// SearchByDimensions's ScoredPoint hits and ScrollRecent's RetrievedPoint
// results.
func recordFromPayload(payload map[string]*qdrant.Value, id *qdrant.PointId) domain.MemoryRecord {
	rec := domain.MemoryRecord{}
	if id != nil {
		rec.ID = id.GetUuid()
	}
	if payload == nil {
		return rec
	}
	if v, ok := payload["_original_id"]; ok {
		rec.ID = v.GetStringValue()
	}
	if v, ok := payload["persona_id"]; ok {
		rec.PersonaID = v.GetStringValue()
	}
	if v, ok := payload["user_id"]; ok {
		rec.UserID = v.GetStringValue()
	}
	if v, ok := payload["content"]; ok {
		rec.Content = v.GetStringValue()
	}
	if v, ok := payload["primary_emotion"]; ok {
		rec.EmotionCategory = v.GetStringValue()
	}
	if v, ok := payload["sentiment_label"]; ok {
		rec.SentimentLabel = v.GetStringValue()
	}
	if v, ok := payload["happened_at"]; ok {
		if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
			rec.HappenedAt = t
		}
	}
	return rec
}

// ScrollRecent returns up to limit memory records for (personaID, userID),
// newest first by happened_at, optionally excluding anything at or after
// olderThan (the zero value means no bound). This is §4.3's scroll_recent
// op: the orchestrator's (C12) recent-history fallback source when the C6
// short-term ring has nothing to offer (cold start, cache eviction, or a new
// channel for a known user).
func (s *Store) ScrollRecent(ctx context.Context, personaID, userID string, limit int, olderThan time.Time) ([]domain.MemoryRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	// Qdrant's Scroll has no native happened_at ordering without a payload
	// index on this field, so over-fetch a bounded window and sort
	// client-side rather than add an index just for this one read path.
	fetchLimit := uint32(limit * 4)
	if fetchLimit < 50 {
		fetchLimit = 50
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collectionFunc(personaID),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("user_id", userID)},
		},
		Limit:       &fetchLimit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scroll: %v", ErrUnavailable, err)
	}

	out := make([]domain.MemoryRecord, 0, len(points))
	for _, p := range points {
		rec := recordFromPayload(p.Payload, p.Id)
		if !olderThan.IsZero() && !rec.HappenedAt.Before(olderThan) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HappenedAt.After(out[j].HappenedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
