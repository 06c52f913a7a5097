package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/forkful/pantry-service/internal/models"
)

func cloneBatch(b *models.Batch) *models.Batch {
	return models.RehydrateBatch(b.ID(), b.OwnerID(), b.IngredientID(), b.Quantity(),
		b.Unit(), b.Storage(), b.Label(), b.ExpiresAt(), b.State(), b.Sealed(),
		b.CreatedAt(), b.UpdatedAt())
}

func cloneSession(s *models.CookingSession) *models.CookingSession {
	return models.RehydrateSession(s.Snapshot())
}

type logEntry struct {
	sessionID uuid.UUID
	stepID    string
	entries   []models.StepConsumption
}

// fakeTx stages writes until commit, mirroring how the real storage keeps
// mutations invisible to other transactions.
type fakeTx struct {
	batches  map[uuid.UUID]*models.Batch
	sessions map[uuid.UUID]*models.CookingSession
	log      []logEntry
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		batches:  make(map[uuid.UUID]*models.Batch),
		sessions: make(map[uuid.UUID]*models.CookingSession),
	}
}

// fakeStore is an in-memory BatchRepository and SessionRepository sharing
// one committed state, so orchestrator tests observe real transactional
// visibility: staged writes vanish on rollback.
type fakeStore struct {
	mu       sync.Mutex
	batches  map[uuid.UUID]*models.Batch
	sessions map[uuid.UUID]*models.CookingSession
	log      []logEntry

	beginErr  error
	commitErr error
	lockErr   error

	commits   int
	rollbacks int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches:  make(map[uuid.UUID]*models.Batch),
		sessions: make(map[uuid.UUID]*models.CookingSession),
	}
}

func (f *fakeStore) putBatch(b *models.Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[b.ID()] = cloneBatch(b)
}

func (f *fakeStore) putSession(s *models.CookingSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID()] = cloneSession(s)
}

func (f *fakeStore) batchByID(id uuid.UUID) *models.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok {
		return cloneBatch(b)
	}
	return nil
}

func (f *fakeStore) sessionByID(id uuid.UUID) *models.CookingSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		return cloneSession(s)
	}
	return nil
}

// BatchRepository

func (f *fakeStore) GetBatch(_ context.Context, batchID uuid.UUID) (*models.Batch, error) {
	return f.batchByID(batchID), nil
}

func (f *fakeStore) LockBatch(_ context.Context, tx interface{}, batchID uuid.UUID) (*models.Batch, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	ftx := tx.(*fakeTx)
	if staged, ok := ftx.batches[batchID]; ok {
		return cloneBatch(staged), nil
	}
	return f.batchByID(batchID), nil
}

func (f *fakeStore) ListBatches(_ context.Context, ownerID string) ([]*models.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Batch
	for _, b := range f.batches {
		if b.OwnerID() == ownerID {
			out = append(out, cloneBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	return out, nil
}

func (f *fakeStore) FindFEFO(_ context.Context, ownerID, ingredientID string, now time.Time) ([]*models.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Batch
	for _, b := range f.batches {
		if b.OwnerID() == ownerID && b.IngredientID() == ingredientID &&
			b.Quantity() > 0 && b.CanBeConsumed(now) {
			out = append(out, cloneBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt().Before(out[j].ExpiresAt())
	})
	return out, nil
}

func (f *fakeStore) FindExpiringSoon(_ context.Context, ownerID string, withinDays int, storage models.StorageLocation, now time.Time) ([]*models.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	horizon := now.Add(time.Duration(withinDays) * 24 * time.Hour)
	var out []*models.Batch
	for _, b := range f.batches {
		if b.OwnerID() != ownerID || b.ExpiresAt().After(horizon) {
			continue
		}
		if storage != "" && b.Storage() != storage {
			continue
		}
		switch b.State() {
		case models.BatchStateAvailable, models.BatchStateReserved, models.BatchStateExpiringSoon:
			out = append(out, cloneBatch(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si := models.BatchUrgency(out[i], now)
		sj := models.BatchUrgency(out[j], now)
		if si != sj {
			return si > sj
		}
		return out[i].ExpiresAt().Before(out[j].ExpiresAt())
	})
	return out, nil
}

func (f *fakeStore) CreateBatch(_ context.Context, batch *models.Batch) error {
	f.putBatch(batch)
	return nil
}

func (f *fakeStore) SaveBatch(_ context.Context, batch *models.Batch) error {
	f.putBatch(batch)
	return nil
}

func (f *fakeStore) SaveBatchInTx(_ context.Context, tx interface{}, batch *models.Batch) error {
	ftx := tx.(*fakeTx)
	ftx.batches[batch.ID()] = cloneBatch(batch)
	return nil
}

func (f *fakeStore) SweepExpirations(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var mutated int64
	for _, b := range f.batches {
		if b.Expire(now) == nil {
			mutated++
			continue
		}
		if b.MarkExpiringSoon(now) == nil {
			mutated++
		}
	}
	return mutated, nil
}

func (f *fakeStore) BeginTransaction(_ context.Context) (interface{}, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return newFakeTx(), nil
}

func (f *fakeStore) CommitTransaction(tx interface{}) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	ftx := tx.(*fakeTx)

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, b := range ftx.batches {
		f.batches[id] = b
	}
	for id, s := range ftx.sessions {
		f.sessions[id] = s
	}
	f.log = append(f.log, ftx.log...)
	f.commits++
	return nil
}

func (f *fakeStore) RollbackTransaction(_ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	return nil
}

// SessionRepository

func (f *fakeStore) GetSession(_ context.Context, sessionID uuid.UUID) (*models.CookingSession, error) {
	return f.sessionByID(sessionID), nil
}

func (f *fakeStore) GetSessionForUpdate(_ context.Context, tx interface{}, sessionID uuid.UUID) (*models.CookingSession, error) {
	ftx := tx.(*fakeTx)
	if staged, ok := ftx.sessions[sessionID]; ok {
		return cloneSession(staged), nil
	}
	return f.sessionByID(sessionID), nil
}

func (f *fakeStore) CreateSession(_ context.Context, session *models.CookingSession) error {
	f.putSession(session)
	return nil
}

func (f *fakeStore) SaveSession(_ context.Context, session *models.CookingSession) error {
	f.putSession(session)
	return nil
}

func (f *fakeStore) SaveSessionInTx(_ context.Context, tx interface{}, session *models.CookingSession) error {
	ftx := tx.(*fakeTx)
	ftx.sessions[session.ID()] = cloneSession(session)
	return nil
}

func (f *fakeStore) AppendConsumptionLog(_ context.Context, tx interface{}, sessionID uuid.UUID, stepID string, entries []models.StepConsumption) error {
	ftx := tx.(*fakeTx)
	ftx.log = append(ftx.log, logEntry{sessionID: sessionID, stepID: stepID, entries: entries})
	return nil
}

// fakeIdempotencyRepo keeps records in memory keyed by the tuple.
type fakeIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyRecord
	getErr  error
	putErr  error
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{records: make(map[string]*models.IdempotencyRecord)}
}

func tupleKey(key, callerID, endpoint string) string {
	return fmt.Sprintf("%s|%s|%s", key, callerID, endpoint)
}

func (f *fakeIdempotencyRepo) Get(_ context.Context, key, callerID, endpoint string) (*models.IdempotencyRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.records[tupleKey(key, callerID, endpoint)]
	if !ok || !record.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	out := *record
	return &out, nil
}

func (f *fakeIdempotencyRepo) Put(_ context.Context, record *models.IdempotencyRecord) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := *record
	f.records[tupleKey(record.Key, record.CallerID, record.Endpoint)] = &out
	return nil
}

func (f *fakeIdempotencyRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var deleted int64
	for k, record := range f.records {
		if !record.ExpiresAt.After(now) {
			delete(f.records, k)
			deleted++
		}
	}
	return deleted, nil
}

// fakeCache is an in-memory CacheInterface.
type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, value)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = data
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeCache) DeletePattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.data {
		if strings.HasPrefix(key, prefix) {
			delete(f.data, key)
		}
	}
	f.deletes = append(f.deletes, pattern)
	return nil
}

// fakeMetrics counts recorded business metrics.
type fakeMetrics struct {
	mu           sync.Mutex
	consumptions map[string]int
	sweeps       int
	sweepMutated int64
	idempotency  map[string]int
	cacheHits    int
	cacheMisses  int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		consumptions: make(map[string]int),
		idempotency:  make(map[string]int),
	}
}

func (f *fakeMetrics) RecordConsumption(_ int, _ time.Duration, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumptions[status]++
}

func (f *fakeMetrics) RecordSweep(mutated int64, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	f.sweepMutated += mutated
}

func (f *fakeMetrics) RecordIdempotency(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idempotency[outcome]++
}

func (f *fakeMetrics) RecordCacheHit(_ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheHits++
}

func (f *fakeMetrics) RecordCacheMiss(_ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheMisses++
}

func newTestDeps(store *fakeStore, idem *fakeIdempotencyRepo, cache CacheInterface, metrics MetricsInterface) *ServiceDependencies {
	return &ServiceDependencies{
		Repositories: &RepositoryInterfaces{
			Batch:       store,
			Session:     store,
			Idempotency: idem,
		},
		Cache:   cache,
		Metrics: metrics,
		Logger:  slog.Default(),
	}
}

var errBoom = errors.New("boom")
