package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"vigil/internal/infrastructure/errors"
	"vigil/internal/repository"
	"vigil/internal/types"
)

// MockRepository implements ActivityRepository, FeedReader and
// FeedWriter for testing.
type MockRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*types.ActivityRecord
	earned  map[string]types.EarnedTrophy
	jsonKV  map[string]string

	consumption []types.ConsumptionEntry
	library     map[int64]*types.LibraryItem
	wallet      []types.WalletTransaction
	overview    *types.OverviewStats

	insertCallCount int
	extendCallCount int
	closeCallCount  int
	queryCallCount  int
	earnedCallCount int
	jsonCallCount   int

	shouldFailWrite      bool
	shouldFailRead       bool
	shouldFailTx         bool
	shouldFailEarnedRead bool
}

// NewMockRepository creates a new mock repository for testing.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		nextID:  1,
		records: make(map[int64]*types.ActivityRecord),
		earned:  make(map[string]types.EarnedTrophy),
		jsonKV:  make(map[string]string),
		library: make(map[int64]*types.LibraryItem),
	}
}

// SetFailureModes configures the mock to simulate failures.
func (m *MockRepository) SetFailureModes(write, read, tx bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailWrite = write
	m.shouldFailRead = read
	m.shouldFailTx = tx
}

// SetEarnedReadFailure makes only ListEarned fail, leaving every other
// read working.
func (m *MockRepository) SetEarnedReadFailure(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailEarnedRead = fail
}

// GetCallCounts returns the number of times each operation group was
// called.
func (m *MockRepository) GetCallCounts() (insert, extend, closeCalls, query, earned, jsonCalls int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.insertCallCount, m.extendCallCount, m.closeCallCount,
		m.queryCallCount, m.earnedCallCount, m.jsonCallCount
}

// SetOverview seeds the precomputed overview feed.
func (m *MockRepository) SetOverview(overview *types.OverviewStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overview = overview
}

// InsertOpenRecord implements ActivityRepository.
func (m *MockRepository) InsertOpenRecord(ctx context.Context, record *types.ActivityRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertCallCount++
	if m.shouldFailWrite {
		return 0, errors.NewRepositoryError("InsertOpenRecord", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	id := m.nextID
	m.nextID++
	stored := *record
	stored.ID = id
	stored.EndedAt = nil
	m.records[id] = &stored
	return id, nil
}

// ExtendRecord implements ActivityRepository.
func (m *MockRepository) ExtendRecord(ctx context.Context, id int64, lastSeen time.Time, activeDelta, idleDelta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.extendCallCount++
	if m.shouldFailWrite {
		return errors.NewRepositoryError("ExtendRecord", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	record, exists := m.records[id]
	if !exists || record.EndedAt != nil {
		return errors.NewRepositoryError("ExtendRecord", fmt.Errorf("open record %d not found", id), errors.ErrCodeNotFound)
	}
	record.LastSeenAt = lastSeen
	record.SecondsActive += activeDelta
	record.IdleSeconds += idleDelta
	return nil
}

// CloseRecord implements ActivityRepository.
func (m *MockRepository) CloseRecord(ctx context.Context, id int64, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCallCount++
	if m.shouldFailWrite {
		return errors.NewRepositoryError("CloseRecord", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	record, exists := m.records[id]
	if !exists || record.EndedAt != nil {
		return errors.NewRepositoryError("CloseRecord", fmt.Errorf("open record %d not found", id), errors.ErrCodeNotFound)
	}
	ended := endedAt
	record.EndedAt = &ended
	record.LastSeenAt = ended
	return nil
}

// CloseDanglingRecords implements ActivityRepository.
func (m *MockRepository) CloseDanglingRecords(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailWrite {
		return 0, errors.NewRepositoryError("CloseDanglingRecords", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	var closed int64
	for _, record := range m.records {
		if record.EndedAt == nil {
			ended := record.LastSeenAt
			record.EndedAt = &ended
			closed++
		}
	}
	return closed, nil
}

// QueryRecordsSince implements ActivityRepository.
func (m *MockRepository) QueryRecordsSince(ctx context.Context, since time.Time) ([]types.ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryCallCount++
	if m.shouldFailRead {
		return nil, errors.NewRepositoryError("QueryRecordsSince", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}

	var result []types.ActivityRecord
	for _, record := range m.records {
		if record.EndedAt == nil || !record.LastSeenAt.Before(since) {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}

// RecentRecords implements ActivityRepository.
func (m *MockRepository) RecentRecords(ctx context.Context, limit int) ([]types.ActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shouldFailRead {
		return nil, errors.NewRepositoryError("RecentRecords", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}

	result := make([]types.ActivityRecord, 0, len(m.records))
	for _, record := range m.records {
		result = append(result, *record)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteRecordsBefore implements ActivityRepository.
func (m *MockRepository) DeleteRecordsBefore(ctx context.Context, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailWrite {
		return errors.NewRepositoryError("DeleteRecordsBefore", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	for id, record := range m.records {
		if record.EndedAt != nil && record.EndedAt.Before(cutoff) {
			delete(m.records, id)
		}
	}
	return nil
}

// ListEarned implements ActivityRepository.
func (m *MockRepository) ListEarned(ctx context.Context) ([]types.EarnedTrophy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.earnedCallCount++
	if m.shouldFailRead || m.shouldFailEarnedRead {
		return nil, errors.NewRepositoryError("ListEarned", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}

	result := make([]types.EarnedTrophy, 0, len(m.earned))
	for _, trophy := range m.earned {
		result = append(result, trophy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EarnedAt.Before(result[j].EarnedAt)
	})
	return result, nil
}

// UpsertEarned implements ActivityRepository. The earlier of the stored
// and the incoming earned timestamps wins, matching the SQLite
// implementation.
func (m *MockRepository) UpsertEarned(ctx context.Context, earned types.EarnedTrophy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.earnedCallCount++
	if m.shouldFailWrite {
		return errors.NewRepositoryError("UpsertEarned", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	existing, exists := m.earned[earned.ID]
	if !exists || earned.EarnedAt.Before(existing.EarnedAt) {
		m.earned[earned.ID] = earned
	}
	return nil
}

// DeleteAllEarned implements ActivityRepository.
func (m *MockRepository) DeleteAllEarned(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailWrite {
		return errors.NewRepositoryError("DeleteAllEarned", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}
	m.earned = make(map[string]types.EarnedTrophy)
	return nil
}

// GetJSON implements ActivityRepository.
func (m *MockRepository) GetJSON(ctx context.Context, key string, out interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jsonCallCount++
	if m.shouldFailRead {
		return errors.NewRepositoryError("GetJSON", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}

	raw, exists := m.jsonKV[key]
	if !exists {
		return errors.NewRepositoryError("GetJSON", fmt.Errorf("key %q not found", key), errors.ErrCodeNotFound)
	}
	return json.Unmarshal([]byte(raw), out)
}

// SetJSON implements ActivityRepository.
func (m *MockRepository) SetJSON(ctx context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jsonCallCount++
	if m.shouldFailWrite {
		return errors.NewRepositoryError("SetJSON", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return errors.NewRepositoryError("SetJSON", err, errors.ErrCodeValidation)
	}
	m.jsonKV[key] = string(raw)
	return nil
}

// WithTransaction implements ActivityRepository.
func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repo repository.ActivityRepository) error) error {
	if m.shouldFailTx {
		return errors.NewRepositoryError("WithTransaction", fmt.Errorf("mock transaction failure"), errors.ErrCodeTransaction)
	}
	return fn(m)
}

// ConsumptionEntriesSince implements FeedReader.
func (m *MockRepository) ConsumptionEntriesSince(ctx context.Context, since time.Time) ([]types.ConsumptionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shouldFailRead {
		return nil, errors.NewRepositoryError("ConsumptionEntriesSince", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}

	var result []types.ConsumptionEntry
	for _, entry := range m.consumption {
		if !entry.Timestamp.Before(since) {
			result = append(result, entry)
		}
	}
	return result, nil
}

// ListLibraryItems implements FeedReader.
func (m *MockRepository) ListLibraryItems(ctx context.Context) ([]types.LibraryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shouldFailRead {
		return nil, errors.NewRepositoryError("ListLibraryItems", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}

	result := make([]types.LibraryItem, 0, len(m.library))
	for _, item := range m.library {
		result = append(result, *item)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AddedAt.Before(result[j].AddedAt)
	})
	return result, nil
}

// WalletTransactionsSince implements FeedReader.
func (m *MockRepository) WalletTransactionsSince(ctx context.Context, since time.Time) ([]types.WalletTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shouldFailRead {
		return nil, errors.NewRepositoryError("WalletTransactionsSince", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}

	var result []types.WalletTransaction
	for _, tx := range m.wallet {
		if !tx.Timestamp.Before(since) {
			result = append(result, tx)
		}
	}
	return result, nil
}

// WalletBalance implements FeedReader.
func (m *MockRepository) WalletBalance(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shouldFailRead {
		return 0, errors.NewRepositoryError("WalletBalance", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}

	var balance int64
	for _, tx := range m.wallet {
		switch tx.Type {
		case types.WalletEarn:
			balance += tx.Amount
		case types.WalletSpend:
			balance -= tx.Amount
		}
	}
	return balance, nil
}

// OverviewStats implements FeedReader.
func (m *MockRepository) OverviewStats(ctx context.Context, now time.Time) (*types.OverviewStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shouldFailRead {
		return nil, errors.NewRepositoryError("OverviewStats", fmt.Errorf("mock read failure"), errors.ErrCodeConnection)
	}
	if m.overview == nil {
		return &types.OverviewStats{}, nil
	}
	overview := *m.overview
	return &overview, nil
}

// AddConsumptionEntry implements FeedWriter.
func (m *MockRepository) AddConsumptionEntry(ctx context.Context, entry types.ConsumptionEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailWrite {
		return 0, errors.NewRepositoryError("AddConsumptionEntry", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	entry.ID = m.nextID
	m.nextID++
	m.consumption = append(m.consumption, entry)
	return entry.ID, nil
}

// AddLibraryItem implements FeedWriter.
func (m *MockRepository) AddLibraryItem(ctx context.Context, item types.LibraryItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailWrite {
		return 0, errors.NewRepositoryError("AddLibraryItem", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	item.ID = m.nextID
	m.nextID++
	stored := item
	m.library[item.ID] = &stored
	return item.ID, nil
}

// MarkLibraryItemConsumed implements FeedWriter.
func (m *MockRepository) MarkLibraryItemConsumed(ctx context.Context, id int64, consumedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailWrite {
		return errors.NewRepositoryError("MarkLibraryItemConsumed", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	item, exists := m.library[id]
	if !exists {
		return errors.NewRepositoryError("MarkLibraryItemConsumed", fmt.Errorf("library item %d not found", id), errors.ErrCodeNotFound)
	}
	consumed := consumedAt
	item.ConsumedAt = &consumed
	return nil
}

// AddWalletTransaction implements FeedWriter.
func (m *MockRepository) AddWalletTransaction(ctx context.Context, tx types.WalletTransaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailWrite {
		return 0, errors.NewRepositoryError("AddWalletTransaction", fmt.Errorf("mock write failure"), errors.ErrCodeConnection)
	}

	tx.ID = m.nextID
	m.nextID++
	m.wallet = append(m.wallet, tx)
	return tx.ID, nil
}
