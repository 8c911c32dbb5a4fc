package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps all records in process memory. It backs tests and the
// stub server's default mode when no database path is given.
type MemoryStore struct {
	mu         sync.RWMutex
	singletons map[string]map[string]interface{}
	plans      map[string]map[string]planEntry
	records    map[string]map[string]map[string]interface{}
}

type planEntry struct {
	content   string
	updatedAt string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		singletons: make(map[string]map[string]interface{}),
		plans:      make(map[string]map[string]planEntry),
		records:    make(map[string]map[string]map[string]interface{}),
	}
}

// Apply applies one canonical payload.
func (s *MemoryStore) Apply(ctx context.Context, payload map[string]interface{}) (string, error) {
	if err := ctxGuard(ctx); err != nil {
		return "", err
	}
	m, err := decodePayload(payload)
	if err != nil {
		return "", err
	}
	now := timestamp()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch m.kind {
	case mutateMergeSingleton:
		doc := s.singletons[m.resource]
		if doc == nil {
			doc = make(map[string]interface{})
		}
		for k, v := range m.object {
			doc[k] = v
		}
		doc["updated_at"] = now
		s.singletons[m.resource] = doc

	case mutateUpsertItems:
		for _, item := range m.items {
			id, _ := item["id"].(string)
			if id == "" {
				id = uuid.NewString()
			}
			s.putRecord(m.resource, id, item, now)
		}

	case mutateCreateItem:
		// Creates always mint a fresh id.
		for _, item := range m.items {
			s.putRecord(m.resource, uuid.NewString(), item, now)
		}

	case mutatePatchItem:
		id := m.ids[0]
		existing := s.records[m.resource][id]
		if existing == nil {
			return "", fmt.Errorf("%s %s not found", m.resource, id)
		}
		for k, v := range m.object {
			existing[k] = v
		}
		existing["updated_at"] = now

	case mutateDeleteItems:
		for _, id := range m.ids {
			delete(s.records[m.resource], id)
		}

	case mutateUpsertByDate:
		id := s.findByDate(m.resource, m.date)
		if id == "" {
			id = uuid.NewString()
		}
		item := cloneMap(m.object)
		item["record_date"] = m.date
		s.putRecord(m.resource, id, item, now)

	case mutateDeleteByDate:
		if id := s.findByDate(m.resource, m.date); id != "" {
			delete(s.records[m.resource], id)
		}

	case mutateSetPlan:
		if s.plans[m.planKind] == nil {
			s.plans[m.planKind] = make(map[string]planEntry)
		}
		content, _ := m.object["content"].(string)
		s.plans[m.planKind][m.date] = planEntry{content: content, updatedAt: now}

	case mutateDeletePlan:
		delete(s.plans[m.planKind], m.date)

	default:
		return "", fmt.Errorf("unhandled mutation kind %d", m.kind)
	}
	return m.summary, nil
}

// List returns one bounded page of a resource, newest first.
func (s *MemoryStore) List(ctx context.Context, resource string, opts ListOptions) ([]map[string]interface{}, error) {
	if err := ctxGuard(ctx); err != nil {
		return nil, err
	}
	limit := normalizeLimit(opts.Limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if kind, ok := planKinds[resource]; ok {
		rows := make([]map[string]interface{}, 0, len(s.plans[kind]))
		for date, entry := range s.plans[kind] {
			if !matchDate(date, opts) {
				continue
			}
			rows = append(rows, map[string]interface{}{
				"plan_date":  date,
				"content":    entry.content,
				"updated_at": entry.updatedAt,
			})
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i]["plan_date"].(string) > rows[j]["plan_date"].(string)
		})
		return trim(rows, limit), nil
	}
	if itemResources[resource] {
		rows := make([]map[string]interface{}, 0, len(s.records[resource]))
		for _, body := range s.records[resource] {
			if !matchDate(itemDate(body), opts) {
				continue
			}
			rows = append(rows, cloneMap(body))
		}
		sortRecordsByDate(rows)
		return trim(rows, limit), nil
	}
	if singletonResources[resource] {
		doc := s.singletons[resource]
		if doc == nil {
			return []map[string]interface{}{}, nil
		}
		return []map[string]interface{}{cloneMap(doc)}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedResource, resource)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) putRecord(resource, id string, item map[string]interface{}, now string) {
	if s.records[resource] == nil {
		s.records[resource] = make(map[string]map[string]interface{})
	}
	body := cloneMap(item)
	body["id"] = id
	body["updated_at"] = now
	s.records[resource][id] = body
}

func (s *MemoryStore) findByDate(resource, date string) string {
	for id, body := range s.records[resource] {
		if itemDate(body) == date {
			return id
		}
	}
	return ""
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func trim(rows []map[string]interface{}, limit int) []map[string]interface{} {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z")
}
