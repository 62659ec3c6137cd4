package service

import (
	"maps"
	"sort"
	"sync"
)

// Record is one stored resource. The "id" field is owned by the store.
type Record map[string]any

// Store keeps records in memory. Ids start at 1 and are never reused.
type Store struct {
	mutex   sync.RWMutex
	records map[int]Record
	nextID  int
}

func NewStore() *Store {
	return &Store{
		records: make(map[int]Record),
		nextID:  1,
	}
}

// List returns every record ordered by id.
func (s *Store) List() []Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]int, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, maps.Clone(s.records[id]))
	}
	return out
}

func (s *Store) Get(id int) (Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return maps.Clone(r), true
}

func (s *Store) Create(fields Record) Record {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.nextID
	s.nextID++

	r := maps.Clone(fields)
	if r == nil {
		r = make(Record)
	}
	r["id"] = id
	s.records[id] = r

	return maps.Clone(r)
}

// Update merges fields into the record. The id cannot be changed.
func (s *Store) Update(id int, fields Record) (Record, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, false
	}

	maps.Copy(r, fields)
	r["id"] = id

	return maps.Clone(r), true
}

func (s *Store) Delete(id int) (Record, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	delete(s.records, id)

	return r, true
}
