package usecase

import (
	"sync"
	"time"
)

// IndexState — разделяемое хендлерами состояние поиска: имя активной
// коллекции, счетчик точек и готовность энкодера. Перестроение индекса
// подменяет коллекцию атомарно, запросы в полете дочитывают старую.
type IndexState struct {
	mu           sync.RWMutex
	collection   string
	points       uint64
	builtAt      time.Time
	encoderReady bool
}

func NewIndexState() *IndexState {
	return &IndexState{}
}

// Activate делает коллекцию активной для всех последующих запросов.
func (s *IndexState) Activate(collection string, points uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = collection
	s.points = points
	s.builtAt = time.Now().UTC()
}

// ActiveCollection возвращает имя активной коллекции и признак готовности индекса.
func (s *IndexState) ActiveCollection() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection, s.collection != ""
}

func (s *IndexState) Points() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points
}

func (s *IndexState) BuiltAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builtAt
}

func (s *IndexState) SetEncoderReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoderReady = ready
}

func (s *IndexState) EncoderReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoderReady
}
