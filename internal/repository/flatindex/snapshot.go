package flatindex

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/DRSN-tech/search-backend/internal/domain"
	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/jimlawless/whereami"
)

type snapshotPoint struct {
	ID        string         `json:"id"`
	ProductID int64          `json:"product_id"`
	Vector    []float32      `json:"vector"`
	Payload   domain.Payload `json:"payload"`
}

type snapshot struct {
	Collections map[string][]snapshotPoint `json:"collections"`
}

// SaveSnapshot пишет все коллекции в JSON-файл. Запись идет во временный
// файл с последующим переименованием, чтобы не оставить полуснапшот.
func (f *EmbeddingRepo) SaveSnapshot(path string) error {
	f.mu.RLock()
	snap := snapshot{Collections: make(map[string][]snapshotPoint, len(f.collections))}
	for name, points := range f.collections {
		records := make([]snapshotPoint, 0, len(points))
		for _, p := range points {
			records = append(records, snapshotPoint{
				ID:        p.ID,
				ProductID: p.ProductID,
				Vector:    p.Vector,
				Payload:   p.Payload,
			})
		}
		snap.Collections[name] = records
	}
	f.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// LoadSnapshot восстанавливает коллекции из JSON-файла.
// Отсутствие файла не ошибка: индекс просто стартует пустым.
func (f *EmbeddingRepo) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	collections := make(map[string]map[string]*point, len(snap.Collections))
	for name, records := range snap.Collections {
		points := make(map[string]*point, len(records))
		for _, record := range records {
			points[record.ID] = &point{
				ID:        record.ID,
				ProductID: record.ProductID,
				Vector:    record.Vector,
				Payload:   record.Payload,
			}
		}
		collections[name] = points
	}

	f.mu.Lock()
	f.collections = collections
	f.mu.Unlock()

	return nil
}
