package hivemind

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
)

// SQLiteStore implements Store on a SQLite database so learnings survive
// engine restarts. The path ":memory:" creates a throwaway database.
type SQLiteStore struct {
	db       *sql.DB
	mu       sync.Mutex
	path     string
	capacity int

	initialized sync.Once
}

// NewSQLiteStore opens (or creates) the database at path. Non-positive
// capacities fall back to DefaultCapacity.
func NewSQLiteStore(path string, capacity int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.PersistenceUnavailable, "failed to open knowledge database"),
			errors.Fields{"path": path},
		)
	}
	// Writes are serialized through the store mutex, and a ":memory:"
	// database only exists on a single connection.
	db.SetMaxOpenConns(1)

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	store := &SQLiteStore{
		db:       db,
		path:     path,
		capacity: capacity,
	}
	if err := store.ensureInitialized(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		// Enable WAL mode for better concurrency
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.PersistenceUnavailable, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS knowledge_items (
            id TEXT PRIMARY KEY,
            source_chromosome_id TEXT NOT NULL,
            generation INTEGER NOT NULL,
            content TEXT NOT NULL,
            tags TEXT NOT NULL,
            novelty_score REAL NOT NULL,
            reference_count INTEGER NOT NULL,
            created_at DATETIME NOT NULL
        );

        CREATE INDEX IF NOT EXISTS idx_knowledge_items_created_at
        ON knowledge_items(created_at);
        `

		if _, err := s.db.Exec(query); err != nil {
			initErr = errors.WithFields(
				errors.Wrap(err, errors.PersistenceUnavailable, "failed to initialize knowledge schema"),
				errors.Fields{"query": query},
			)
			return
		}
	})
	return initErr
}

// StoreIfNovel implements Store. The similarity scan and the insert (or
// ReferenceCount bump) run under one lock and one transaction.
func (s *SQLiteStore) StoreIfNovel(ctx context.Context, item KnowledgeItem, threshold float64) (bool, error) {
	if err := s.ensureInitialized(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.loadAll(ctx)
	if err != nil {
		return false, err
	}

	limit := 1 - threshold
	closest := -1
	closestSim := -1.0
	for i := range stored {
		sim := Similarity(item, stored[i])
		if sim > closestSim {
			closestSim = sim
			closest = i
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, errors.PersistenceUnavailable, "failed to begin transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logging.GetLogger().Error(ctx, "failed to rollback knowledge transaction: %v", err)
		}
	}()

	if closest >= 0 && closestSim >= limit {
		_, err = tx.ExecContext(ctx,
			"UPDATE knowledge_items SET reference_count = reference_count + 1 WHERE id = ?",
			stored[closest].ID)
		if err != nil {
			return false, errors.WithFields(
				errors.Wrap(err, errors.PersistenceUnavailable, "failed to bump reference count"),
				errors.Fields{"id": stored[closest].ID},
			)
		}
		if err = tx.Commit(); err != nil {
			return false, errors.Wrap(err, errors.PersistenceUnavailable, "failed to commit transaction")
		}
		return false, nil
	}

	item = sealed(item, time.Now())
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return false, errors.Wrap(err, errors.InvalidInput, "failed to encode tags")
	}

	_, err = tx.ExecContext(ctx, `
    INSERT INTO knowledge_items
        (id, source_chromosome_id, generation, content, tags, novelty_score, reference_count, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, item.ID, item.SourceChromosomeID, item.Generation, item.Content,
		string(tags), item.NoveltyScore, item.ReferenceCount, item.CreatedAt)
	if err != nil {
		return false, errors.WithFields(
			errors.Wrap(err, errors.PersistenceUnavailable, "failed to store knowledge item"),
			errors.Fields{"id": item.ID},
		)
	}

	if len(stored)+1 > s.capacity {
		_, err = tx.ExecContext(ctx, `
        DELETE FROM knowledge_items WHERE id = (
            SELECT id FROM knowledge_items
            ORDER BY reference_count ASC, created_at ASC, id ASC
            LIMIT 1
        )`)
		if err != nil {
			return false, errors.Wrap(err, errors.PersistenceUnavailable, "failed to evict knowledge item")
		}
	}

	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, errors.PersistenceUnavailable, "failed to commit transaction")
	}
	return true, nil
}

// GetRelevantKnowledge implements Store.
func (s *SQLiteStore) GetRelevantKnowledge(ctx context.Context, chrom *genome.Chromosome, maxResults int) ([]KnowledgeItem, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return rankByRelevance(stored, queryFor(chrom), maxResults), nil
}

// Len implements Store.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	if err := s.ensureInitialized(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_items").Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.PersistenceUnavailable, "failed to count knowledge items")
	}
	return n, nil
}

// Clear removes every stored item.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_items")
	if err != nil {
		return errors.Wrap(err, errors.PersistenceUnavailable, "failed to clear knowledge store")
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, errors.PersistenceUnavailable, "failed to close knowledge database")
	}
	return nil
}

// loadAll must be called with the lock held.
func (s *SQLiteStore) loadAll(ctx context.Context) ([]KnowledgeItem, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT id, source_chromosome_id, generation, content, tags, novelty_score, reference_count, created_at
    FROM knowledge_items ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.PersistenceUnavailable, "failed to load knowledge items")
	}
	defer rows.Close()

	var items []KnowledgeItem
	for rows.Next() {
		var it KnowledgeItem
		var tags string
		if err := rows.Scan(&it.ID, &it.SourceChromosomeID, &it.Generation, &it.Content,
			&tags, &it.NoveltyScore, &it.ReferenceCount, &it.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.PersistenceUnavailable, "failed to scan knowledge item")
		}
		if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.InvalidResponse, "failed to decode tags"),
				errors.Fields{"id": it.ID},
			)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.PersistenceUnavailable, "error iterating knowledge items")
	}
	return items, nil
}
