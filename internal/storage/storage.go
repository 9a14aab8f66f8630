// Package storage keeps the append-only record of successful downloads of a
// session and opens stored files for retrieval.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"vidbatch/internal/config"
	"vidbatch/internal/entity"
	"vidbatch/internal/errs"
	"vidbatch/internal/observability"

	"github.com/google/uuid"
)

// Store is the result store of one session. Entries are only ever appended.
type Store struct {
	log     *slog.Logger
	cfg     *config.Config
	metrics *observability.Metrics
	dir     string

	mu       sync.RWMutex
	entries  []entity.Entry
	byID     map[string]int // entry ID : index in entries
	reserved int            // last ordinal handed out by Reserve
}

// New creates an empty store whose files live in dir.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics, dir string) *Store {
	return &Store{
		log:     log.With(slog.String("package", "storage"), slog.String("dir", dir)),
		cfg:     cfg,
		metrics: metrics,
		dir:     dir,
		byID:    make(map[string]int),
	}
}

// Dir returns the output directory of the store.
func (stg *Store) Dir() string {
	return stg.dir
}

// ContentType returns the media type served for stored files.
func (stg *Store) ContentType() string {
	return stg.cfg.Dir.ContentType
}

// Reserve hands out n consecutive ordinals and returns the first one. Ordinals
// start at 1 and are never handed out twice, whether or not the download they
// were reserved for succeeds.
func (stg *Store) Reserve(n int) int {
	stg.mu.Lock()
	defer stg.mu.Unlock()

	first := stg.reserved + 1
	if n > 0 {
		stg.reserved += n
	}

	return first
}

// Destination returns the output path for an ordinal: <dir>/<prefix><ordinal><ext>.
func (stg *Store) Destination(ordinal int) string {
	name := stg.cfg.Dir.FilePrefix + strconv.Itoa(ordinal) + stg.cfg.Dir.FileExtension

	return filepath.Join(stg.dir, name)
}

// NewEntry builds the store entry for a successful outcome.
func NewEntry(outcome entity.Outcome) entity.Entry {
	return entity.Entry{
		ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(outcome.OutputPath)).String(),
		URL:         outcome.URL,
		OutputPath:  outcome.OutputPath,
		DisplayName: outcome.DisplayName,
		CreatedAt:   time.Now(),
	}
}

// Append adds entries in the given order. Either all entries are stored or none.
func (stg *Store) Append(ctx context.Context, entries ...entity.Entry) error {
	for _, entry := range entries {
		if entry.ID == "" {
			return errs.ErrEntryIDEmpty
		}
	}

	stg.mu.Lock()
	defer stg.mu.Unlock()

	for _, entry := range entries {
		stg.byID[entry.ID] = len(stg.entries)
		stg.entries = append(stg.entries, entry)

		stg.log.DebugContext(ctx, "entry stored", slog.Any("entry", entry))
	}

	stg.metrics.AddStoredResults(len(entries))

	return nil
}

// List returns a copy of all entries in append order.
func (stg *Store) List(_ context.Context) []entity.Entry {
	stg.mu.RLock()
	defer stg.mu.RUnlock()

	out := make([]entity.Entry, len(stg.entries))
	copy(out, stg.entries)

	return out
}

// Len returns the number of stored entries.
func (stg *Store) Len() int {
	stg.mu.RLock()
	defer stg.mu.RUnlock()

	return len(stg.entries)
}

// Get returns the entry with the given ID.
func (stg *Store) Get(_ context.Context, id string) (entity.Entry, error) {
	if id == "" {
		return entity.Entry{}, errs.ErrEntryIDEmpty
	}

	stg.mu.RLock()
	defer stg.mu.RUnlock()

	idx, ok := stg.byID[id]
	if !ok {
		return entity.Entry{}, errs.ErrEntryNotFound
	}

	return stg.entries[idx], nil
}

// Open opens the file of a stored entry for reading. The caller closes it.
func (stg *Store) Open(ctx context.Context, id string) (*os.File, entity.Entry, error) {
	entry, err := stg.Get(ctx, id)
	if err != nil {
		return nil, entity.Entry{}, err
	}

	file, err := os.Open(entry.OutputPath)
	if err != nil {
		return nil, entry, fmt.Errorf("open %q: %w", entry.DisplayName, err)
	}

	return file, entry, nil
}
