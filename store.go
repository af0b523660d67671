package revsearch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/revsearch/internal/filter"
	"github.com/hupe1980/revsearch/internal/metalog"
	"github.com/hupe1980/revsearch/internal/vectorlog"
)

// File names inside a store directory.
const (
	VectorFile   = "reviews.vectors"
	HeaderFile   = VectorFile + vectorlog.HeaderSuffix
	MetadataFile = "reviews.jsonl"
)

// RepairReport describes what Open reconciled.
type RepairReport struct {
	TornVectorBytes   int64 `json:"torn_vector_bytes"`
	TornMetadataBytes int64 `json:"torn_metadata_bytes"`
	DroppedVectors    int   `json:"dropped_vectors"`
	DroppedMetadata   int   `json:"dropped_metadata"`
	Count             int   `json:"count"`
}

// Changed reports whether anything was modified.
func (r RepairReport) Changed() bool {
	return r.TornVectorBytes > 0 || r.TornMetadataBytes > 0 || r.DroppedVectors > 0 || r.DroppedMetadata > 0
}

// Store is a directory holding a vector log and its metadata log.
type Store struct {
	mu      sync.RWMutex
	dir     string
	vectors *vectorlog.Log
	meta    *metalog.Log[Review]
	filter  *filter.Index
	opts    options
	logger  *Logger
	metrics MetricsCollector
	repair  RepairReport
	closed  bool
}

// Open opens or creates the store in dir for embeddings of length dim.
func Open(dir string, dim int, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)
	ctx := context.Background()

	s, err := open(ctx, dir, dim, opts)
	if err != nil {
		opts.logger.LogOpen(ctx, dir, 0, err)
		return nil, err
	}
	n, _ := s.meta.Len()
	opts.logger.LogOpen(ctx, dir, n, nil)
	return s, nil
}

func open(ctx context.Context, dir string, dim int, opts options) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidArgument, dim)
	}
	if err := opts.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	vectors, err := vectorlog.Open(filepath.Join(dir, VectorFile), dim, func(o *vectorlog.Options) {
		o.FileSystem = opts.fs
		o.Scale = opts.scale
		o.Durability = opts.durability
		o.Lock = opts.lock
	})
	if err != nil {
		return nil, translateError(err)
	}

	meta, err := metalog.Open[Review](filepath.Join(dir, MetadataFile), func(o *metalog.Options) {
		o.FileSystem = opts.fs
		o.Codec = opts.codec
		o.Sync = opts.durability == DurabilitySync
	})
	if err != nil {
		_ = vectors.Close()
		return nil, translateError(err)
	}

	s := &Store{
		dir:     dir,
		vectors: vectors,
		meta:    meta,
		filter:  filter.New(),
		opts:    opts,
		logger:  opts.logger.WithDimension(dim),
		metrics: opts.metricsCollector,
	}

	if err := s.reconcile(ctx); err != nil {
		_ = s.closeLogs()
		return nil, err
	}
	if err := s.buildFilter(); err != nil {
		_ = s.closeLogs()
		return nil, err
	}
	return s, nil
}

// reconcile brings both logs to the same record count.
func (s *Store) reconcile(ctx context.Context) error {
	size, err := s.vectors.Size()
	if err != nil {
		return translateError(err)
	}
	var r RepairReport
	r.TornVectorBytes = size % int64(s.vectors.Dim())
	r.TornMetadataBytes = s.meta.TornBytes()

	nv := int(size / int64(s.vectors.Dim()))
	nm, err := s.meta.Len()
	if err != nil {
		return translateError(err)
	}
	if nv > nm {
		r.DroppedVectors = nv - nm
	} else {
		r.DroppedMetadata = nm - nv
	}
	r.Count = min(nv, nm)

	if !r.Changed() {
		return nil
	}
	if !s.opts.repair {
		return fmt.Errorf("%w: %d vectors, %d metadata records, %d+%d torn bytes",
			ErrInconsistent, nv, nm, r.TornVectorBytes, r.TornMetadataBytes)
	}

	if _, err := s.vectors.TrimPartial(); err != nil {
		return translateError(err)
	}
	if _, err := s.meta.TrimPartial(); err != nil {
		return translateError(err)
	}
	if r.DroppedVectors > 0 {
		if err := s.vectors.Truncate(r.Count); err != nil {
			return translateError(err)
		}
	}
	if r.DroppedMetadata > 0 {
		if err := s.meta.Truncate(r.Count); err != nil {
			return translateError(err)
		}
	}

	s.repair = r
	s.logger.LogRepair(ctx, r)
	s.metrics.RecordRepair(r)
	return nil
}

func (s *Store) buildFilter() error {
	return translateError(s.meta.Scan(func(i int, r Review) error {
		s.filter.Add(uint32(i), r.Rating, r.ProductID)
		return nil
	}))
}

// Insert appends vec and its review and returns the review's logical id.
// An empty review ID is replaced by a random UUID.
func (s *Store) Insert(ctx context.Context, vec []float32, r Review) (uint64, error) {
	start := time.Now()

	id, err := s.insert(ctx, vec, r)

	s.metrics.RecordInsert(time.Since(start), err)
	s.logger.LogInsert(ctx, id, len(vec), err)
	return id, err
}

func (s *Store) insert(ctx context.Context, vec []float32, r Review) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(vec) != s.vectors.Dim() {
		return 0, &ErrDimensionMismatch{Expected: s.vectors.Dim(), Actual: len(vec)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	return s.appendLocked(vec, r)
}

func (s *Store) appendLocked(vec []float32, r Review) (uint64, error) {
	n, err := s.meta.Len()
	if err != nil {
		return 0, translateError(err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	if err := s.vectors.Append(vec); err != nil {
		return 0, translateError(err)
	}
	if err := s.meta.Append(r); err != nil {
		if terr := s.vectors.Truncate(n); terr != nil {
			return 0, fmt.Errorf("%w: %w", ErrInconsistent, errors.Join(translateError(err), terr))
		}
		return 0, translateError(err)
	}

	s.filter.Add(uint32(n), r.Rating, r.ProductID)
	return uint64(n), nil
}

// InsertBatch appends vecs and reviews pairwise under a single lock
// acquisition. Every vector is validated before the first append. On an I/O
// failure the ids appended so far are returned together with the error.
func (s *Store) InsertBatch(ctx context.Context, vecs [][]float32, reviews []Review) ([]uint64, error) {
	start := time.Now()

	ids, err := s.insertBatch(ctx, vecs, reviews)

	s.metrics.RecordBatchInsert(len(vecs), len(vecs)-len(ids), time.Since(start))
	s.logger.LogBatchInsert(ctx, len(vecs), len(vecs)-len(ids))
	return ids, err
}

func (s *Store) insertBatch(ctx context.Context, vecs [][]float32, reviews []Review) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vecs) != len(reviews) {
		return nil, fmt.Errorf("%w: %d vectors for %d reviews", ErrInvalidArgument, len(vecs), len(reviews))
	}
	dim := s.vectors.Dim()
	for _, v := range vecs {
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	ids := make([]uint64, 0, len(vecs))
	for i, v := range vecs {
		id, err := s.appendLocked(v, reviews[i])
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Get returns the review with logical id.
func (s *Store) Get(id uint64) (Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Review{}, ErrClosed
	}
	n, err := s.meta.Len()
	if err != nil {
		return Review{}, translateError(err)
	}
	if id >= uint64(n) {
		return Review{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	r, err := s.meta.Get(int(id))
	return r, translateError(err)
}

// Len returns the number of stored reviews. It is derived from the vector
// log size on every call.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	n, err := s.vectors.Len()
	return n, translateError(err)
}

// Dimension returns the embedding dimension.
func (s *Store) Dimension() int { return s.vectors.Dim() }

// Scale returns the quantization scale of the vector log.
func (s *Store) Scale() float32 { return s.vectors.Scale() }

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// LastRepair returns what Open reconciled, if anything.
func (s *Store) LastRepair() RepairReport { return s.repair }

// Stats describes a store.
type Stats struct {
	Count         int     `json:"count"`
	Dimension     int     `json:"dimension"`
	Scale         float32 `json:"scale"`
	Durability    string  `json:"durability"`
	VectorBytes   int64   `json:"vector_bytes"`
	MetadataBytes int64   `json:"metadata_bytes"`
	Ratings       []int   `json:"ratings"`
	Products      int     `json:"products"`
}

// Stats returns a snapshot of store statistics.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Stats{}, ErrClosed
	}
	size, err := s.vectors.Size()
	if err != nil {
		return Stats{}, translateError(err)
	}
	return Stats{
		Count:         int(size / int64(s.vectors.Dim())),
		Dimension:     s.vectors.Dim(),
		Scale:         s.vectors.Scale(),
		Durability:    s.opts.durability.String(),
		VectorBytes:   size,
		MetadataBytes: s.meta.Size(),
		Ratings:       s.filter.Ratings(),
		Products:      s.filter.Products(),
	}, nil
}

// SnapshotFile is one file of a consistent store snapshot.
type SnapshotFile struct {
	Name string
	Path string
	Size int64
}

// Snapshot calls fn with the store files while holding the read lock, so no
// insert can change them. Readers must copy exactly Size bytes of each file.
func (s *Store) Snapshot(ctx context.Context, fn func(ctx context.Context, files []SnapshotFile) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	size, err := s.vectors.Size()
	if err != nil {
		return translateError(err)
	}
	files := []SnapshotFile{
		{Name: VectorFile, Path: s.vectors.Path(), Size: size},
		{Name: HeaderFile, Path: s.vectors.HeaderPath(), Size: vectorlog.HeaderSize},
		{Name: MetadataFile, Path: s.meta.Path(), Size: s.meta.Size()},
	}
	err = fn(ctx, files)
	s.logger.LogSnapshot(ctx, s.dir, err)
	return err
}
