package ivfpq

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
	"github.com/catalyst-labs/filingrag/internal/logger"
)

// Ensure Index implements the port.
var _ driven.VectorIndex = (*Index)(nil)

// Default geometry. NList follows the sqrt-of-expected-corpus rule of
// thumb for a low-millions chunk corpus; TrainFactor is a tuning knob,
// not a contract (see Config).
const (
	DefaultNList       = 1000
	DefaultM           = 8
	DefaultNProbe      = 8
	DefaultTrainFactor = 40
	DefaultOverFetch   = 10
)

// Config describes the index geometry and artifact location.
type Config struct {
	// Dim is the embedding width. Must match the embedding model; a
	// mismatch against persisted artifacts fails construction.
	Dim int

	// Dir is the artifact directory.
	Dir string

	// NList is the number of IVF coarse cells.
	NList int

	// UsePQ enables product quantization. Leave off for small corpora
	// where the training minimum is unreachable or full precision is
	// affordable.
	UsePQ bool

	// M is the PQ subquantizer count; must divide Dim.
	M int

	// NProbe is the number of coarse cells visited per search.
	NProbe int

	// TrainFactor scales the deferred-training minimum:
	// TrainFactor*NList vectors must accumulate before codebooks are
	// fit (with a 256*M floor when PQ is enabled). The multiplier is a
	// heuristic, deliberately configurable.
	TrainFactor int

	// OverFetch multiplies k when pulling raw candidates, since
	// post-filtering can eliminate most of them.
	OverFetch int
}

func (c *Config) applyDefaults() error {
	if c.Dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if c.Dir == "" {
		return fmt.Errorf("%w: index directory required", domain.ErrInvalidInput)
	}
	if c.NList <= 0 {
		c.NList = DefaultNList
	}
	if c.M <= 0 {
		c.M = DefaultM
	}
	if c.NProbe <= 0 {
		c.NProbe = DefaultNProbe
	}
	if c.TrainFactor <= 0 {
		c.TrainFactor = DefaultTrainFactor
	}
	if c.OverFetch <= 0 {
		c.OverFetch = DefaultOverFetch
	}
	if c.UsePQ && c.Dim%c.M != 0 {
		return fmt.Errorf("%w: PQ subquantizers (%d) must divide dimension (%d)",
			domain.ErrInvalidInput, c.M, c.Dim)
	}
	return nil
}

// Index is the IVF(+PQ) vector index. It owns the chunk id space: ids
// are sequential int64s, strictly increasing, never reused.
//
// No internal locking is provided. One writer at a time; concurrent
// readers are safe only in the absence of a writer. Cross-process
// exclusion is the caller's job (see index.WriterLock).
type Index struct {
	cfg Config
	rng *rand.Rand

	trained   bool
	centroids [][]float32
	pq        *productQuantizer

	// Committed storage, addressed by position.
	vecs    [][]float32 // full-precision storage (UsePQ=false)
	codes   [][]byte    // PQ codes (UsePQ=true)
	cells   []int32     // coarse cell per position
	lists   [][]int32   // positions per coarse cell
	posToID []int64     // reverse map; -1 marks a hidden (removed) entry

	idToPos  map[int64]int32
	metadata map[int64]domain.ChunkMeta
	nextID   int64

	// Pending buffer, populated only while untrained.
	pendingVecs  [][]float32
	pendingMetas []domain.ChunkMeta

	artifactID uuid.UUID
}

// New creates the index, loading persisted artifacts from cfg.Dir when
// present. Corrupt or mutually inconsistent artifacts are logged loudly
// and replaced by a fresh empty index; a dimension mismatch between
// cfg.Dim and the persisted structure is a configuration error and
// fails construction.
func New(cfg Config) (*Index, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	idx := &Index{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		idToPos:    make(map[int64]int32),
		metadata:   make(map[int64]domain.ChunkMeta),
		artifactID: uuid.New(),
	}
	if cfg.UsePQ {
		idx.pq = newProductQuantizer(cfg.Dim, cfg.M)
	}
	idx.lists = make([][]int32, idx.cfg.NList)

	loaded, err := idx.load()
	if err != nil {
		return nil, err
	}
	if loaded {
		logger.Info("loaded index: %d vectors, %d chunks", len(idx.posToID), len(idx.metadata))
	} else {
		logger.Info("created new index: dim=%d nlist=%d pq=%t", cfg.Dim, idx.cfg.NList, cfg.UsePQ)
	}

	return idx, nil
}

// trainMinimum is the pending-buffer size that triggers codebook
// training.
func (idx *Index) trainMinimum() int {
	minTrain := idx.cfg.TrainFactor * idx.cfg.NList
	if idx.cfg.UsePQ && minTrain < pqKsub*idx.cfg.M {
		minTrain = pqKsub * idx.cfg.M
	}
	return minTrain
}

// Trained reports whether the codebooks have been fit.
func (idx *Index) Trained() bool { return idx.trained }

// Add appends vectors with their metadata.
//
// While untrained the inputs are buffered and the returned id slice is
// empty: ids are not assigned until the deferred training commit. The
// call that pushes the buffer past the training minimum fits the
// codebooks, commits the entire buffer in order, and returns the ids of
// its own vectors. Once trained, ids are returned immediately.
func (idx *Index) Add(ctx context.Context, vectors [][]float32, metas []domain.ChunkMeta) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vectors) != len(metas) {
		return nil, fmt.Errorf("%w: %d vectors but %d metadata entries",
			domain.ErrInvalidInput, len(vectors), len(metas))
	}
	for i, v := range vectors {
		if len(v) != idx.cfg.Dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index expects %d",
				domain.ErrDimensionMismatch, i, len(v), idx.cfg.Dim)
		}
	}

	now := time.Now().UTC()
	stamped := make([]domain.ChunkMeta, len(metas))
	for i, m := range metas {
		if m.IndexedAt.IsZero() {
			m.IndexedAt = now
		}
		stamped[i] = m
	}

	if idx.trained {
		return idx.commit(vectors, stamped), nil
	}

	for i, v := range vectors {
		idx.pendingVecs = append(idx.pendingVecs, append([]float32(nil), v...))
		idx.pendingMetas = append(idx.pendingMetas, stamped[i])
	}

	if len(idx.pendingVecs) < idx.trainMinimum() {
		logger.Debug("buffered %d vectors (pending=%d, training minimum=%d)",
			len(vectors), len(idx.pendingVecs), idx.trainMinimum())
		return []int64{}, nil
	}

	logger.Info("training index over %d pending vectors", len(idx.pendingVecs))
	idx.train()

	allIDs := idx.commit(idx.pendingVecs, idx.pendingMetas)
	idx.pendingVecs = nil
	idx.pendingMetas = nil

	// Only this call's vectors get their ids reported; earlier buffered
	// callers were already told their ids would arrive at commit.
	return allIDs[len(allIDs)-len(vectors):], nil
}

// train fits the coarse centroids (and PQ codebooks) in one batch over
// the pending buffer, then flips the index to Trained. Training happens
// at most once per index lifetime.
func (idx *Index) train() {
	idx.centroids = kmeans(idx.pendingVecs, idx.cfg.NList, idx.cfg.Dim, idx.rng)
	if idx.cfg.UsePQ {
		idx.pq.train(idx.pendingVecs, idx.rng)
	}
	idx.trained = true
}

// commit places vectors into the trained structure and assigns ids.
func (idx *Index) commit(vectors [][]float32, metas []domain.ChunkMeta) []int64 {
	ids := make([]int64, len(vectors))
	for i, v := range vectors {
		pos := int32(len(idx.posToID))
		cell := int32(nearestCentroid(idx.centroids, v))

		if idx.cfg.UsePQ {
			idx.codes = append(idx.codes, idx.pq.encode(v))
		} else {
			idx.vecs = append(idx.vecs, append([]float32(nil), v...))
		}
		idx.cells = append(idx.cells, cell)
		idx.lists[cell] = append(idx.lists[cell], pos)

		id := idx.nextID
		idx.nextID++
		idx.posToID = append(idx.posToID, id)
		idx.idToPos[id] = pos
		idx.metadata[id] = metas[i]
		ids[i] = id
	}

	logger.Debug("committed %d vectors (total=%d)", len(vectors), len(idx.posToID))
	return ids
}

// candidate pairs a storage position with its distance to the query.
type candidate struct {
	pos  int32
	dist float32
}

// Search returns up to k hits ordered by ascending squared L2 distance,
// post-filtered by f. While untrained it scans the pending buffer
// exactly; those hits carry domain.PendingID since ids are not yet
// assigned. Unresolvable positions (hidden or missing entries) are
// skipped, never an error.
func (idx *Index) Search(ctx context.Context, query []float32, k int, f driven.VectorFilters) ([]domain.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != idx.cfg.Dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			domain.ErrDimensionMismatch, len(query), idx.cfg.Dim)
	}
	if k <= 0 {
		k = 10
	}

	if !idx.trained {
		return idx.searchPending(query, k, f), nil
	}
	if len(idx.posToID) == 0 {
		return []domain.SearchHit{}, nil
	}

	// Over-fetch raw candidates: post-filtering can eliminate most.
	fetch := k * idx.cfg.OverFetch
	if fetch > len(idx.posToID) {
		fetch = len(idx.posToID)
	}

	candidates := idx.rawCandidates(query, fetch)

	hits := make([]domain.SearchHit, 0, k)
	for _, c := range candidates {
		id := idx.posToID[c.pos]
		if id < 0 {
			continue // hidden by RemoveCompany
		}
		meta, ok := idx.metadata[id]
		if !ok {
			continue
		}
		if !matchesFilters(meta, f) {
			continue
		}
		hits = append(hits, domain.SearchHit{ID: id, Distance: c.dist, Meta: meta})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

// rawCandidates scans the nprobe nearest coarse cells and returns the
// closest `fetch` positions ordered by ascending distance.
func (idx *Index) rawCandidates(query []float32, fetch int) []candidate {
	type cellDist struct {
		cell int32
		dist float32
	}
	cellDists := make([]cellDist, len(idx.centroids))
	for i, c := range idx.centroids {
		cellDists[i] = cellDist{cell: int32(i), dist: l2sq(query, c)}
	}
	sort.Slice(cellDists, func(i, j int) bool { return cellDists[i].dist < cellDists[j].dist })

	nprobe := idx.cfg.NProbe
	if nprobe > len(cellDists) {
		nprobe = len(cellDists)
	}

	var table []float32
	if idx.cfg.UsePQ {
		table = idx.pq.adcTable(query)
	}

	var candidates []candidate
	for _, cd := range cellDists[:nprobe] {
		for _, pos := range idx.lists[cd.cell] {
			var d float32
			if idx.cfg.UsePQ {
				d = adcDistance(table, idx.codes[pos])
			} else {
				d = l2sq(query, idx.vecs[pos])
			}
			candidates = append(candidates, candidate{pos: pos, dist: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > fetch {
		candidates = candidates[:fetch]
	}
	return candidates
}

// searchPending brute-force scans the pending buffer. This keeps search
// usable before the training minimum is reached.
func (idx *Index) searchPending(query []float32, k int, f driven.VectorFilters) []domain.SearchHit {
	type pendingHit struct {
		i    int
		dist float32
	}
	scored := make([]pendingHit, 0, len(idx.pendingVecs))
	for i, v := range idx.pendingVecs {
		scored = append(scored, pendingHit{i: i, dist: l2sq(query, v)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].dist < scored[j].dist })

	hits := make([]domain.SearchHit, 0, k)
	for _, s := range scored {
		meta := idx.pendingMetas[s.i]
		if !matchesFilters(meta, f) {
			continue
		}
		hits = append(hits, domain.SearchHit{ID: domain.PendingID, Distance: s.dist, Meta: meta})
		if len(hits) >= k {
			break
		}
	}
	return hits
}

func matchesFilters(meta domain.ChunkMeta, f driven.VectorFilters) bool {
	if f.CompanyID != 0 && meta.CompanyID != f.CompanyID {
		return false
	}
	if f.FilingType != "" && meta.FilingType != f.FilingType {
		return false
	}
	if !f.DateAfter.IsZero() && meta.FilingDate.Before(f.DateAfter) {
		return false
	}
	return true
}

// Reconstruct returns the stored vector for an id. For PQ storage the
// reconstruction is the lossy codebook decode.
func (idx *Index) Reconstruct(id int64) ([]float32, error) {
	pos, ok := idx.idToPos[id]
	if !ok {
		return nil, fmt.Errorf("chunk %d: %w", id, domain.ErrNotFound)
	}
	if idx.cfg.UsePQ {
		return idx.pq.decode(idx.codes[pos]), nil
	}
	return append([]float32(nil), idx.vecs[pos]...), nil
}

// RemoveCompany hides all entries belonging to companyID by dropping
// them from the metadata and id maps. The vectors stay inside the ANN
/// structure until a full rebuild: hidden, not freed. Pending entries
// for the company are dropped outright. Ids are never reused.
func (idx *Index) RemoveCompany(companyID int64) int {
	removed := 0
	for id, meta := range idx.metadata {
		if meta.CompanyID != companyID {
			continue
		}
		pos := idx.idToPos[id]
		idx.posToID[pos] = -1
		delete(idx.idToPos, id)
		delete(idx.metadata, id)
		removed++
	}

	if len(idx.pendingVecs) > 0 {
		keptVecs := idx.pendingVecs[:0]
		keptMetas := idx.pendingMetas[:0]
		for i, m := range idx.pendingMetas {
			if m.CompanyID == companyID {
				removed++
				continue
			}
			keptVecs = append(keptVecs, idx.pendingVecs[i])
			keptMetas = append(keptMetas, m)
		}
		idx.pendingVecs = keptVecs
		idx.pendingMetas = keptMetas
	}

	logger.Info("hid %d chunks for company %d (vectors reclaimed on next rebuild)",
		removed, companyID)
	return removed
}

// Stats reports index counters.
func (idx *Index) Stats() domain.IndexStats {
	kind := "ivf_flat"
	if idx.cfg.UsePQ {
		kind = "ivf_pq"
	}

	companies := make(map[int64]int)
	filingTypes := make(map[string]int)
	for _, meta := range idx.metadata {
		companies[meta.CompanyID]++
		if meta.FilingType != "" {
			filingTypes[meta.FilingType]++
		}
	}

	return domain.IndexStats{
		TotalVectors:     len(idx.posToID),
		TotalChunks:      len(idx.metadata),
		PendingVectors:   len(idx.pendingVecs),
		CompaniesIndexed: len(companies),
		FilingTypes:      filingTypes,
		Trained:          idx.trained,
		Dimension:        idx.cfg.Dim,
		IndexKind:        kind,
	}
}

// Close releases the index. Persistence is explicit via Save so that
// read-only processes never rewrite the artifacts on exit.
func (idx *Index) Close() error {
	return nil
}
