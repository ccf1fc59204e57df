package ivfpq

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
)

const testDim = 16

// smallConfig keeps the training minimum reachable in tests:
// NList=2, TrainFactor=3 gives a minimum of 6 vectors.
func smallConfig(dir string) Config {
	return Config{Dim: testDim, Dir: dir, NList: 2, NProbe: 2, TrainFactor: 3}
}

func unitVector(rng *rand.Rand) []float32 {
	v := make([]float32, testDim)
	var norm float64
	for i := range v {
		v[i] = float32(rng.NormFloat64())
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func metaFor(companyID int64, filingType string, date time.Time) domain.ChunkMeta {
	return domain.ChunkMeta{
		FilePath:   "/data/filings/f.txt.gz",
		Section:    "RISK FACTORS",
		CharStart:  0,
		CharEnd:    100,
		FilingID:   companyID * 10,
		CompanyID:  companyID,
		FilingType: filingType,
		FilingDate: date,
	}
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{Dim: 0, Dir: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(Config{Dim: testDim, Dir: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(Config{Dim: 10, Dir: t.TempDir(), UsePQ: true, M: 3})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAddValidation(t *testing.T) {
	idx, err := New(smallConfig(t.TempDir()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = idx.Add(ctx, [][]float32{make([]float32, testDim)}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = idx.Add(ctx, [][]float32{make([]float32, 3)}, []domain.ChunkMeta{{}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestUntrainedBuffersAndSearchesPending(t *testing.T) {
	dir := t.TempDir()
	idx, err := New(smallConfig(dir))
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		companyID := int64(1)
		if i == 2 {
			companyID = 2
		}
		ids, err := idx.Add(ctx,
			[][]float32{unitVector(rng)},
			[]domain.ChunkMeta{metaFor(companyID, "10-K", date)})
		require.NoError(t, err)
		assert.Empty(t, ids, "no ids before training")
	}

	assert.False(t, idx.Trained())
	stats := idx.Stats()
	assert.Equal(t, 0, stats.TotalVectors)
	assert.Equal(t, 3, stats.PendingVectors)

	// Pending search works, hits carry the sentinel id and honour filters.
	hits, err := idx.Search(ctx, unitVector(rng), 10, driven.VectorFilters{CompanyID: 1})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, domain.PendingID, h.ID)
		assert.Equal(t, int64(1), h.Meta.CompanyID)
	}

	// Save is a no-op while untrained: no artifacts appear.
	require.NoError(t, idx.Save())
	_, err = os.Stat(filepath.Join(dir, annFile))
	assert.True(t, os.IsNotExist(err))
}

func TestTrainingTransitionAssignsSequentialIDs(t *testing.T) {
	idx, err := New(smallConfig(t.TempDir()))
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(2))
	date := time.Now().UTC()

	// Five buffered vectors, still below the minimum of six.
	for i := 0; i < 5; i++ {
		ids, err := idx.Add(ctx, [][]float32{unitVector(rng)},
			[]domain.ChunkMeta{metaFor(1, "10-K", date)})
		require.NoError(t, err)
		assert.Empty(t, ids)
	}

	// The sixth crosses the threshold: training happens, the whole
	// buffer commits, and this call gets its own tail of the id space.
	ids, err := idx.Add(ctx, [][]float32{unitVector(rng), unitVector(rng)},
		[]domain.ChunkMeta{metaFor(1, "10-Q", date), metaFor(1, "10-Q", date)})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, []int64{5, 6}, ids)
	assert.True(t, idx.Trained())

	stats := idx.Stats()
	assert.Equal(t, 7, stats.TotalVectors)
	assert.Equal(t, 7, stats.TotalChunks)
	assert.Equal(t, 0, stats.PendingVectors)

	// Post-training adds return ids immediately, still increasing.
	more, err := idx.Add(ctx, [][]float32{unitVector(rng)},
		[]domain.ChunkMeta{metaFor(2, "8-K", date)})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, more)
}

func TestSearchFindsNearestAndFilters(t *testing.T) {
	idx, err := New(smallConfig(t.TempDir()))
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))

	vecs := make([][]float32, 0, 40)
	metas := make([]domain.ChunkMeta, 0, 40)
	for i := 0; i < 40; i++ {
		vecs = append(vecs, unitVector(rng))
		companyID := int64(1 + i%4)
		ft := "10-K"
		if i%2 == 1 {
			ft = "8-K"
		}
		metas = append(metas, metaFor(companyID, ft,
			time.Date(2020+i%5, 1, 1, 0, 0, 0, 0, time.UTC)))
	}
	ids, err := idx.Add(ctx, vecs, metas)
	require.NoError(t, err)
	require.Len(t, ids, 40)
	require.True(t, idx.Trained())

	// Querying with a stored vector must surface that vector first.
	hits, err := idx.Search(ctx, vecs[7], 5, driven.VectorFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, ids[7], hits[0].ID)
	assert.InDelta(t, 0.0, float64(hits[0].Distance), 1e-5)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i].Distance, hits[i-1].Distance)
	}

	// Filters constrain results.
	hits, err = idx.Search(ctx, vecs[0], 40, driven.VectorFilters{
		CompanyID:  2,
		FilingType: "8-K",
		DateAfter:  time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, int64(2), h.Meta.CompanyID)
		assert.Equal(t, "8-K", h.Meta.FilingType)
		assert.False(t, h.Meta.FilingDate.Before(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))
	}
}

func TestRemoveCompanyHidesEntries(t *testing.T) {
	idx, err := New(smallConfig(t.TempDir()))
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(4))
	date := time.Now().UTC()

	vecs := make([][]float32, 0, 10)
	metas := make([]domain.ChunkMeta, 0, 10)
	for i := 0; i < 10; i++ {
		vecs = append(vecs, unitVector(rng))
		metas = append(metas, metaFor(int64(1+i%2), "10-K", date))
	}
	ids, err := idx.Add(ctx, vecs, metas)
	require.NoError(t, err)
	require.Len(t, ids, 10)

	removed := idx.RemoveCompany(1)
	assert.Equal(t, 5, removed)

	stats := idx.Stats()
	assert.Equal(t, 10, stats.TotalVectors, "vectors stay until rebuild")
	assert.Equal(t, 5, stats.TotalChunks)
	assert.Equal(t, 1, stats.CompaniesIndexed)

	hits, err := idx.Search(ctx, vecs[0], 10, driven.VectorFilters{})
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, int64(2), h.Meta.CompanyID)
	}

	// Ids are not reused after removal.
	more, err := idx.Add(ctx, [][]float32{unitVector(rng)},
		[]domain.ChunkMeta{metaFor(3, "10-K", date)})
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, more)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	idx, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(5))

	vecs := make([][]float32, 0, 30)
	metas := make([]domain.ChunkMeta, 0, 30)
	for i := 0; i < 30; i++ {
		vecs = append(vecs, unitVector(rng))
		metas = append(metas, metaFor(int64(1+i%3), "10-K",
			time.Date(2023, time.Month(1+i%12), 1, 0, 0, 0, 0, time.UTC)))
	}
	ids, err := idx.Add(ctx, vecs, metas)
	require.NoError(t, err)
	require.NoError(t, idx.Save())

	reopened, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, reopened.Trained())
	assert.Equal(t, idx.Stats(), reopened.Stats())

	// Nearest-neighbour behaviour survives the round trip.
	hits, err := reopened.Search(ctx, vecs[3], 3, driven.VectorFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, ids[3], hits[0].ID)

	// Reconstruct matches the stored full-precision vector.
	got, err := reopened.Reconstruct(ids[3])
	require.NoError(t, err)
	assert.InDeltaSlice(t, vecs[3], got, 1e-6)

	// Ids continue from where the previous generation stopped.
	more, err := reopened.Add(ctx, [][]float32{unitVector(rng)},
		[]domain.ChunkMeta{metaFor(9, "8-K", time.Now().UTC())})
	require.NoError(t, err)
	assert.Equal(t, []int64{30}, more)
}

func TestLoadCorruptArtifactsStartsFresh(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	idx, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(6))

	for i := 0; i < 8; i++ {
		_, err := idx.Add(ctx, [][]float32{unitVector(rng)},
			[]domain.ChunkMeta{metaFor(1, "10-K", time.Now().UTC())})
		require.NoError(t, err)
	}
	require.NoError(t, idx.Save())

	// Truncate the ANN file mid-structure.
	annPath := filepath.Join(dir, annFile)
	data, err := os.ReadFile(annPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(annPath, data[:len(data)/2], 0o600))

	fresh, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, fresh.Trained())
	assert.Equal(t, 0, fresh.Stats().TotalVectors)
}

func TestLoadMixedGenerationStartsFresh(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	idx, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 8; i++ {
		_, err := idx.Add(ctx, [][]float32{unitVector(rng)},
			[]domain.ChunkMeta{metaFor(1, "10-K", time.Now().UTC())})
		require.NoError(t, err)
	}
	require.NoError(t, idx.Save())

	// An id map from a different save generation must be rejected.
	stale := `{"artifact_id":"00000000-0000-0000-0000-000000000000","next_id":8,"count":8,"id_to_pos":{}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, idMapFile), []byte(stale), 0o600))

	fresh, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, fresh.Trained())
}

func TestLoadDimensionMismatchFailsHard(t *testing.T) {
	dir := t.TempDir()
	idx, err := New(smallConfig(dir))
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(8))

	for i := 0; i < 8; i++ {
		_, err := idx.Add(ctx, [][]float32{unitVector(rng)},
			[]domain.ChunkMeta{metaFor(1, "10-K", time.Now().UTC())})
		require.NoError(t, err)
	}
	require.NoError(t, idx.Save())

	wrong := smallConfig(dir)
	wrong.Dim = testDim * 2
	_, err = New(wrong)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestPQRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dim: testDim, Dir: dir, NList: 2, NProbe: 2, TrainFactor: 3, UsePQ: true, M: 4}
	idx, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(9))

	// PQ raises the training minimum to 256*M.
	minTrain := idx.trainMinimum()
	require.Equal(t, pqKsub*4, minTrain)

	vecs := make([][]float32, 0, minTrain)
	metas := make([]domain.ChunkMeta, 0, minTrain)
	for i := 0; i < minTrain; i++ {
		vecs = append(vecs, unitVector(rng))
		metas = append(metas, metaFor(int64(1+i%5), "10-K", time.Now().UTC()))
	}
	ids, err := idx.Add(ctx, vecs, metas)
	require.NoError(t, err)
	require.Len(t, ids, minTrain)
	require.True(t, idx.Trained())

	// Lossy reconstruction should still be in the neighbourhood of the
	// original unit vector.
	got, err := idx.Reconstruct(ids[0])
	require.NoError(t, err)
	assert.Less(t, float64(l2sq(vecs[0], got)), 1.0)

	// Self-query lands the stored vector near the top of the ranking.
	hits, err := idx.Search(ctx, vecs[10], 10, driven.VectorFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	found := false
	for _, h := range hits {
		if h.ID == ids[10] {
			found = true
		}
	}
	assert.True(t, found, "self-query should rank the stored vector highly")

	require.NoError(t, idx.Save())
	reopened, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, idx.Stats(), reopened.Stats())
	assert.Equal(t, "ivf_pq", reopened.Stats().IndexKind)
}

func TestReconstructUnknownID(t *testing.T) {
	idx, err := New(smallConfig(t.TempDir()))
	require.NoError(t, err)
	_, err = idx.Reconstruct(42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
