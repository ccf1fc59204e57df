package hybrid

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
)

// mockEmbedder is a test double that records which texts it saw.
type mockEmbedder struct {
	name string
	dim  int
	seen []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.seen = append(m.seen, text)
	return make([]float32, m.dim), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return m.Embed(ctx, query)
}

func (m *mockEmbedder) Dimensions() int { return m.dim }

func (m *mockEmbedder) ModelName() string { return m.name }

func (m *mockEmbedder) Ping(_ context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

const clinicalText = "The phase 3 clinical trial met its primary endpoint; " +
	"patient efficacy exceeded placebo and the drug advances to FDA review."

const financialText = "Net revenue increased 12% year over year driven by licensing income."

func TestIsBiomedical(t *testing.T) {
	assert.True(t, IsBiomedical(clinicalText))
	assert.False(t, IsBiomedical(financialText))
	// Two keywords is below the threshold.
	assert.False(t, IsBiomedical("The drug treatment was mentioned."))
}

func TestRoutingSplitsBatch(t *testing.T) {
	general := &mockEmbedder{name: "general", dim: 4}
	bio := &mockEmbedder{name: "bio", dim: 4}
	s := New(general, func() (driven.EmbeddingService, error) { return bio, nil })

	texts := []string{financialText, clinicalText, financialText}
	vecs, err := s.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 4)
	}

	assert.Equal(t, []string{financialText, financialText}, general.seen)
	assert.Equal(t, []string{clinicalText}, bio.seen)
}

func TestBioModelLoadedLazily(t *testing.T) {
	general := &mockEmbedder{name: "general", dim: 4}
	loads := 0
	s := New(general, func() (driven.EmbeddingService, error) {
		loads++
		return &mockEmbedder{name: "bio", dim: 4}, nil
	})

	_, err := s.Embed(context.Background(), financialText)
	require.NoError(t, err)
	assert.Equal(t, 0, loads, "general text must not load the bio model")

	_, err = s.Embed(context.Background(), clinicalText)
	require.NoError(t, err)
	_, err = s.Embed(context.Background(), clinicalText)
	require.NoError(t, err)
	assert.Equal(t, 1, loads, "bio model loads once")
}

func TestDimensionMismatchFallsBackToGeneral(t *testing.T) {
	general := &mockEmbedder{name: "general", dim: 4}
	s := New(general, func() (driven.EmbeddingService, error) {
		return &mockEmbedder{name: "bio", dim: 8}, nil
	})

	vecs, err := s.EmbedBatch(context.Background(), []string{clinicalText})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 4)
	assert.Equal(t, []string{clinicalText}, general.seen)
}

func TestFactoryErrorFallsBackToGeneral(t *testing.T) {
	general := &mockEmbedder{name: "general", dim: 4}
	calls := 0
	s := New(general, func() (driven.EmbeddingService, error) {
		calls++
		return nil, errors.New("model download failed")
	})

	_, err := s.Embed(context.Background(), clinicalText)
	require.NoError(t, err)
	_, err = s.Embed(context.Background(), clinicalText)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "failed factory is not retried")
	assert.Len(t, general.seen, 2)
}

func TestQueryRouting(t *testing.T) {
	general := &mockEmbedder{name: "general", dim: 4}
	bio := &mockEmbedder{name: "bio", dim: 4}
	s := New(general, func() (driven.EmbeddingService, error) { return bio, nil })

	_, err := s.EmbedQuery(context.Background(), clinicalText)
	require.NoError(t, err)
	assert.Len(t, bio.seen, 1)
	assert.True(t, strings.Contains(bio.seen[0], "phase 3"))
}

func TestModelName(t *testing.T) {
	s := New(&mockEmbedder{name: "nomic-embed-text", dim: 4}, nil)
	assert.Equal(t, "hybrid/nomic-embed-text", s.ModelName())
}
