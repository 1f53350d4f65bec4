package retrieval

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkIDs(matches []Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}
	return ids
}

func TestLanguageIndex_SearchOrdersByDistanceThenInsertion(t *testing.T) {
	idx := NewLanguageIndex("en")
	require.NoError(t, idx.Insert("c10", []float32{1, 0}, "A"))
	require.NoError(t, idx.Insert("c01", []float32{0, 1}, "A"))
	require.NoError(t, idx.Insert("c11", []float32{1, 1}, "A"))

	got, err := idx.Search([]float32{1, 0}, 2, "A")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c10", got[0].ChunkID)
	assert.Equal(t, 0.0, got[0].Score)
	// [0,1] 与 [1,1] 的距离分别为 2 和 1
	assert.Equal(t, "c11", got[1].ChunkID)
	assert.Equal(t, 1.0, got[1].Score)

	all, err := idx.Search([]float32{1, 0}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"c10", "c11", "c01"}, chunkIDs(all))
}

func TestLanguageIndex_TiesBrokenByInsertionOrder(t *testing.T) {
	idx := NewLanguageIndex("en")
	require.NoError(t, idx.Insert("first", []float32{0, 1}, "A"))
	require.NoError(t, idx.Insert("second", []float32{1, 0}, "A"))
	require.NoError(t, idx.Insert("third", []float32{0, 1}, "A"))

	got, err := idx.Search([]float32{0, 0}, 3, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, chunkIDs(got))
}

func TestLanguageIndex_DimensionMismatch(t *testing.T) {
	idx := NewLanguageIndex("fr")
	require.NoError(t, idx.Insert("a", []float32{1, 2, 3}, "D"))

	err := idx.Insert("b", []float32{1, 2}, "D")
	require.ErrorIs(t, err, ErrDimensionMismatch)

	var dimErr *DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Want)
	assert.Equal(t, 2, dimErr.Got)
	assert.Equal(t, 1, idx.Len())

	_, err = idx.Search([]float32{1}, 1, "")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLanguageIndex_EmptyEmbeddingRejected(t *testing.T) {
	idx := NewLanguageIndex("en")
	assert.ErrorIs(t, idx.Insert("a", nil, "D"), ErrEmptyEmbedding)
	assert.Equal(t, 0, idx.Dims())
}

func TestLanguageIndex_FilterAndBounds(t *testing.T) {
	idx := NewLanguageIndex("en")
	for i := 0; i < 6; i++ {
		doc := "A"
		if i%2 == 1 {
			doc = "B"
		}
		require.NoError(t, idx.Insert(fmt.Sprintf("c%d", i), []float32{float32(i), 0}, doc))
	}

	tests := []struct {
		name   string
		k      int
		filter string
		want   int
	}{
		{name: "k smaller than matches", k: 2, filter: "", want: 2},
		{name: "k larger than matches", k: 10, filter: "", want: 6},
		{name: "filtered", k: 10, filter: "B", want: 3},
		{name: "filter matches nothing", k: 10, filter: "Z", want: 0},
		{name: "zero k", k: 0, filter: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Search([]float32{0, 0}, tt.k, tt.filter)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Len(t, got, tt.want)
			for _, m := range got {
				if tt.filter != "" {
					assert.Equal(t, tt.filter, m.DocID)
				}
			}
		})
	}
}

func TestLanguageIndex_EmptyIndex(t *testing.T) {
	idx := NewLanguageIndex("en")
	got, err := idx.Search([]float32{1, 2}, 5, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLanguageIndex_Deterministic(t *testing.T) {
	idx := NewLanguageIndex("en")
	for i := 0; i < 50; i++ {
		require.NoError(t, idx.Insert(fmt.Sprintf("c%d", i), []float32{float32(i % 7), float32(i % 3)}, "A"))
	}
	first, err := idx.Search([]float32{2, 1}, 20, "")
	require.NoError(t, err)
	second, err := idx.Search([]float32{2, 1}, 20, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLanguageIndex_InsertCopiesEmbedding(t *testing.T) {
	idx := NewLanguageIndex("en")
	vec := []float32{1, 0}
	require.NoError(t, idx.Insert("a", vec, "A"))
	vec[0] = 100

	got, err := idx.Search([]float32{1, 0}, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got[0].Score)
}

func TestLanguageIndex_ConcurrentInsertAndSearch(t *testing.T) {
	idx := NewLanguageIndex("en")
	const writers, perWriter = 8, 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("w%d_%d", w, i)
				assert.NoError(t, idx.Insert(id, []float32{float32(w), float32(i)}, "A"))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		last := 0
		for idx.Len() < writers*perWriter {
			got, err := idx.Search([]float32{0, 0}, writers*perWriter, "")
			assert.NoError(t, err)
			// 快照只会增长
			assert.GreaterOrEqual(t, len(got), last)
			last = len(got)
		}
	}()

	wg.Wait()
	<-done
	assert.Equal(t, writers*perWriter, idx.Len())
}
