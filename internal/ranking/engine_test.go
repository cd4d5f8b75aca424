package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seizurelab/eegrank/internal/domain"
)

// snips builds opaque test snippets; the engine only ever looks at IDs.
func snips(ids ...string) []domain.Snippet {
	out := make([]domain.Snippet, len(ids))
	for i, id := range ids {
		out[i] = domain.Snippet{ID: id}
	}
	return out
}

// totalOrder returns a comparator verdict consistent with a fixed
// ranking: items earlier in the order rank above later ones.
func totalOrder(order ...string) func(p domain.Pair) domain.Verdict {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	return func(p domain.Pair) domain.Verdict {
		switch {
		case rank[p.Left] < rank[p.Right]:
			return domain.LeftWins
		case rank[p.Left] > rank[p.Right]:
			return domain.RightWins
		default:
			return domain.Tie
		}
	}
}

// drive feeds verdicts synchronously until the run completes, returning
// the sequence of pairs the engine requested.
func drive(t *testing.T, r *Run, verdict func(domain.Pair) domain.Verdict) []domain.Pair {
	t.Helper()
	var requested []domain.Pair
	for !r.Done() {
		p, ok := r.Pending()
		require.True(t, ok, "incomplete run must expose a pending pair")
		requested = append(requested, p)
		require.NoError(t, r.Resolve(verdict(p)))
	}
	return requested
}

func TestNewRun_RejectsTooFewItems(t *testing.T) {
	for _, items := range [][]domain.Snippet{nil, snips("A")} {
		_, err := NewRun(items, nil)
		assert.ErrorIs(t, err, domain.ErrTooFewItems)
	}
}

func TestRun_SortsConsistentlyWithTotalOrder(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		order []string
	}{
		{
			name:  "two items reversed",
			input: []string{"B", "A"},
			order: []string{"A", "B"},
		},
		{
			name:  "three items rotated",
			input: []string{"C", "A", "B"},
			order: []string{"A", "B", "C"},
		},
		{
			name:  "eight items shuffled",
			input: []string{"E", "B", "H", "A", "G", "C", "F", "D"},
			order: []string{"A", "B", "C", "D", "E", "F", "G", "H"},
		},
		{
			name:  "ten items descending",
			input: []string{"J", "I", "H", "G", "F", "E", "D", "C", "B", "A"},
			order: []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRun(snips(tt.input...), nil)
			require.NoError(t, err)

			drive(t, r, totalOrder(tt.order...))

			got, ok := r.Result()
			require.True(t, ok)
			assert.Equal(t, domain.Ranking(tt.order), got)
		})
	}
}

func TestRun_RequestsExactlyTopDownMergeSortComparisons(t *testing.T) {
	// Items already in rank order A>B>C>D: the recursion merges [0,1],
	// then [2,3], then the two halves, asking (A,B), (C,D), (A,C), (B,C).
	r, err := NewRun(snips("A", "B", "C", "D"), nil)
	require.NoError(t, err)

	requested := drive(t, r, totalOrder("A", "B", "C", "D"))

	want := []domain.Pair{
		{Left: "A", Right: "B"},
		{Left: "C", Right: "D"},
		{Left: "A", Right: "C"},
		{Left: "B", Right: "C"},
	}
	assert.Equal(t, want, requested)
	assert.Equal(t, 4, r.Comparisons())

	got, ok := r.Result()
	require.True(t, ok)
	assert.Equal(t, domain.Ranking{"A", "B", "C", "D"}, got)
}

func TestRun_TieKeepsLeft(t *testing.T) {
	r, err := NewRun(snips("A", "B"), nil)
	require.NoError(t, err)

	drive(t, r, func(domain.Pair) domain.Verdict { return domain.Tie })

	got, ok := r.Result()
	require.True(t, ok)
	assert.Equal(t, domain.Ranking{"A", "B"}, got, "tie must retain the left item first")
}

func TestRun_AllTiesPreserveInputOrder(t *testing.T) {
	r, err := NewRun(snips("C", "A", "D", "B"), nil)
	require.NoError(t, err)

	drive(t, r, func(domain.Pair) domain.Verdict { return domain.Tie })

	got, ok := r.Result()
	require.True(t, ok)
	assert.Equal(t, domain.Ranking{"C", "A", "D", "B"}, got)
}

func TestRun_Deterministic(t *testing.T) {
	input := []string{"F", "C", "A", "E", "B", "D"}
	verdict := totalOrder("A", "B", "C", "D", "E", "F")

	r1, err := NewRun(snips(input...), nil)
	require.NoError(t, err)
	seq1 := drive(t, r1, verdict)
	res1, _ := r1.Result()

	r2, err := NewRun(snips(input...), nil)
	require.NoError(t, err)
	seq2 := drive(t, r2, verdict)
	res2, _ := r2.Result()

	assert.Equal(t, seq1, seq2, "identical verdicts must reproduce the request sequence")
	assert.Equal(t, res1, res2)
}

func TestRun_SingleOutstandingComparison(t *testing.T) {
	r, err := NewRun(snips("B", "A", "C"), nil)
	require.NoError(t, err)

	p1, ok := r.Pending()
	require.True(t, ok)
	p2, ok := r.Pending()
	require.True(t, ok)
	assert.Equal(t, p1, p2, "pending pair must not change until resolved")
}

func TestRun_ResolveWithoutPending(t *testing.T) {
	r, err := NewRun(snips("A", "B"), nil)
	require.NoError(t, err)

	require.NoError(t, r.Resolve(domain.LeftWins))
	require.True(t, r.Done())

	assert.ErrorIs(t, r.Resolve(domain.LeftWins), domain.ErrRunComplete)
}

func TestRun_RejectsInvalidVerdict(t *testing.T) {
	r, err := NewRun(snips("A", "B"), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Resolve(domain.Verdict(3)), domain.ErrInvalidVerdict)

	// The pending pair survives the rejected resolution.
	_, ok := r.Pending()
	assert.True(t, ok)
	assert.Equal(t, 0, r.Comparisons())
}

func TestRun_ResultImmutableAndProducedOnce(t *testing.T) {
	r, err := NewRun(snips("B", "A"), nil)
	require.NoError(t, err)
	drive(t, r, totalOrder("A", "B"))

	first, ok := r.Result()
	require.True(t, ok)
	first[0] = "mutated"

	again, _ := r.Result()
	assert.Equal(t, domain.Ranking{"A", "B"}, again)
}

func TestRun_CacheSuppressesDuplicateRequests(t *testing.T) {
	cache := NewCache()

	r1, err := NewRun(snips("C", "A", "B"), cache)
	require.NoError(t, err)
	drive(t, r1, totalOrder("A", "B", "C"))
	require.Positive(t, r1.Comparisons())

	// A fresh run over the same subset finds every pair cached and
	// completes without a single oracle request.
	r2, err := NewRun(snips("C", "A", "B"), cache)
	require.NoError(t, err)
	assert.True(t, r2.Done())
	assert.Equal(t, 0, r2.Comparisons())

	got, ok := r2.Result()
	require.True(t, ok)
	assert.Equal(t, domain.Ranking{"A", "B", "C"}, got)
}

func TestRun_CacheHitsDoNotCountAsComparisons(t *testing.T) {
	cache := NewCache()
	cache.Record("A", "B", domain.LeftWins)

	r, err := NewRun(snips("A", "B"), cache)
	require.NoError(t, err)

	assert.True(t, r.Done())
	assert.Equal(t, 0, r.Comparisons())
}
