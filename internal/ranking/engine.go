// Package ranking implements the interactive pairwise-ranking core: a
// merge sort whose comparator is an external decision source that must
// be awaited. The engine is a pure state machine; it never blocks,
// spawns goroutines, or times out. Callers drive it through an explicit
// handshake: Pending exposes at most one comparison request, Resolve
// feeds the verdict back and advances the sort to the next request or
// to completion.
//
// INVARIANTS:
//   - At most one comparison is outstanding at any instant.
//   - The request sequence is fully determined by the item order and
//     the verdicts received so far.
//   - The ranking is produced exactly once and is immutable after.
package ranking

import (
	"github.com/seizurelab/eegrank/internal/domain"
)

// TieKeepsLeft pins the merge tie policy: a Tie verdict emits the head
// of the left half first, identical to LeftWins. The bias is externally
// observable (it fixes the final order of any tied pair), so it is a
// named policy rather than an incidental branch.
const TieKeepsLeft = true

// span is one merge task over item indexes [lo,hi) split at mid.
type span struct {
	lo, mid, hi int
}

// mergePlan appends the merge tasks of a top-down merge sort of [lo,hi)
// in post-order, which is exactly the order the recursive formulation
// performs them.
func mergePlan(lo, hi int, plan []span) []span {
	if hi-lo <= 1 {
		return plan
	}
	mid := lo + (hi-lo)/2
	plan = mergePlan(lo, mid, plan)
	plan = mergePlan(mid, hi, plan)
	return append(plan, span{lo: lo, mid: mid, hi: hi})
}

// merge is the in-progress merge of two already-ranked index runs.
type merge struct {
	left, right []int
	out         []int
	i, j        int
}

// Run is the mutable state of one in-progress ranking: the stack of
// yet-to-merge runs, the pending pair awaiting a verdict, and the count
// of verdicts consumed. A Run is single-threaded by construction; the
// session controller owns it exclusively.
type Run struct {
	items []domain.Snippet
	byIdx map[int]string // index -> snippet ID, fixed at construction

	cache *Cache
	plan  []span  // remaining merge tasks, post-order
	stack [][]int // completed runs, as item indexes

	cur     *merge
	pending *domain.Pair

	comparisons int
	result      domain.Ranking
	done        bool
}

// NewRun constructs a sort run over the given snippets and advances it
// to its first comparison request. The cache may already hold verdicts
// from earlier runs over overlapping subsets; hits advance the sort
// without a request. A nil cache gets a fresh one.
func NewRun(items []domain.Snippet, cache *Cache) (*Run, error) {
	if len(items) < 2 {
		return nil, domain.ErrTooFewItems
	}
	if cache == nil {
		cache = NewCache()
	}
	r := &Run{
		items: items,
		byIdx: make(map[int]string, len(items)),
		cache: cache,
		plan:  mergePlan(0, len(items), nil),
	}
	for i, it := range items {
		r.byIdx[i] = it.ID
	}
	r.advance()
	return r, nil
}

// Pending returns the comparison the engine is suspended on, if any.
func (r *Run) Pending() (domain.Pair, bool) {
	if r.pending == nil {
		return domain.Pair{}, false
	}
	return *r.pending, true
}

// Comparisons returns the number of oracle verdicts consumed so far.
// Cache hits do not count; no oracle request was made for them.
func (r *Run) Comparisons() int { return r.comparisons }

// Done reports whether the ranking has been produced.
func (r *Run) Done() bool { return r.done }

// Result returns the final ranking once the run is complete. The
// returned slice is a copy; the ranking itself is immutable.
func (r *Run) Result() (domain.Ranking, bool) {
	if !r.done {
		return nil, false
	}
	out := make(domain.Ranking, len(r.result))
	copy(out, r.result)
	return out, true
}

// Resolve consumes the verdict for the pending pair, records it in the
// comparison cache, and advances the sort to the next pending pair or
// to completion.
func (r *Run) Resolve(v domain.Verdict) error {
	if r.done {
		return domain.ErrRunComplete
	}
	if r.pending == nil {
		return domain.ErrNoPendingComparison
	}
	if !v.Valid() {
		return domain.ErrInvalidVerdict
	}
	p := *r.pending
	r.pending = nil
	r.comparisons++
	r.cache.Record(p.Left, p.Right, v)
	r.emit(v)
	r.advance()
	return nil
}

// emit applies one verdict to the current merge head.
func (r *Run) emit(v domain.Verdict) {
	m := r.cur
	emitLeft := v > domain.Tie || (v == domain.Tie && TieKeepsLeft)
	if emitLeft {
		m.out = append(m.out, m.left[m.i])
		m.i++
	} else {
		m.out = append(m.out, m.right[m.j])
		m.j++
	}
}

// advance drives the sort until it needs an external verdict or the
// ranking is complete. Exhausted merge sides drain without requests,
// and cached verdicts for the heads are consumed directly.
func (r *Run) advance() {
	for r.pending == nil && !r.done {
		if r.cur == nil {
			if len(r.plan) == 0 {
				r.finish()
				return
			}
			r.cur = r.nextMerge()
		}

		m := r.cur
		switch {
		case m.i >= len(m.left):
			m.out = append(m.out, m.right[m.j:]...)
			r.completeMerge()
		case m.j >= len(m.right):
			m.out = append(m.out, m.left[m.i:]...)
			r.completeMerge()
		default:
			left, right := r.byIdx[m.left[m.i]], r.byIdx[m.right[m.j]]
			if v, ok := r.cache.Lookup(left, right); ok {
				r.emit(v)
				continue
			}
			r.pending = &domain.Pair{Left: left, Right: right}
		}
	}
}

// nextMerge pops the next merge task and binds its input runs. A child
// of size one is a leaf; larger children were produced by earlier tasks
// and sit on the run stack, right child on top.
func (r *Run) nextMerge() *merge {
	task := r.plan[0]
	r.plan = r.plan[1:]

	var left, right []int
	if task.hi-task.mid == 1 {
		right = []int{task.mid}
	} else {
		right = r.popRun()
	}
	if task.mid-task.lo == 1 {
		left = []int{task.lo}
	} else {
		left = r.popRun()
	}
	return &merge{
		left:  left,
		right: right,
		out:   make([]int, 0, task.hi-task.lo),
	}
}

func (r *Run) popRun() []int {
	run := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	return run
}

func (r *Run) completeMerge() {
	r.stack = append(r.stack, r.cur.out)
	r.cur = nil
}

// finish publishes the ranking from the single remaining run.
func (r *Run) finish() {
	order := r.stack[len(r.stack)-1]
	ranking := make(domain.Ranking, len(order))
	for i, idx := range order {
		ranking[i] = r.byIdx[idx]
	}
	r.result = ranking
	r.done = true
	r.stack = nil
}
