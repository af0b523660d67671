package searcher

// Result is a ranked search hit.
type Result struct {
	ID    uint64
	Score float32
}

// worse reports whether a ranks below b: a lower score, or an equal score
// with a higher id.
func worse(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

// TopK is a bounded min-heap holding the k best results seen so far.
// The root is the worst retained result.
// It does NOT implement container/heap to avoid interface overhead.
type TopK struct {
	k     int
	items []Result
}

// NewTopK creates a heap retaining at most k results.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, items: make([]Result, 0, min(k+1, 1024))}
}

// Len returns the number of retained results.
func (h *TopK) Len() int { return len(h.items) }

// Push offers a result. Once the heap holds k results, a new result replaces
// the root only if it ranks above it.
func (h *TopK) Push(r Result) {
	if h.k == 0 {
		return
	}
	if len(h.items) < h.k {
		h.items = append(h.items, r)
		h.siftUp(len(h.items) - 1)
		return
	}
	if worse(h.items[0], r) {
		h.items[0] = r
		h.siftDown(0)
	}
}

// Pop removes and returns the worst retained result.
func (h *TopK) Pop() (Result, bool) {
	n := len(h.items)
	if n == 0 {
		return Result{}, false
	}
	r := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return r, true
}

// Drain empties the heap and returns its results best first.
func (h *TopK) Drain() []Result {
	out := make([]Result, len(h.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = h.Pop()
	}
	return out
}

func (h *TopK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(h.items[i], h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *TopK) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && worse(h.items[right], h.items[left]) {
			child = right
		}
		if !worse(h.items[child], h.items[i]) {
			break
		}
		h.items[i], h.items[child] = h.items[child], h.items[i]
		i = child
	}
}
