package pointcloud

import "sync"

// History keeps the last few clouds for temporal smoothing.
type History struct {
	mu     sync.Mutex
	clouds []*PointCloud
	next   int
	full   bool
}

// NewHistory returns a History holding at most size clouds. A size below one holds one.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{clouds: make([]*PointCloud, size)}
}

// Add stores pc, evicting the oldest cloud when full.
func (h *History) Add(pc *PointCloud) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clouds[h.next] = pc
	h.next = (h.next + 1) % len(h.clouds)
	if h.next == 0 {
		h.full = true
	}
}

// Len returns how many clouds are stored.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.clouds)
	}
	return h.next
}

// Clouds returns the stored clouds, oldest first.
func (h *History) Clouds() []*PointCloud {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]*PointCloud(nil), h.clouds[:h.next]...)
	}
	out := make([]*PointCloud, 0, len(h.clouds))
	out = append(out, h.clouds[h.next:]...)
	return append(out, h.clouds[:h.next]...)
}

// Latest returns the most recently added cloud, or nil.
func (h *History) Latest() *PointCloud {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full && h.next == 0 {
		return nil
	}
	return h.clouds[(h.next-1+len(h.clouds))%len(h.clouds)]
}
