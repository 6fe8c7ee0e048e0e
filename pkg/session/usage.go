package session

import "sync"

// Usage tracks conversation volume for a session.
type Usage struct {
	PromptChars int64 `json:"prompt_chars"`
	ReplyChars  int64 `json:"reply_chars"`
	Exchanges   int64 `json:"exchanges"`
}

// UsageTracker stores per-session conversation accounting. Thread-safe.
type UsageTracker struct {
	mu    sync.RWMutex
	usage map[string]*Usage // keyed by session key
}

// NewUsageTracker creates a new usage tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		usage: make(map[string]*Usage),
	}
}

// Record adds one completed exchange's prompt and reply sizes.
func (u *UsageTracker) Record(key string, promptChars, replyChars int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	usage, ok := u.usage[key]
	if !ok {
		usage = &Usage{}
		u.usage[key] = usage
	}

	usage.PromptChars += promptChars
	usage.ReplyChars += replyChars
	usage.Exchanges++
}

// Get returns the current usage for a session key.
func (u *UsageTracker) Get(key string) *Usage {
	u.mu.RLock()
	defer u.mu.RUnlock()

	usage, ok := u.usage[key]
	if !ok {
		return &Usage{}
	}
	// Return a copy.
	return &Usage{
		PromptChars: usage.PromptChars,
		ReplyChars:  usage.ReplyChars,
		Exchanges:   usage.Exchanges,
	}
}

// Clear removes usage data for a session key.
func (u *UsageTracker) Clear(key string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.usage, key)
}
