package session

import "sync"

// Holder keeps the current session in memory in front of a Store. It is safe
// for concurrent use by the poller and the UI.
type Holder struct {
	store *Store

	mu      sync.RWMutex
	current Session
	ok      bool
}

// NewHolder loads the saved session from store. A corrupt file leaves the
// holder signed out and the error is returned for logging.
func NewHolder(store *Store) (*Holder, error) {
	h := &Holder{store: store}
	sess, ok, err := store.Load()
	h.current, h.ok = sess, ok
	return h, err
}

// Current returns the active session.
func (h *Holder) Current() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.ok
}

// Token returns the bearer token of the active session.
func (h *Holder) Token() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.ok {
		return "", false
	}
	return h.current.AccessToken, true
}

// Set saves sess and makes it current. The in-memory session is replaced
// even when saving fails so the running process stays signed in.
func (h *Holder) Set(sess Session) error {
	err := h.store.Save(sess)
	if !sess.Valid() {
		return err
	}
	h.mu.Lock()
	h.current, h.ok = sess, true
	h.mu.Unlock()
	return err
}

// Clear signs out in memory and on disk.
func (h *Holder) Clear() error {
	h.mu.Lock()
	h.current, h.ok = Session{}, false
	h.mu.Unlock()
	return h.store.Clear()
}
