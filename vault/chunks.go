package vault

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionComplete
	sessionAborted
)

type chunkSession struct {
	mu        sync.Mutex
	dir       string
	total     int
	received  map[int]bool
	state     sessionState
	createdAt time.Time
}

// ChunkStore accumulates the pieces of in-progress chunked uploads.
// Chunks are spooled to disk under root/<owner>/<uploadID>/<index> and
// the whole directory is released when the session ends, on every path.
type ChunkStore struct {
	root string

	mu       sync.Mutex
	sessions map[string]*chunkSession
}

func NewChunkStore(root string) *ChunkStore {
	return &ChunkStore{
		root:     root,
		sessions: make(map[string]*chunkSession),
	}
}

func sessionKey(owner uuid.UUID, uploadID string) string {
	return owner.String() + "/" + uploadID
}

func (s *ChunkStore) lookup(owner uuid.UUID, uploadID string) *chunkSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionKey(owner, uploadID)]
}

// SubmitChunk stores one chunk for the session, creating the session on
// first use. Resubmitting an index overwrites the previous bytes, so a
// retried chunk is harmless. Distinct indices may be submitted
// concurrently and in any order.
func (s *ChunkStore) SubmitChunk(owner uuid.UUID, uploadID string, index, total int, data []byte) error {
	// The upload id becomes a directory name, so it must not carry
	// path components.
	if uploadID == "" || uploadID == "." || uploadID == ".." || filepath.Base(uploadID) != uploadID {
		return fmt.Errorf("%w: bad upload id", ErrValidation)
	}
	if total <= 0 {
		return fmt.Errorf("%w: total must be positive, got %d", ErrInvalidChunk, total)
	}
	if index < 0 || index >= total {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidChunk, index, total)
	}

	key := sessionKey(owner, uploadID)
	s.mu.Lock()
	sess, exists := s.sessions[key]
	if !exists {
		sess = &chunkSession{
			dir:       filepath.Join(s.root, owner.String(), uploadID),
			total:     total,
			received:  make(map[int]bool),
			createdAt: time.Now(),
		}
		s.sessions[key] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.state {
	case sessionComplete:
		return ErrAlreadyFinalized
	case sessionAborted:
		return fmt.Errorf("%w: session aborted", ErrInvalidChunk)
	}
	if sess.total != total {
		return fmt.Errorf("%w: total changed from %d to %d", ErrInvalidChunk, sess.total, total)
	}

	if err := os.MkdirAll(sess.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create session dir: %v", ErrStorageUnavailable, err)
	}
	path := filepath.Join(sess.dir, strconv.Itoa(index))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: write chunk %d: %v", ErrStorageUnavailable, index, err)
	}
	sess.received[index] = true
	return nil
}

// IsComplete reports whether every index in [0, total) has arrived.
func (s *ChunkStore) IsComplete(owner uuid.UUID, uploadID string) bool {
	sess := s.lookup(owner, uploadID)
	if sess == nil {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state == sessionOpen && len(sess.received) == sess.total
}

// Finalize concatenates the chunks in index order and releases the
// session's temporary storage. A missing index aborts the session and
// returns ErrIncompleteUpload. Finalize holds the session lock for its
// whole duration, so a chunk submitted mid-finalize either lands before
// concatenation starts or is rejected after it ends.
func (s *ChunkStore) Finalize(owner uuid.UUID, uploadID string) ([]byte, error) {
	sess := s.lookup(owner, uploadID)
	if sess == nil {
		return nil, fmt.Errorf("%w: upload session %s", ErrNotFound, uploadID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.state {
	case sessionComplete:
		return nil, ErrAlreadyFinalized
	case sessionAborted:
		return nil, fmt.Errorf("%w: session aborted", ErrNotFound)
	}

	for i := 0; i < sess.total; i++ {
		if !sess.received[i] {
			s.release(sess, sessionAborted)
			return nil, fmt.Errorf("%w: missing chunk %d of %d", ErrIncompleteUpload, i, sess.total)
		}
	}

	var buf bytes.Buffer
	for i := 0; i < sess.total; i++ {
		data, err := os.ReadFile(filepath.Join(sess.dir, strconv.Itoa(i)))
		if err != nil {
			s.release(sess, sessionAborted)
			return nil, fmt.Errorf("%w: read chunk %d: %v", ErrStorageUnavailable, i, err)
		}
		buf.Write(data)
	}

	s.release(sess, sessionComplete)
	return buf.Bytes(), nil
}

// Abort cancels the session and frees its temporary storage. Aborting
// an unknown session returns ErrNotFound.
func (s *ChunkStore) Abort(owner uuid.UUID, uploadID string) error {
	sess := s.lookup(owner, uploadID)
	if sess == nil {
		return fmt.Errorf("%w: upload session %s", ErrNotFound, uploadID)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != sessionOpen {
		return ErrAlreadyFinalized
	}
	s.release(sess, sessionAborted)
	return nil
}

// release transitions the session to a terminal state and frees its
// chunk files. The entry stays in the map as a tombstone so a second
// Finalize or a late chunk is rejected instead of silently starting a
// fresh session; ReapStale clears tombstones. Must be called with the
// session lock held.
func (s *ChunkStore) release(sess *chunkSession, state sessionState) {
	sess.state = state
	sess.received = nil
	os.RemoveAll(sess.dir)
}

// ReapStale drops sessions older than maxAge, aborting any still open,
// and returns how many were removed. Run periodically so abandoned
// uploads don't pin disk space.
func (s *ChunkStore) ReapStale(maxAge time.Duration, now time.Time) int {
	s.mu.Lock()
	stale := make(map[string]*chunkSession)
	for key, sess := range s.sessions {
		if now.Sub(sess.createdAt) > maxAge {
			stale[key] = sess
		}
	}
	s.mu.Unlock()

	for key, sess := range stale {
		sess.mu.Lock()
		if sess.state == sessionOpen {
			s.release(sess, sessionAborted)
		}
		sess.mu.Unlock()

		s.mu.Lock()
		delete(s.sessions, key)
		s.mu.Unlock()
	}
	return len(stale)
}
