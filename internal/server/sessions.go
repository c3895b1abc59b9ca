package server

import (
	"sync"

	"pdf-form-rag/internal/helper"
	"pdf-form-rag/internal/rag"
)

// SessionStore keeps the live sessions keyed by id. Sessions are never shared
// and live until deleted.
type SessionStore struct {
	rag *rag.RAG

	mu       sync.RWMutex
	sessions map[string]*rag.Session
}

func NewSessionStore(r *rag.RAG) *SessionStore {
	return &SessionStore{
		rag:      r,
		sessions: make(map[string]*rag.Session),
	}
}

func (st *SessionStore) Create() (*rag.Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	session := rag.NewSession(id, st.rag)

	st.mu.Lock()
	st.sessions[id] = session
	st.mu.Unlock()
	return session, nil
}

func (st *SessionStore) Get(id string) (*rag.Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	session, ok := st.sessions[id]
	return session, ok
}

// Delete removes the session and reports whether it existed.
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
