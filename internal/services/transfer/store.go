package transfer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

// sessionStore keeps sessions in a go-memdb table for indexed lookup and
// cheap iteration during sweeps. Sessions are mutated in place through the
// pointers it hands out, so every access, reads included, must hold
// Service.mu; the store relies on that single-mutex discipline rather than
// memdb's copy-on-write contract.
type sessionStore struct {
	memDB *memdb.MemDB
}

func newSessionStore() (*sessionStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"sessions": {
				Name: "sessions",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &UUIDValueIndexer{
							Getter: func(obj interface{}) uuid.UUID {
								return obj.(*Session).Id
							},
						},
					},
				},
			},
		},
	}

	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	return &sessionStore{
		memDB: memDB,
	}, nil
}

func (s *sessionStore) insert(session *Session) error {
	txn := s.memDB.Txn(true)
	err := txn.Insert("sessions", session)
	if err != nil {
		txn.Abort()
		return fmt.Errorf("failed to insert session: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *sessionStore) get(id uuid.UUID) (*Session, bool) {
	txn := s.memDB.Txn(false)
	defer txn.Abort()

	raw, err := txn.First("sessions", "id", id)
	if err != nil || raw == nil {
		return nil, false
	}

	return raw.(*Session), true
}

func (s *sessionStore) delete(session *Session) error {
	txn := s.memDB.Txn(true)
	err := txn.Delete("sessions", session)
	if err != nil {
		txn.Abort()
		return fmt.Errorf("failed to delete session: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *sessionStore) all() []*Session {
	txn := s.memDB.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get("sessions", "id")
	if err != nil {
		return nil
	}

	var sessions []*Session
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		sessions = append(sessions, raw.(*Session))
	}

	return sessions
}
