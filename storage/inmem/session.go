package inmemdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/session"
	"github.com/trezcool/admissions/core/wizard"
)

var nowFunc = time.Now // mockable

type sessionRepository struct {
	mutex sync.RWMutex
	table map[string]*session.Session

	logger core.Logger
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

var _ session.Repository = (*sessionRepository)(nil)

// NewSessionRepository returns an in-memory session store.
// If sweepEvery > 0, a janitor deletes the sessions idle for longer than ttl until Close is called.
func NewSessionRepository(ttl, sweepEvery time.Duration, logger core.Logger) *sessionRepository {
	repo := &sessionRepository{
		table:  make(map[string]*session.Session),
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if sweepEvery > 0 {
		go repo.janitor(ttl, sweepEvery)
	} else {
		close(repo.done)
	}
	return repo
}

func (repo *sessionRepository) Create(form string, w *wizard.Wizard) (*session.Session, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	id := uuid.New().String()
	if _, ok := repo.table[id]; ok {
		return nil, errors.Errorf("session id collision: %s", id)
	}
	now := nowFunc().UTC()
	sess := &session.Session{ID: id, Form: form, Wizard: w, CreatedAt: now, LastSeen: now}
	repo.table[id] = sess
	return sess, nil
}

func (repo *sessionRepository) Get(id string) (*session.Session, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	sess, ok := repo.table[id]
	if !ok {
		return nil, errors.Wrap(session.ErrNotFound, id)
	}
	sess.LastSeen = nowFunc().UTC()
	return sess, nil
}

func (repo *sessionRepository) Delete(id string) error {
	repo.mutex.Lock()
	sess, ok := repo.table[id]
	delete(repo.table, id)
	repo.mutex.Unlock()

	if !ok {
		return errors.Wrap(session.ErrNotFound, id)
	}
	sess.Wizard.Close()
	return nil
}

func (repo *sessionRepository) Sweep(ttl time.Duration) int {
	deadline := nowFunc().UTC().Add(-ttl)

	repo.mutex.Lock()
	var expired []*session.Session
	for id, sess := range repo.table {
		if sess.LastSeen.Before(deadline) {
			expired = append(expired, sess)
			delete(repo.table, id)
		}
	}
	repo.mutex.Unlock()

	for _, sess := range expired {
		sess.Wizard.Close()
	}
	return len(expired)
}

func (repo *sessionRepository) Len() int {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()
	return len(repo.table)
}

func (repo *sessionRepository) janitor(ttl, every time.Duration) {
	defer close(repo.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-repo.stop:
			return
		case <-ticker.C:
			if n := repo.Sweep(ttl); n > 0 {
				repo.logger.Debug(fmt.Sprintf("swept %d idle sessions", n))
			}
		}
	}
}

// Close stops the janitor and closes every session.
func (repo *sessionRepository) Close() {
	repo.once.Do(func() { close(repo.stop) })
	<-repo.done

	repo.mutex.Lock()
	sessions := repo.table
	repo.table = make(map[string]*session.Session)
	repo.mutex.Unlock()

	for _, sess := range sessions {
		sess.Wizard.Close()
	}
}
