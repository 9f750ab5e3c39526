// Package session manages the wizards opened by visitors of the website.
package session

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/wizard"
)

var ErrNotFound = errors.New("session not found")

type (
	// Session is one visitor's wizard.
	Session struct {
		ID        string
		Form      string
		Wizard    *wizard.Wizard
		CreatedAt time.Time
		LastSeen  time.Time
	}

	Repository interface {
		// Create stores a new session for w and assigns its ID.
		Create(form string, w *wizard.Wizard) (*Session, error)
		// Get returns the session and marks it as seen.
		Get(id string) (*Session, error)
		// Delete removes the session and closes its wizard.
		Delete(id string) error
		// Sweep deletes the sessions not seen for longer than ttl and returns how many.
		Sweep(ttl time.Duration) int
		Len() int
		// Close closes every session.
		Close()
	}

	// Tracker observes the wizards of new sessions.
	Tracker interface {
		Track(w *wizard.Wizard)
	}

	Service struct {
		repo       Repository
		forms      *wizard.Registry
		tracker    Tracker
		uploadTick time.Duration
	}
)

// NewService builds a session service; tracker may be nil.
func NewService(repo Repository, forms *wizard.Registry, tracker Tracker, uploadTick time.Duration) *Service {
	return &Service{repo: repo, forms: forms, tracker: tracker, uploadTick: uploadTick}
}

func (svc *Service) Forms() []wizard.Form {
	return svc.forms.List()
}

// Open starts a fresh wizard of the named form in a new session.
func (svc *Service) Open(form string) (*Session, error) {
	w, err := svc.forms.NewWizard(form, wizard.WithUploadTick(svc.uploadTick))
	if err != nil {
		return nil, err
	}
	if svc.tracker != nil {
		svc.tracker.Track(w)
	}
	sess, err := svc.repo.Create(form, w)
	if err != nil {
		w.Close()
		return nil, err
	}
	return sess, nil
}

func (svc *Service) Get(id string) (*Session, error) {
	return svc.repo.Get(id)
}

func (svc *Service) Close(id string) error {
	return svc.repo.Delete(id)
}
