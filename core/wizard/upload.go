package wizard

import (
	"time"

	"github.com/pkg/errors"
)

const uploadStep = 10 // % per tick

// AttachFile stores fh in a file field and starts its simulated upload progress.
// A previous upload of the same field is abandoned.
func (w *Wizard) AttachFile(field string, fh FileHandle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkEditing(); err != nil {
		return err
	}
	f, ok := w.fields[field]
	if !ok {
		return errors.Wrap(ErrUnknownField, field)
	}
	if f.Kind != KindFile {
		return errors.Wrap(ErrNotFileField, field)
	}

	w.stopUploadLocked(field)
	w.draft.SetField(field, fh)
	w.draft.setProgress(field, 0)

	stop := make(chan struct{})
	w.uploads[field] = stop
	go w.runUpload(field, stop, w.uploadTick)
	return nil
}

// UploadProgress returns the simulated progress of a file field, in [0, 100].
func (w *Wizard) UploadProgress(field string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.progress[field]
}

func (w *Wizard) runUpload(field string, stop chan struct{}, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := w.advanceUpload(field, stop); done {
				return
			}
		}
	}
}

func (w *Wizard) advanceUpload(field string, stop chan struct{}) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.uploads[field] != stop { // superseded or stopped
		return true
	}
	pct := w.draft.progress[field] + uploadStep
	w.draft.setProgress(field, pct)
	w.hub.Publish(Event{Kind: EventUploadProgress, Form: w.name, Step: w.step, Field: field, Progress: w.draft.progress[field]})
	if w.draft.progress[field] == 100 {
		delete(w.uploads, field)
		return true
	}
	return false
}

func (w *Wizard) stopUploadLocked(field string) {
	if stop, ok := w.uploads[field]; ok {
		close(stop)
		delete(w.uploads, field)
	}
}

func (w *Wizard) stopUploadsLocked() {
	for field := range w.uploads {
		w.stopUploadLocked(field)
	}
}
