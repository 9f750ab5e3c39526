// Package analytics counts wizard events.
package analytics

import (
	"expvar"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/wizard"
)

const subBuffer = 64

// Tracker counts the events of the wizards it tracks, keyed "<form>.<event kind>".
// Build it with New and always Close it.
type Tracker struct {
	logger core.Logger
	vars   *expvar.Map

	mu     sync.Mutex
	subs   map[*wizard.Subscription]struct{}
	closed bool

	wg   sync.WaitGroup
	stop chan struct{}
}

// New starts a tracker logging a summary every flushEvery; 0 disables the summaries.
func New(logger core.Logger, flushEvery time.Duration) *Tracker {
	t := &Tracker{
		logger: logger,
		vars:   new(expvar.Map).Init(),
		subs:   make(map[*wizard.Subscription]struct{}),
		stop:   make(chan struct{}),
	}
	if flushEvery > 0 {
		t.wg.Add(1)
		go t.flushLoop(flushEvery)
	}
	return t
}

// Vars exposes the counters, to be published with expvar.Publish.
func (t *Tracker) Vars() *expvar.Map {
	return t.vars
}

// Track counts the events of w until w or the tracker is closed.
func (t *Tracker) Track(w *wizard.Wizard) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	sub := w.Events().Subscribe(subBuffer)
	t.subs[sub] = struct{}{}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for ev := range sub.C {
			t.vars.Add(ev.Form+"."+string(ev.Kind), 1)
		}
		t.mu.Lock()
		delete(t.subs, sub)
		t.mu.Unlock()
	}()
}

// Count returns the number of events of kind seen for form.
func (t *Tracker) Count(form string, kind wizard.EventKind) int64 {
	if v, ok := t.vars.Get(form + "." + string(kind)).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// Summary renders the counters as "key=count" pairs sorted by key.
func (t *Tracker) Summary() string {
	var pairs []string
	t.vars.Do(func(kv expvar.KeyValue) {
		pairs = append(pairs, kv.Key+"="+kv.Value.String())
	})
	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}

func (t *Tracker) flushLoop(every time.Duration) {
	defer t.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if s := t.Summary(); s != "" {
				t.logger.Info(fmt.Sprintf("wizard events: %s", s))
			}
		}
	}
}

// Close releases every subscription and waits for the tracker's goroutines. It is safe to call twice.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.stop)
	subs := make([]*wizard.Subscription, 0, len(t.subs))
	for sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	t.wg.Wait()
}
