package wizard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/admissions/core/wizard"
	"github.com/trezcool/admissions/tests"
)

func TestHub(t *testing.T) {
	hub := wizard.NewHub()
	a := hub.Subscribe(2)
	b := hub.Subscribe(1)
	assert.Equal(t, 2, hub.Len())

	hub.Publish(wizard.Event{Kind: wizard.EventStepEntered, Step: 1})
	hub.Publish(wizard.Event{Kind: wizard.EventStepEntered, Step: 2}) // dropped for b

	ev := <-a.C
	assert.Equal(t, 1, ev.Step)
	assert.False(t, ev.At.IsZero())
	assert.Equal(t, 2, (<-a.C).Step)
	assert.Equal(t, 1, (<-b.C).Step)
	assert.Len(t, b.C, 0)

	a.Close()
	a.Close()
	assert.Equal(t, 1, hub.Len())
	_, ok := <-a.C
	assert.False(t, ok)

	hub.Close()
	_, ok = <-b.C
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())

	late := hub.Subscribe(1)
	_, ok = <-late.C
	assert.False(t, ok, "subscribing to a closed hub yields a closed subscription")
	late.Close()

	hub.Publish(wizard.Event{Kind: wizard.EventReset}) // no subscribers, no panic
}

func TestWizard_stepEnteredEvents(t *testing.T) {
	w := newWizard(t, new(testutil.Gateway))
	sub := w.Events().Subscribe(16)
	defer sub.Close()

	goToStep2(t, w)
	_, _ = w.Prev()
	_, _ = w.Prev() // at step 1: no move, no event
	_ = w.Reset()

	var got []wizard.Event
	for len(sub.C) > 0 {
		got = append(got, <-sub.C)
	}
	kinds := make([]wizard.EventKind, len(got))
	for i, ev := range got {
		kinds[i] = ev.Kind
		assert.Equal(t, "test", ev.Form)
	}
	assert.Equal(t, []wizard.EventKind{
		wizard.EventStepEntered, wizard.EventStepEntered, wizard.EventReset, wizard.EventStepEntered,
	}, kinds)
	assert.Equal(t, []int{2, 1, 1, 1}, []int{got[0].Step, got[1].Step, got[2].Step, got[3].Step})
}

func TestWizard_validationFailedEvent(t *testing.T) {
	w := newWizard(t, new(testutil.Gateway))
	sub := w.Events().Subscribe(4)
	defer sub.Close()

	moved, err := w.Next(context.Background())
	assert.NoError(t, err)
	assert.False(t, moved)

	ev := <-sub.C
	assert.Equal(t, wizard.EventValidationFailed, ev.Kind)
	assert.Contains(t, ev.Errors, "name")
	assert.Contains(t, ev.Errors, "email")
}
