// Package export copies receipts to the clipboard and exports them in
// batches.
package export

import "tuition-receipts-go/models"

// Notifier receives UI events: copy-state changes, progress and warnings.
type Notifier interface {
	Notify(e models.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(models.Event)

func (f NotifierFunc) Notify(e models.Event) {
	f(e)
}

type nopNotifier struct{}

func (nopNotifier) Notify(models.Event) {}

// Notifiers fans one event out to several receivers.
type Notifiers []Notifier

func (ns Notifiers) Notify(e models.Event) {
	for _, n := range ns {
		n.Notify(e)
	}
}

func warning(msg string) models.Event {
	return models.Event{Type: models.EventWarning, Message: msg}
}
