// Package notify fans inventory signals out to subscribers.
package notify

import (
	"github.com/starford/sowilo/internal/models"
)

// Notifier receives the outbound signals of the refresh pipeline. Calls are
// made synchronously from the refreshing goroutine and must not block.
type Notifier interface {
	InventoryUpdated(source string, snap *models.InventorySnapshot)
	InventoryCleared(source string)
	RefreshFailed(source string, err error)
	ChangesDetected(events []models.ChangeEvent)
}

// Multi delivers every signal to each notifier in order.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) InventoryUpdated(source string, snap *models.InventorySnapshot) {
	for _, n := range m {
		n.InventoryUpdated(source, snap)
	}
}

func (m Multi) InventoryCleared(source string) {
	for _, n := range m {
		n.InventoryCleared(source)
	}
}

func (m Multi) RefreshFailed(source string, err error) {
	for _, n := range m {
		n.RefreshFailed(source, err)
	}
}

func (m Multi) ChangesDetected(events []models.ChangeEvent) {
	for _, n := range m {
		n.ChangesDetected(events)
	}
}

// Nop discards every signal.
type Nop struct{}

func (Nop) InventoryUpdated(string, *models.InventorySnapshot) {}
func (Nop) InventoryCleared(string)                            {}
func (Nop) RefreshFailed(string, error)                        {}
func (Nop) ChangesDetected([]models.ChangeEvent)               {}
