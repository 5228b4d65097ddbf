package notify

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/starford/sowilo/internal/models"
)

type recorder struct {
	calls []string
}

func (r *recorder) InventoryUpdated(source string, _ *models.InventorySnapshot) {
	r.calls = append(r.calls, "updated:"+source)
}
func (r *recorder) InventoryCleared(source string) { r.calls = append(r.calls, "cleared:"+source) }
func (r *recorder) RefreshFailed(source string, _ error) {
	r.calls = append(r.calls, "failed:"+source)
}
func (r *recorder) ChangesDetected([]models.ChangeEvent) { r.calls = append(r.calls, "changes") }

func TestMulti_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, Nop{}, b}

	m.InventoryUpdated("inventory", &models.InventorySnapshot{})
	m.RefreshFailed("accounts", errors.New("x"))
	m.InventoryCleared("inventory")
	m.ChangesDetected(nil)

	for _, r := range []*recorder{a, b} {
		if len(r.calls) != 4 || r.calls[0] != "updated:inventory" || r.calls[1] != "failed:accounts" {
			t.Errorf("calls = %q", r.calls)
		}
	}
}

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakePublisher) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNATS_PublishesUpdated(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATS(pub, "", discard())

	snap := &models.InventorySnapshot{
		Sheets:    []models.SheetSnapshot{{SheetName: "A", Records: make([]models.FileRecord, 3)}},
		FetchedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Checksum:  "0123456789abcdef",
	}
	n.InventoryUpdated("inventory", snap)

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Subject != "sowilo.inventory.updated" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if msg.Header.Get(nats.MsgIdHdr) == "" {
		t.Error("missing message id header")
	}
	var got updatedPayload
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Records != 3 || got.Sheets != 1 || got.Checksum != "0123456789ab" {
		t.Errorf("payload = %+v", got)
	}
}

func TestNATS_SkipsEmptyChangesAndSurvivesErrors(t *testing.T) {
	pub := &fakePublisher{err: nats.ErrConnectionClosed}
	n := NewNATS(pub, "inv", discard())

	n.ChangesDetected(nil)
	if len(pub.msgs) != 0 {
		t.Error("empty change list should not publish")
	}
	n.RefreshFailed("inventory", errors.New("boom"))
	if len(pub.msgs) != 1 || pub.msgs[0].Subject != "inv.inventory.failed" {
		t.Errorf("msgs = %+v", pub.msgs)
	}
}
