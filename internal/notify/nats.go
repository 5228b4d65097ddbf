package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/models"
)

// Subject suffixes appended to the configured prefix.
const (
	SubjectUpdated = "inventory.updated"
	SubjectCleared = "inventory.cleared"
	SubjectFailed  = "inventory.failed"
	SubjectChanges = "changes.detected"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "sowilo"

type publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATS publishes signals as JSON messages. Publishing is fire-and-forget:
// failures are logged and never reach the refresh pipeline.
type NATS struct {
	pub    publisher
	prefix string
	logger *slog.Logger
}

var _ Notifier = (*NATS)(nil)

// DialNATS connects to url and returns a publisher plus the connection, which
// the caller must drain on shutdown.
func DialNATS(url, prefix string, logger *slog.Logger) (*NATS, *nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("sowilo"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("notify: nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("notify: nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("notify: nats connection closed")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("notify: connect nats: %w", err)
	}
	return NewNATS(conn, prefix, logger), conn, nil
}

// NewNATS wraps an existing connection.
func NewNATS(pub publisher, prefix string, logger *slog.Logger) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{pub: pub, prefix: prefix, logger: logger}
}

type updatedPayload struct {
	Source    string    `json:"source"`
	Sheets    int       `json:"sheets"`
	Records   int       `json:"records"`
	Checksum  string    `json:"checksum"`
	FetchedAt time.Time `json:"fetched_at"`
}

type failedPayload struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type changesPayload struct {
	Count  int                  `json:"count"`
	Events []models.ChangeEvent `json:"events"`
}

func (n *NATS) InventoryUpdated(source string, snap *models.InventorySnapshot) {
	if snap == nil {
		return
	}
	n.publish(SubjectUpdated, updatedPayload{
		Source:    source,
		Sheets:    len(snap.Sheets),
		Records:   snap.RecordCount(),
		Checksum:  checksum.Short(snap.Checksum),
		FetchedAt: snap.FetchedAt,
	})
}

func (n *NATS) InventoryCleared(source string) {
	n.publish(SubjectCleared, map[string]string{"source": source})
}

func (n *NATS) RefreshFailed(source string, err error) {
	n.publish(SubjectFailed, failedPayload{Source: source, Error: err.Error()})
}

func (n *NATS) ChangesDetected(events []models.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	n.publish(SubjectChanges, changesPayload{Count: len(events), Events: events})
}

func (n *NATS) publish(suffix string, payload any) {
	subject := n.prefix + "." + suffix
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("notify: marshal", slog.String("subject", subject), slog.Any("error", err))
		return
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.New().String())
	if err := n.pub.PublishMsg(msg); err != nil {
		n.logger.Warn("notify: publish failed", slog.String("subject", subject), slog.Any("error", err))
	}
}
