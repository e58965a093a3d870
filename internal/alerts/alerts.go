// Package alerts publishes close approaches found by screening.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/star/orbitscreen/internal/events"
	"github.com/star/orbitscreen/internal/metrics"
)

// Alert is one close approach together with the report it came from.
type Alert struct {
	ReportID uuid.UUID `json:"report_id"`
	events.CloseApproach
	Threshold float64   `json:"distance_threshold_km"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher sends alerts somewhere.
type Publisher interface {
	Publish(ctx context.Context, a Alert) error
	Close() error
}

// PublishReport sends one alert per close approach in r and returns how many
// failed. Failures are logged and do not stop the rest.
func PublishReport(ctx context.Context, pub Publisher, r *events.Report, logger *slog.Logger) int {
	var failed int
	for _, ca := range r.CloseApproaches {
		if ctx.Err() != nil {
			return failed + 1
		}
		err := pub.Publish(ctx, Alert{
			ReportID:      r.ID,
			CloseApproach: ca,
			Threshold:     r.DistanceThreshold,
			CreatedAt:     r.CreatedAt,
		})
		metrics.RecordAlert(err)
		if err != nil {
			failed++
			logger.Warn("alert publish failed",
				"report_id", r.ID,
				"pair", fmt.Sprintf("%d/%d", ca.PrimaryID, ca.SecondaryID),
				"error", err,
			)
		}
	}
	return failed
}

// NATSConfig holds connection settings for NATSPublisher.
type NATSConfig struct {
	URL            string
	SubjectPrefix  string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// NATSPublisher publishes alerts as JSON on <prefix>.<primary>.<secondary>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// ConnectNATS dials the server in cfg.
func ConnectNATS(cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With("component", "alerts")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("nats connected", "url", conn.ConnectedUrl(), "subject_prefix", cfg.SubjectPrefix)

	return &NATSPublisher{conn: conn, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Subject returns the subject a is published on.
func Subject(prefix string, a Alert) string {
	return fmt.Sprintf("%s.%d.%d", prefix, a.PrimaryID, a.SecondaryID)
}

func (p *NATSPublisher) Publish(_ context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return p.conn.Publish(Subject(p.prefix, a), payload)
}

// Close flushes pending alerts and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// LogPublisher writes alerts to a logger. It is used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "alerts")}
}

func (p *LogPublisher) Publish(_ context.Context, a Alert) error {
	p.logger.Info("close approach",
		"report_id", a.ReportID,
		"primary_id", a.PrimaryID,
		"secondary_id", a.SecondaryID,
		"epoch", a.Epoch.ISO(),
		"distance_km", a.Distance,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Multi publishes each alert to every publisher in turn.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, a Alert) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
