package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	pkgkafka "SignalPilot/pkg/kafka"
	applogger "SignalPilot/pkg/logger"
)

// SignalSubmitter accepts a raw signal request.
type SignalSubmitter interface {
	Process(ctx context.Context, req models.SignalRequest) (*models.PipelineResult, error)
}

// KafkaSignalsHandler consumes inbound signals from a Kafka topic.
type KafkaSignalsHandler struct {
	topic   string
	intake  SignalSubmitter
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewKafkaSignalsHandler(topic string, intake SignalSubmitter, metrics domrepo.Metrics, logger *applogger.Logger) *KafkaSignalsHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &KafkaSignalsHandler{topic: topic, intake: intake, metrics: metrics, logger: logger}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle expects {"ticker","message","strong","source","received_at"}.
// Rejections are terminal and are not retried; only malformed payloads
// return an error so they reach the dead letter topic.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var req models.SignalRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode signal: %w", err)
	}
	if req.Source == "" {
		req.Source = "kafka"
	}
	res, err := h.intake.Process(ctx, req)
	if err != nil {
		h.logger.Warn("kafka signal not processed",
			applogger.String("ticker", req.Ticker),
			applogger.String("code", errs.CodeOf(err, "internal")),
			applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
			applogger.Error(err),
		)
		return nil
	}
	h.logger.Debug("kafka signal processed",
		applogger.String("signal_id", res.Signal.ID),
		applogger.Bool("execute", res.Decision.ShouldExecute),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
