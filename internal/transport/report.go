package transport

import (
	"context"
	"errors"

	apperr "github.com/Alexander-D-Karpov/tandem/internal/common/errors"
	"github.com/Alexander-D-Karpov/tandem/internal/common/logging"
	"go.uber.org/zap"
)

const (
	OpSendText     = "send_text"
	OpSendActivity = "send_activity"
	OpForward      = "forward"
)

type FailureRecorder interface {
	RecordDeliveryFailure(op string)
}

// ReportFailure logs a failed delivery and counts it. Failed deliveries are
// never retried and never surfaced to the other participant.
func ReportFailure(ctx context.Context, rec FailureRecorder, err error) {
	if err == nil {
		return
	}

	op := "unknown"
	fields := []zap.Field{zap.Error(err)}

	var de *apperr.DeliveryError
	if errors.As(err, &de) {
		op = de.Op
		fields = append(fields, zap.Int64("recipient", de.Recipient))
	}
	fields = append(fields, zap.String("op", op))

	logging.FromContext(ctx).Warn("delivery failed", fields...)
	if rec != nil {
		rec.RecordDeliveryFailure(op)
	}
}
