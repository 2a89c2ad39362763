package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

// SandboxProcessor approves every well-formed charge and mints a fake
// provider reference. It stands in for the real PSP integration in
// development and tests.
type SandboxProcessor struct {
	logger *zap.SugaredLogger
}

var _ ports.PaymentProcessor = (*SandboxProcessor)(nil)

func NewSandboxProcessor(logger *zap.SugaredLogger) *SandboxProcessor {
	return &SandboxProcessor{logger: logger}
}

func (p *SandboxProcessor) Charge(ctx context.Context, payerID domain.UserID, amountCents int64, reference string) (string, error) {
	if payerID == "" {
		return "", fmt.Errorf("payer id is required")
	}
	if amountCents <= 0 {
		return "", fmt.Errorf("charge amount must be positive, got %d", amountCents)
	}

	ref := fmt.Sprintf("sandbox_%s", uuid.New().String())
	if p.logger != nil {
		p.logger.Infow("Sandbox charge approved",
			"payer_id", payerID,
			"amount_cents", amountCents,
			"reference", reference,
			"provider_ref", ref)
	}
	return ref, nil
}
