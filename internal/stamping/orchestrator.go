package stamping

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Stage is the lifecycle position of a stamping attempt
type Stage string

// Stamping stages, in order of progression
const (
	StageIdle       Stage = "idle"
	StageValidating Stage = "validating"
	StageSubmitting Stage = "submitting"
	StageCertified  Stage = "certified"
	StageRejected   Stage = "rejected"
)

// EventPublisher receives the terminal outcome of a stamping attempt. The
// orchestrator treats publish failures as log-only; an event that cannot be
// emitted never fails the stamping itself.
type EventPublisher interface {
	DocumentStamped(ctx context.Context, documentID string, proof *StampProof) error
	DocumentRejected(ctx context.Context, documentID string, stampErr *StampError) error
}

// Orchestrator drives a document through structural checking, submission and
// outcome handling. It never modifies the document: by the time a payload
// reaches this stage it is final.
type Orchestrator struct {
	client    Client
	publisher EventPublisher
	logger    *zap.Logger

	// onStage, when set, observes every stage transition. Used by callers
	// that surface progress to a user.
	onStage func(Stage)
}

// NewOrchestrator creates a stamping orchestrator. publisher may be nil when
// event emission is disabled.
func NewOrchestrator(client Client, publisher EventPublisher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		publisher: publisher,
		logger:    logger.Named("stamping_orchestrator"),
	}
}

// OnStage registers a stage-transition observer
func (o *Orchestrator) OnStage(fn func(Stage)) {
	o.onStage = fn
}

func (o *Orchestrator) transition(stage Stage) {
	if o.onStage != nil {
		o.onStage(stage)
	}
}

// Stamp submits a serialized document for certification. Structural failures
// are detected locally and never reach the provider. Transport failures are
// marked retryable; provider rejections are returned verbatim and are final.
func (o *Orchestrator) Stamp(ctx context.Context, documentID string, req StampRequest) *StampingResult {
	o.transition(StageValidating)

	if err := checkStructure(req.DocumentXML); err != nil {
		o.logger.Warn("Document failed structural check",
			zap.String("document_id", documentID),
			zap.Error(err))
		result := &StampingResult{
			Success: false,
			Error: &StampError{
				Code:      "XML-ESTRUCTURA",
				Message:   "el documento no tiene la estructura mínima de un comprobante",
				Detail:    err.Error(),
				Retryable: false,
			},
		}
		o.finishRejected(ctx, documentID, result)
		return result
	}

	o.transition(StageSubmitting)

	result, err := o.client.Stamp(ctx, req)
	if err != nil {
		o.logger.Error("Certification provider unreachable",
			zap.String("document_id", documentID),
			zap.Error(err))
		result = &StampingResult{
			Success: false,
			Error: &StampError{
				Code:      "PROVEEDOR-NO-DISPONIBLE",
				Message:   "no fue posible contactar al proveedor de certificación",
				Detail:    err.Error(),
				Retryable: true,
			},
		}
		o.finishRejected(ctx, documentID, result)
		return result
	}

	if !result.Success {
		o.finishRejected(ctx, documentID, result)
		return result
	}

	o.transition(StageCertified)
	o.logger.Info("Document certified",
		zap.String("document_id", documentID),
		zap.String("uuid", result.Proof.UUID))

	if o.publisher != nil {
		if err := o.publisher.DocumentStamped(ctx, documentID, result.Proof); err != nil {
			o.logger.Error("Failed to publish stamped event",
				zap.String("document_id", documentID),
				zap.Error(err))
		}
	}
	return result
}

func (o *Orchestrator) finishRejected(ctx context.Context, documentID string, result *StampingResult) {
	o.transition(StageRejected)
	if o.publisher != nil {
		if err := o.publisher.DocumentRejected(ctx, documentID, result.Error); err != nil {
			o.logger.Error("Failed to publish rejected event",
				zap.String("document_id", documentID),
				zap.Error(err))
		}
	}
}

// checkStructure verifies the payload is well-formed XML whose root element
// is a Comprobante carrying the mandatory header attributes. This is a cheap
// local gate, not a schema validation; its job is to avoid burning a provider
// round trip on a payload that cannot possibly certify.
func checkStructure(payload string) error {
	if strings.TrimSpace(payload) == "" {
		return fmt.Errorf("empty document")
	}

	decoder := xml.NewDecoder(strings.NewReader(payload))
	for {
		token, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("malformed XML: %w", err)
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "Comprobante" {
			return fmt.Errorf("root element is %q, expected Comprobante", start.Name.Local)
		}
		required := map[string]bool{"Version": false, "Fecha": false, "Folio": false}
		for _, attr := range start.Attr {
			if _, wanted := required[attr.Name.Local]; wanted && attr.Value != "" {
				required[attr.Name.Local] = true
			}
		}
		for name, present := range required {
			if !present {
				return fmt.Errorf("missing mandatory attribute %s", name)
			}
		}
		return nil
	}
}
