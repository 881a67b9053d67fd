package stamping

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const wellFormedDocument = `<?xml version="1.0" encoding="UTF-8"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Version="4.0" Folio="1042" Fecha="2026-03-14T08:00:00" SubTotal="12500.00" Moneda="MXN" Total="14500.00" TipoDeComprobante="I" Exportacion="01" LugarExpedicion="02300">
  <cfdi:Emisor Rfc="EKU9003173C9" Nombre="ESCUELA KEMPER URGATE" RegimenFiscal="601"></cfdi:Emisor>
</cfdi:Comprobante>`

type fakeClient struct {
	calls  int
	result *StampingResult
	err    error
}

func (c *fakeClient) Stamp(_ context.Context, _ StampRequest) (*StampingResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type fakePublisher struct {
	stamped  []string
	rejected []string
	err      error
}

func (p *fakePublisher) DocumentStamped(_ context.Context, documentID string, _ *StampProof) error {
	p.stamped = append(p.stamped, documentID)
	return p.err
}

func (p *fakePublisher) DocumentRejected(_ context.Context, documentID string, _ *StampError) error {
	p.rejected = append(p.rejected, documentID)
	return p.err
}

func certifiedResult() *StampingResult {
	return &StampingResult{
		Success: true,
		Proof: &StampProof{
			UUID:            "ad662d33-6934-459c-a128-BDf0393f0f44",
			DigitalSeal:     "sello-cfd",
			AuthoritySeal:   "sello-sat",
			OriginalChain:   "||1.1|ad662d33|...||",
			QRPayload:       "https://verificacfdi.facturaelectronica.sat.gob.mx/...",
			Timestamp:       time.Date(2026, 3, 14, 8, 0, 12, 0, time.UTC),
			CertificateUsed: "30001000000400002495",
		},
	}
}

func TestOrchestrator_Stamp(t *testing.T) {
	t.Run("Certified Document", func(t *testing.T) {
		client := &fakeClient{result: certifiedResult()}
		publisher := &fakePublisher{}
		orchestrator := NewOrchestrator(client, publisher, zap.NewNop())

		var stages []Stage
		orchestrator.OnStage(func(s Stage) { stages = append(stages, s) })

		result := orchestrator.Stamp(context.Background(), "doc-1", StampRequest{
			DocumentXML: wellFormedDocument,
			IssuerRFC:   "EKU9003173C9",
		})

		require.True(t, result.Success)
		require.NotNil(t, result.Proof)
		assert.Equal(t, "ad662d33-6934-459c-a128-BDf0393f0f44", result.Proof.UUID)
		assert.Nil(t, result.Error)
		assert.Equal(t, []Stage{StageValidating, StageSubmitting, StageCertified}, stages)
		assert.Equal(t, []string{"doc-1"}, publisher.stamped)
		assert.Empty(t, publisher.rejected)
	})

	t.Run("Structural Failure Never Reaches Provider", func(t *testing.T) {
		client := &fakeClient{result: certifiedResult()}
		publisher := &fakePublisher{}
		orchestrator := NewOrchestrator(client, publisher, zap.NewNop())

		var stages []Stage
		orchestrator.OnStage(func(s Stage) { stages = append(stages, s) })

		result := orchestrator.Stamp(context.Background(), "doc-2", StampRequest{
			DocumentXML: "<not-a-document/>",
		})

		require.False(t, result.Success)
		require.NotNil(t, result.Error)
		assert.Equal(t, "XML-ESTRUCTURA", result.Error.Code)
		assert.False(t, result.Error.Retryable)
		assert.Zero(t, client.calls)
		assert.Equal(t, []Stage{StageValidating, StageRejected}, stages)
		assert.Equal(t, []string{"doc-2"}, publisher.rejected)
	})

	t.Run("Transport Failure Is Retryable", func(t *testing.T) {
		client := &fakeClient{err: errors.New("dial tcp: connection refused")}
		publisher := &fakePublisher{}
		orchestrator := NewOrchestrator(client, publisher, zap.NewNop())

		result := orchestrator.Stamp(context.Background(), "doc-3", StampRequest{
			DocumentXML: wellFormedDocument,
		})

		require.False(t, result.Success)
		require.NotNil(t, result.Error)
		assert.Equal(t, "PROVEEDOR-NO-DISPONIBLE", result.Error.Code)
		assert.True(t, result.Error.Retryable)
		assert.Contains(t, result.Error.Detail, "connection refused")
		assert.Equal(t, 1, client.calls)
	})

	t.Run("Provider Rejection Is Final And Verbatim", func(t *testing.T) {
		client := &fakeClient{result: &StampingResult{
			Success: false,
			Error: &StampError{
				Code:    "CFDI40147",
				Message: "El campo DomicilioFiscalReceptor no corresponde",
				Detail:  "valor registrado: 01000",
			},
		}}
		publisher := &fakePublisher{}
		orchestrator := NewOrchestrator(client, publisher, zap.NewNop())

		result := orchestrator.Stamp(context.Background(), "doc-4", StampRequest{
			DocumentXML: wellFormedDocument,
		})

		require.False(t, result.Success)
		assert.Equal(t, "CFDI40147", result.Error.Code)
		assert.Equal(t, "El campo DomicilioFiscalReceptor no corresponde", result.Error.Message)
		assert.False(t, result.Error.Retryable)
		assert.Equal(t, 1, client.calls)
		assert.Equal(t, []string{"doc-4"}, publisher.rejected)
	})

	t.Run("Publish Failure Does Not Fail Stamping", func(t *testing.T) {
		client := &fakeClient{result: certifiedResult()}
		publisher := &fakePublisher{err: errors.New("broker unavailable")}
		orchestrator := NewOrchestrator(client, publisher, zap.NewNop())

		result := orchestrator.Stamp(context.Background(), "doc-5", StampRequest{
			DocumentXML: wellFormedDocument,
		})
		assert.True(t, result.Success)
	})

	t.Run("Nil Publisher Is Valid", func(t *testing.T) {
		orchestrator := NewOrchestrator(&fakeClient{result: certifiedResult()}, nil, zap.NewNop())

		result := orchestrator.Stamp(context.Background(), "doc-6", StampRequest{
			DocumentXML: wellFormedDocument,
		})
		assert.True(t, result.Success)
	})
}

func TestCheckStructure(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"Well Formed", wellFormedDocument, ""},
		{"Empty", "   ", "empty document"},
		{"Malformed", "<cfdi:Comprobante Version=", "malformed XML"},
		{"Wrong Root", "<Factura Version=\"4.0\"/>", "expected Comprobante"},
		{"Missing Fecha", `<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Version="4.0" Folio="1"/>`, "missing mandatory attribute Fecha"},
		{"Empty Version", `<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Version="" Folio="1" Fecha="2026-03-14T08:00:00"/>`, "missing mandatory attribute Version"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkStructure(tc.payload)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
