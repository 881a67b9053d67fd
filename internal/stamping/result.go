package stamping

import "time"

// StampProof is the certification artifact set returned by the provider when
// a document is accepted. Every field comes verbatim from the authority's
// response; nothing here is synthesized locally.
type StampProof struct {
	UUID            string    `json:"uuid"`
	DigitalSeal     string    `json:"digital_seal"`
	AuthoritySeal   string    `json:"authority_seal"`
	OriginalChain   string    `json:"original_chain"`
	QRPayload       string    `json:"qr_payload"`
	Timestamp       time.Time `json:"timestamp"`
	CertificateUsed string    `json:"certificate_used"`
}

// StampError describes why a stamping attempt did not certify. Retryable is
// true only for transport-level failures; a provider rejection is final until
// the document changes.
type StampError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
}

// StampingResult is the outcome of one stamping attempt. Exactly one of Proof
// and Error is set.
type StampingResult struct {
	Success bool        `json:"success"`
	Proof   *StampProof `json:"proof,omitempty"`
	Error   *StampError `json:"error,omitempty"`
}
