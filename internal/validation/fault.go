package validation

// Severity classifies a validation fault
type Severity string

// Fault severities. Critical and error block submission; warnings advise.
const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
)

// Environment selects which identity table backs the source of truth
type Environment string

// Environments
const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// Source-of-truth origins
const (
	OriginSandboxCatalog      = "sandbox-catalog"
	OriginTenantConfiguration = "tenant-configuration"
)

// Fault is one detected problem. Remediation is written for the person
// filling out the form, not for a log reader.
type Fault struct {
	Field       string   `json:"field"`
	Actual      string   `json:"actual_value"`
	Expected    string   `json:"expected_value"`
	Source      string   `json:"source"`
	Remediation string   `json:"remediation"`
	Severity    Severity `json:"severity"`
}

// SourceOfTruthRecord is the identity record a tenant is authorized to issue
// documents under. Resolved per environment, never inferred from user input.
type SourceOfTruthRecord struct {
	TaxID        string `json:"tax_id"`
	LegalName    string `json:"legal_name"`
	FiscalRegime string `json:"fiscal_regime"`
	PostalCode   string `json:"postal_code"`
	Origin       string `json:"origin"`
}

// Result is the outcome of a validation run. Valid is true iff no fault has
// critical or error severity; warnings never block.
type Result struct {
	Valid         bool                 `json:"valid"`
	Faults        []Fault              `json:"faults"`
	Environment   Environment          `json:"environment"`
	SourceOfTruth *SourceOfTruthRecord `json:"source_of_truth,omitempty"`
}

// BlockingFaults returns the faults that prevent submission
func (r *Result) BlockingFaults() []Fault {
	var blocking []Fault
	for _, f := range r.Faults {
		if f.Severity == SeverityCritical || f.Severity == SeverityError {
			blocking = append(blocking, f)
		}
	}
	return blocking
}

// SeverityCounts tallies faults by severity
func (r *Result) SeverityCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Faults {
		counts[string(f.Severity)]++
	}
	return counts
}
