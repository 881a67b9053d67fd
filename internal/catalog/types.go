package catalog

// Neighborhood is one settlement registered under a postal code
type Neighborhood struct {
	Name           string `json:"name"`
	SettlementType string `json:"settlement_type"`
}

// CatalogEntry is the resolved administrative hierarchy for a postal code.
// StateCode and MunicipalityCode are the authoritative identifiers; the names
// are presentation aliases that agree with the codes.
type CatalogEntry struct {
	PostalCode       string         `json:"postal_code"`
	StateCode        string         `json:"state_code"`
	StateName        string         `json:"state_name"`
	MunicipalityCode string         `json:"municipality_code"`
	MunicipalityName string         `json:"municipality_name"`
	Locality         string         `json:"locality,omitempty"`
	Neighborhoods    []Neighborhood `json:"neighborhoods"`
	Zone             string         `json:"zone,omitempty"`
}

// RelationResult is the outcome of checking a claimed state/municipality pair
// against the resolved values for a postal code
type RelationResult struct {
	Valid    bool          `json:"valid"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Matched  *CatalogEntry `json:"matched,omitempty"`
}
