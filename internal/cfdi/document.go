package cfdi

import "time"

// LocationType classifies a waybill location
type LocationType string

// Location types
const (
	LocationOrigin      LocationType = "origin"
	LocationDestination LocationType = "destination"
	LocationWaypoint    LocationType = "waypoint"
)

// Transport actor roles (official figure codes)
const (
	ActorRoleOperator = "01"
	ActorRoleOwner    = "02"
	ActorRoleTenant   = "03"
	ActorRoleNotified = "04"
)

// Address is a physical domicile as the authority expects it
type Address struct {
	Street       string `json:"street,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	Locality     string `json:"locality,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`
	PostalCode   string `json:"postal_code"`
}

// Issuer is the party issuing the document
type Issuer struct {
	RFC          string `json:"rfc"`
	LegalName    string `json:"legal_name"`
	FiscalRegime string `json:"fiscal_regime"`
}

// Recipient is the party receiving the document
type Recipient struct {
	RFC              string `json:"rfc"`
	LegalName        string `json:"legal_name"`
	FiscalPostalCode string `json:"fiscal_postal_code"`
	FiscalRegime     string `json:"fiscal_regime"`
	CFDIUse          string `json:"cfdi_use"`
}

// Location is one stop of the freight route. DistanceKM is the cumulative
// distance covered and is only emitted on destination locations.
type Location struct {
	Type       LocationType `json:"type"`
	ID         string       `json:"id"`
	RFC        string       `json:"rfc"`
	Name       string       `json:"name"`
	Address    Address      `json:"address"`
	Timestamp  time.Time    `json:"timestamp"`
	DistanceKM float64      `json:"distance_km,omitempty"`
	Latitude   *float64     `json:"latitude,omitempty"`
	Longitude  *float64     `json:"longitude,omitempty"`
}

// GoodTransfer relates a quantity of a good to the location pair it travels
// between. Both location ids must exist in the document.
type GoodTransfer struct {
	Quantity      float64 `json:"quantity"`
	OriginID      string  `json:"origin_id"`
	DestinationID string  `json:"destination_id"`
}

// Good is one transported merchandise line
type Good struct {
	ProductCode   string         `json:"product_code"`
	Description   string         `json:"description"`
	Quantity      float64        `json:"quantity"`
	UnitCode      string         `json:"unit_code"`
	WeightKG      float64        `json:"weight_kg"`
	Value         float64        `json:"value"`
	Currency      string         `json:"currency"`
	Hazardous     bool           `json:"hazardous"`
	HazardousCode string         `json:"hazardous_code,omitempty"`
	PackagingCode string         `json:"packaging_code,omitempty"`
	TariffCode    string         `json:"tariff_code,omitempty"`
	Transfers     []GoodTransfer `json:"transfers,omitempty"`
}

// Trailer is one towed unit
type Trailer struct {
	SubType string `json:"sub_type"`
	Plate   string `json:"plate"`
}

// Transport describes the vehicle, its federal permit and insurance
type Transport struct {
	PermitType       string    `json:"permit_type"`
	PermitNumber     string    `json:"permit_number"`
	VehicleConfig    string    `json:"vehicle_config"`
	PlateNumber      string    `json:"plate_number"`
	ModelYear        int       `json:"model_year"`
	InsuranceCompany string    `json:"insurance_company"`
	InsurancePolicy  string    `json:"insurance_policy"`
	Trailers         []Trailer `json:"trailers,omitempty"`
}

// Actor is one transport figure. LicenseNumber is required only for the
// operator role.
type Actor struct {
	Role          string  `json:"role"`
	RFC           string  `json:"rfc"`
	Name          string  `json:"name"`
	LicenseNumber string  `json:"license_number,omitempty"`
	Address       Address `json:"address"`
}

// FiscalDocument is the aggregate being validated and serialized: a CFDI with
// its Carta Porte complement.
type FiscalDocument struct {
	Series        string    `json:"series,omitempty"`
	Folio         string    `json:"folio,omitempty"`
	Issuer        Issuer    `json:"issuer"`
	Recipient     Recipient `json:"recipient"`
	PaymentForm   string    `json:"payment_form"`
	PaymentMethod string    `json:"payment_method"`
	Currency      string    `json:"currency"`
	Subtotal      float64   `json:"subtotal"`
	Total         float64   `json:"total"`

	Locations []Location `json:"locations"`
	Goods     []Good     `json:"goods"`
	Transport Transport  `json:"transport"`
	Actors    []Actor    `json:"actors"`

	International            bool   `json:"international"`
	EntryExit                string `json:"entry_exit,omitempty"`
	OriginDestinationCountry string `json:"origin_destination_country,omitempty"`
	EntryExitChannel         string `json:"entry_exit_channel,omitempty"`

	TotalDistanceKM float64 `json:"total_distance_km"`
}

// OriginLocation returns the first origin-typed location, or nil
func (d *FiscalDocument) OriginLocation() *Location {
	for i := range d.Locations {
		if d.Locations[i].Type == LocationOrigin {
			return &d.Locations[i]
		}
	}
	return nil
}

// HasDestination reports whether any destination-typed location exists
func (d *FiscalDocument) HasDestination() bool {
	for _, loc := range d.Locations {
		if loc.Type == LocationDestination {
			return true
		}
	}
	return false
}

// TotalWeightKG sums the weight of all merchandise lines
func (d *FiscalDocument) TotalWeightKG() float64 {
	var total float64
	for _, g := range d.Goods {
		total += g.WeightKG
	}
	return total
}

// LocationIDs returns the set of declared location ids
func (d *FiscalDocument) LocationIDs() map[string]bool {
	ids := make(map[string]bool, len(d.Locations))
	for _, loc := range d.Locations {
		ids[loc.ID] = true
	}
	return ids
}
