package models

// PersonType distinguishes natural persons from companies.
type PersonType string

const (
	PersonIndividual PersonType = "individual"
	PersonCorporate  PersonType = "corporate"
)

// TaxRegime is the client's professional tax regime.
type TaxRegime string

const (
	RegimeReal            TaxRegime = "real"
	RegimeSimplifiedTax   TaxRegime = "simplifiedTax"
	RegimeNonProfessional TaxRegime = "nonProfessional"
)

// PropertyStatus describes the client's relation to the premises they occupy.
type PropertyStatus string

const (
	PropertyOwner  PropertyStatus = "owner"
	PropertyTenant PropertyStatus = "tenant"
	PropertyNone   PropertyStatus = "none"
)

// ClientProfile is the subset of client attributes that drive default
// obligation applicability. Owned by client management; read-only here.
type ClientProfile struct {
	ID             string
	PersonType     PersonType
	TaxRegime      TaxRegime
	PropertyStatus PropertyStatus
}
