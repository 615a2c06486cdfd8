// File: model/institutions.go
package model

import "time"

// Institution stores the issuance-authorization state of one institution
// identity. Records are kept after authorization is revoked so that the
// audit trail of past issuers survives.
type Institution struct {
	ObjectType    string    `json:"objectType"` // "Institution"
	ID            string    `json:"id"`         // Full identity string of the institution
	Name          string    `json:"name"`       // Display name registered by the administrator
	Authorized    bool      `json:"authorized"` // Current issuance rights
	AuthorizedBy  string    `json:"authorizedBy"`
	AuthorizedAt  time.Time `json:"authorizedAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// Administrator is the single privileged identity, fixed at bootstrap.
// There is no transfer operation; the record is written once.
type Administrator struct {
	ObjectType     string    `json:"objectType"` // "Administrator"
	ID             string    `json:"id"`         // Full identity string of the administrator
	BootstrappedAt time.Time `json:"bootstrappedAt"`
}
