package model

import "time"

// Credential is the central record binding a student identity to an
// academic qualification issued by an institution. Every field except
// IsValid is immutable after issuance.
type Credential struct {
	ObjectType      string    `json:"objectType"`      // "Credential"
	ID              string    `json:"id"`              // SHA-256 of the defining fields, hex encoded
	Student         string    `json:"student"`         // Identity the credential is bound to
	StudentName     string    `json:"studentName"`     // Display name of the student
	InstitutionName string    `json:"institutionName"` // Display name of the issuing institution
	CourseName      string    `json:"courseName"`      // Course or program name
	Degree          string    `json:"degree"`          // Degree label (e.g. "BSc", "MEng")
	GraduationDate  time.Time `json:"graduationDate"`  // When the student graduated; never after IssuedAt
	IssuedAt        time.Time `json:"issuedAt"`        // Transaction timestamp at issuance
	IsValid         bool      `json:"isValid"`         // Cleared (once, permanently) by revocation
	Issuer          string    `json:"issuer"`          // Full identity of the issuing institution
}

// StudentIndex is the append-only reverse lookup from a student identity
// to the credentials issued to them. Insertion order is issuance order;
// entries are never removed, even after revocation.
type StudentIndex struct {
	ObjectType    string   `json:"objectType"` // "StudentIndex"
	Student       string   `json:"student"`
	CredentialIDs []string `json:"credentialIds"`
}

// VerificationResult is the outcome of a dynamic validity check. IsValid
// reflects both the stored flag and the issuer's current authorization,
// so it can disagree with Credential.IsValid for credentials whose
// issuer has since lost issuance rights.
type VerificationResult struct {
	CredentialID     string      `json:"credentialId"`
	IsValid          bool        `json:"isValid"`
	IssuerAuthorized bool        `json:"issuerAuthorized"`
	Reason           string      `json:"reason,omitempty"` // Populated only when IsValid is false
	Credential       *Credential `json:"credential"`
}

// CredentialHistoryEntry represents one committed state of a credential record.
type CredentialHistoryEntry struct {
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`
	IsDelete  bool      `json:"isDelete"`
	IsValid   bool      `json:"isValid"`
	Value     string    `json:"value"` // Raw JSON value of the record at that time
}
