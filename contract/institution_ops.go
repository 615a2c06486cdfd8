package contract

import (
	"encoding/json"
	"fmt"

	"eduledger/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Institution Operations ---

// IssueCredential records a new academic credential for a student and
// returns its derived identifier. Caller must be a currently-authorized
// institution. All checks complete before the first write; a failed
// issuance leaves the ledger untouched and emits nothing.
func (s *RegistrySmartContract) IssueCredential(ctx contractapi.TransactionContextInterface,
	student string, studentName string, institutionName string, courseName string,
	degree string, graduationDate string) (string, error) {

	am := NewAccessManager(ctx)
	issuerFullID, err := am.RequireAuthorizedInstitution()
	if err != nil {
		return "", fmt.Errorf("IssueCredential: %w", err)
	}

	logger.Infof("Institution '%s' issuing credential for student '%s': %s / %s", issuerFullID, student, courseName, degree)

	if err := s.validateIdentityString(student, "student"); err != nil {
		return "", err
	}
	if err := s.validateRequiredString(studentName, "studentName", maxStringInputLength); err != nil {
		return "", err
	}
	if err := s.validateOptionalString(institutionName, "institutionName", maxStringInputLength); err != nil {
		return "", err
	}
	if err := s.validateRequiredString(courseName, "courseName", maxStringInputLength); err != nil {
		return "", err
	}
	if err := s.validateOptionalString(degree, "degree", maxStringInputLength); err != nil {
		return "", err
	}
	graduation, err := parseDateString(graduationDate, "graduationDate")
	if err != nil {
		return "", err
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return "", fmt.Errorf("IssueCredential: %w", err)
	}
	if graduation.After(now) {
		return "", fmt.Errorf("%w: graduationDate cannot be in the future", ErrInvalidInput)
	}

	credential := model.Credential{
		ObjectType:      credentialObjectType,
		Student:         student,
		StudentName:     studentName,
		InstitutionName: institutionName,
		CourseName:      courseName,
		Degree:          degree,
		GraduationDate:  graduation,
		IssuedAt:        now,
		IsValid:         true,
		Issuer:          issuerFullID,
	}
	credential.ID = deriveCredentialID(&credential)

	credentialKey, err := s.createCredentialCompositeKey(ctx, credential.ID)
	if err != nil {
		return "", fmt.Errorf("IssueCredential: failed to create composite key for credential '%s': %w", credential.ID, err)
	}
	existing, err := ctx.GetStub().GetState(credentialKey)
	if err != nil {
		return "", fmt.Errorf("IssueCredential: failed to check for existing credential '%s': %w", credential.ID, err)
	}
	if existing != nil {
		// Unreachable in practice because the issuance timestamp feeds the
		// derivation, but never overwrite silently.
		return "", fmt.Errorf("%w: credential with ID '%s' already exists", ErrDuplicateCredential, credential.ID)
	}

	index, err := s.loadStudentIndex(ctx, student)
	if err != nil {
		return "", fmt.Errorf("IssueCredential: %w", err)
	}

	credentialBytes, err := json.Marshal(credential)
	if err != nil {
		return "", fmt.Errorf("IssueCredential: failed to marshal credential '%s': %w", credential.ID, err)
	}
	if err := ctx.GetStub().PutState(credentialKey, credentialBytes); err != nil {
		return "", fmt.Errorf("IssueCredential: failed to save credential '%s' to ledger: %w", credential.ID, err)
	}

	index.CredentialIDs = append(index.CredentialIDs, credential.ID)
	if err := s.saveStudentIndex(ctx, index); err != nil {
		return "", fmt.Errorf("IssueCredential: %w", err)
	}

	s.emitRegistryEvent(ctx, eventCredentialIssued, map[string]interface{}{
		"credentialId": credential.ID,
		"student":      credential.Student,
		"issuer":       credential.Issuer,
	})
	logger.Infof("Credential '%s' issued to student '%s' by '%s'", credential.ID, student, issuerFullID)
	return credential.ID, nil
}

// RevokeCredential clears the validity flag of a credential. Only the
// original issuer may revoke -- not the administrator and not other
// authorized institutions. Revocation is one-way; nothing restores
// validity.
func (s *RegistrySmartContract) RevokeCredential(ctx contractapi.TransactionContextInterface, credentialID string) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("RevokeCredential: failed to get actor info: %w", err)
	}

	if err := s.validateRequiredString(credentialID, "credentialID", maxStringInputLength); err != nil {
		return err
	}

	credential, err := s.getCredentialByID(ctx, credentialID)
	if err != nil {
		return fmt.Errorf("RevokeCredential: %w", err)
	}

	if credential.Issuer != actor.fullID {
		return fmt.Errorf("%w: only the issuing institution '%s' can revoke credential '%s'", ErrUnauthorized, credential.Issuer, credentialID)
	}
	if !credential.IsValid {
		return fmt.Errorf("%w: credential '%s' was already revoked", ErrAlreadyRevoked, credentialID)
	}

	credential.IsValid = false

	credentialKey, err := s.createCredentialCompositeKey(ctx, credentialID)
	if err != nil {
		return fmt.Errorf("RevokeCredential: failed to create composite key for credential '%s': %w", credentialID, err)
	}
	updatedBytes, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("RevokeCredential: failed to marshal revoked credential '%s': %w", credentialID, err)
	}
	if err := ctx.GetStub().PutState(credentialKey, updatedBytes); err != nil {
		return fmt.Errorf("RevokeCredential: failed to save revoked credential '%s' to ledger: %w", credentialID, err)
	}

	s.emitRegistryEvent(ctx, eventCredentialRevoked, map[string]interface{}{
		"credentialId": credential.ID,
		"issuer":       actor.fullID,
	})
	logger.Infof("Credential '%s' revoked by issuer '%s'", credentialID, actor.fullID)
	return nil
}
