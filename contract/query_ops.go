package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"eduledger/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Query Functions ---
// All queries are read-only and callable by anyone; none require
// authentication and none mutate state.

// getCredentialByID is an internal helper to retrieve and unmarshal a credential.
func (s *RegistrySmartContract) getCredentialByID(ctx contractapi.TransactionContextInterface, credentialID string) (*model.Credential, error) {
	if strings.TrimSpace(credentialID) == "" {
		return nil, fmt.Errorf("%w: credentialID cannot be empty", ErrInvalidInput)
	}
	credentialKey, err := s.createCredentialCompositeKey(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("getCredentialByID: failed to create key for credential '%s': %w", credentialID, err)
	}

	credentialBytes, err := ctx.GetStub().GetState(credentialKey)
	if err != nil {
		return nil, fmt.Errorf("getCredentialByID: failed to read credential '%s' from ledger: %w", credentialID, err)
	}
	if credentialBytes == nil {
		return nil, fmt.Errorf("%w: credential with ID '%s' does not exist", ErrNotFound, credentialID)
	}

	var credential model.Credential
	if err = json.Unmarshal(credentialBytes, &credential); err != nil {
		return nil, fmt.Errorf("getCredentialByID: failed to unmarshal credential '%s' data: %w", credentialID, err)
	}
	return &credential, nil
}

// GetCredential returns the raw stored credential record. The validity
// flag is returned exactly as last written: this read never consults the
// issuer's current authorization. Use VerifyCredential for that.
func (s *RegistrySmartContract) GetCredential(ctx contractapi.TransactionContextInterface, credentialID string) (*model.Credential, error) {
	logger.Debugf("GetCredential: Querying credential '%s'", credentialID)
	return s.getCredentialByID(ctx, credentialID)
}

// VerifyCredential performs the dynamic validity check: the stored flag
// AND the issuer's *current* authorization. A credential from a
// since-deauthorized institution reads as invalid here even though the
// stored flag is untouched.
func (s *RegistrySmartContract) VerifyCredential(ctx contractapi.TransactionContextInterface, credentialID string) (*model.VerificationResult, error) {
	logger.Debugf("VerifyCredential: Verifying credential '%s'", credentialID)

	credential, err := s.getCredentialByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	am := NewAccessManager(ctx)
	issuerAuthorized, err := am.IsInstitutionAuthorized(credential.Issuer)
	if err != nil {
		return nil, fmt.Errorf("VerifyCredential: failed to check issuer authorization for '%s': %w", credential.Issuer, err)
	}

	result := &model.VerificationResult{
		CredentialID:     credential.ID,
		IsValid:          credential.IsValid && issuerAuthorized,
		IssuerAuthorized: issuerAuthorized,
		Credential:       credential,
	}
	switch {
	case !credential.IsValid:
		result.Reason = "credential has been revoked by its issuer"
	case !issuerAuthorized:
		result.Reason = "issuing institution is not currently authorized"
	}
	return result, nil
}

// GetStudentCredentials returns the IDs of all credentials ever issued
// to the student, in issuance order. The list never shrinks, even after
// revocations. Unknown students get an empty list, not an error.
func (s *RegistrySmartContract) GetStudentCredentials(ctx contractapi.TransactionContextInterface, student string) ([]string, error) {
	logger.Debugf("GetStudentCredentials: Querying credentials for student '%s'", student)
	if err := s.validateIdentityString(student, "student"); err != nil {
		return nil, err
	}

	index, err := s.loadStudentIndex(ctx, student)
	if err != nil {
		return nil, fmt.Errorf("GetStudentCredentials: %w", err)
	}
	return index.CredentialIDs, nil // Will be [] if empty, not null
}

// IsInstitutionAuthorized reports whether the institution currently
// holds issuance rights.
func (s *RegistrySmartContract) IsInstitutionAuthorized(ctx contractapi.TransactionContextInterface, institution string) (bool, error) {
	logger.Debugf("IsInstitutionAuthorized: Querying authorization for '%s'", institution)
	if err := s.validateIdentityString(institution, "institution"); err != nil {
		return false, err
	}
	return NewAccessManager(ctx).IsInstitutionAuthorized(institution)
}

// GetInstitution returns the stored institution record, including its
// display name and the (possibly false) authorization flag.
func (s *RegistrySmartContract) GetInstitution(ctx contractapi.TransactionContextInterface, institution string) (*model.Institution, error) {
	logger.Debugf("GetInstitution: Querying institution '%s'", institution)
	if err := s.validateIdentityString(institution, "institution"); err != nil {
		return nil, err
	}
	return NewAccessManager(ctx).GetInstitution(institution)
}

// GetAdministrator returns the administrator record fixed at bootstrap.
func (s *RegistrySmartContract) GetAdministrator(ctx contractapi.TransactionContextInterface) (*model.Administrator, error) {
	logger.Debug("GetAdministrator: Querying administrator record")
	return NewAccessManager(ctx).GetAdministrator()
}

// ListAuthorizedInstitutions returns all institutions that currently
// hold issuance rights.
func (s *RegistrySmartContract) ListAuthorizedInstitutions(ctx contractapi.TransactionContextInterface) ([]model.Institution, error) {
	logger.Debug("ListAuthorizedInstitutions: Querying authorized institutions")

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(institutionObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("ListAuthorizedInstitutions: failed to get institutions iterator: %w", err)
	}
	defer resultsIterator.Close()

	institutions := []model.Institution{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("ListAuthorizedInstitutions: Failed to get next institution from iterator: %v. Skipping.", iterErr)
			continue
		}
		var institution model.Institution
		if err := json.Unmarshal(queryResponse.Value, &institution); err != nil {
			logger.Warningf("ListAuthorizedInstitutions: Failed to unmarshal institution data for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if institution.Authorized {
			institutions = append(institutions, institution)
		}
	}
	logger.Infof("ListAuthorizedInstitutions: Returning %d authorized institutions", len(institutions))
	return institutions, nil // Will be [] if empty, not null
}

// GetCredentialHistory returns the committed ledger states of one
// credential, oldest first as supplied by the peer. In practice this is
// the issuance write followed by at most one revocation write.
func (s *RegistrySmartContract) GetCredentialHistory(ctx contractapi.TransactionContextInterface, credentialID string) ([]model.CredentialHistoryEntry, error) {
	logger.Debugf("GetCredentialHistory: Querying history for credential '%s'", credentialID)

	if _, err := s.getCredentialByID(ctx, credentialID); err != nil {
		return nil, err
	}
	credentialKey, err := s.createCredentialCompositeKey(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("GetCredentialHistory: failed to create key for credential '%s': %w", credentialID, err)
	}

	historyIter, err := ctx.GetStub().GetHistoryForKey(credentialKey)
	if err != nil {
		return nil, fmt.Errorf("GetCredentialHistory: failed to get history for credential '%s': %w", credentialID, err)
	}
	defer historyIter.Close()

	entries := []model.CredentialHistoryEntry{}
	for historyIter.HasNext() {
		historyItem, iterErr := historyIter.Next()
		if iterErr != nil {
			logger.Warningf("GetCredentialHistory: Error iterating history for '%s': %v. Skipping entry.", credentialID, iterErr)
			continue
		}
		var pastState model.Credential
		_ = json.Unmarshal(historyItem.Value, &pastState)

		entries = append(entries, model.CredentialHistoryEntry{
			TxID:      historyItem.TxId,
			Timestamp: historyItem.Timestamp.AsTime(),
			IsDelete:  historyItem.IsDelete,
			IsValid:   pastState.IsValid,
			Value:     string(historyItem.Value),
		})
	}
	return entries, nil
}
