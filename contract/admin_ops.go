package contract

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Administrator Operations ---

// BootstrapRegistry initializes the registry, fixing the administrator
// to the caller. It can only succeed once; the administrator identity is
// immutable afterwards and there is no transfer operation.
func (s *RegistrySmartContract) BootstrapRegistry(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Attempting to bootstrap registry with initial administrator...")
	am := NewAccessManager(ctx)

	admin, err := am.BootstrapAdministrator()
	if err != nil {
		return fmt.Errorf("BootstrapRegistry: %w", err)
	}
	logger.Infof("Registry bootstrapped successfully; administrator is '%s'", admin.ID)
	return nil
}

// AuthorizeInstitution grants issuance rights to an institution
// identity. Administrator only. Idempotent: re-authorizing an
// already-authorized institution succeeds and re-emits the event.
func (s *RegistrySmartContract) AuthorizeInstitution(ctx contractapi.TransactionContextInterface, institution string, institutionName string) error {
	logger.Infof("Chaincode Call: AuthorizeInstitution for '%s' ('%s')", institution, institutionName)
	am := NewAccessManager(ctx)

	record, err := am.AuthorizeInstitution(institution, institutionName)
	if err != nil {
		return fmt.Errorf("AuthorizeInstitution: %w", err)
	}

	s.emitRegistryEvent(ctx, eventInstitutionAuthorized, map[string]interface{}{
		"institution": record.ID,
		"name":        record.Name,
	})
	logger.Infof("Institution '%s' ('%s') authorized to issue credentials", record.ID, record.Name)
	return nil
}

// RevokeInstitutionAuthorization withdraws issuance rights from an
// institution. Administrator only. Fails if the institution is not
// currently authorized. Credentials already issued by the institution
// stay in storage untouched; dynamic verification of them changes, raw
// reads do not.
func (s *RegistrySmartContract) RevokeInstitutionAuthorization(ctx contractapi.TransactionContextInterface, institution string) error {
	logger.Infof("Chaincode Call: RevokeInstitutionAuthorization for '%s'", institution)
	am := NewAccessManager(ctx)

	record, err := am.RevokeAuthorization(institution)
	if err != nil {
		return fmt.Errorf("RevokeInstitutionAuthorization: %w", err)
	}

	s.emitRegistryEvent(ctx, eventInstitutionRevoked, map[string]interface{}{
		"institution": record.ID,
	})
	logger.Infof("Institution '%s' is no longer authorized to issue credentials", record.ID)
	return nil
}
