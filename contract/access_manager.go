package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eduledger/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var amLogger = flogging.MustGetLogger("eduledger.accessmanager")

// Object types for composite keys, also usable as 'docType' in CouchDB.
const (
	institutionObjectType   = "Institution"   // Stores Institution objects. Attribute for composite key: ID.
	administratorObjectType = "Administrator" // Single Administrator record. Attribute: the fixed key below.
)

// administratorKeyAttr is the sole attribute of the administrator
// composite key. There is exactly one administrator record.
const administratorKeyAttr = "registry"

// AccessManager handles the administrator record and the
// institution-authorization set that gates credential issuance.
type AccessManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewAccessManager creates a new instance of AccessManager.
func NewAccessManager(ctx contractapi.TransactionContextInterface) *AccessManager {
	return &AccessManager{Ctx: ctx}
}

// --- Internal Helper Functions ---

func (am *AccessManager) getCurrentTxTimestamp() (time.Time, error) {
	ts, err := am.Ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// --- Key Creation Helpers (using Composite Keys) ---

func (am *AccessManager) createInstitutionCompositeKey(institutionID string) (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(institutionObjectType, []string{institutionID})
}

func (am *AccessManager) createAdministratorCompositeKey() (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(administratorObjectType, []string{administratorKeyAttr})
}

// GetCurrentIdentityFullID retrieves the full identity string of the current transactor.
func (am *AccessManager) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := am.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", fmt.Errorf("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("client identity ID from context is empty")
	}
	return id, nil
}

// --- Administrator ---

// AdministratorExists reports whether the registry has been bootstrapped.
func (am *AccessManager) AdministratorExists() (bool, error) {
	adminKey, err := am.createAdministratorCompositeKey()
	if err != nil {
		return false, fmt.Errorf("failed to create administrator key: %w", err)
	}
	adminBytes, err := am.Ctx.GetStub().GetState(adminKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking administrator record: %w", err)
	}
	return adminBytes != nil, nil
}

// BootstrapAdministrator fixes the administrator to the current caller.
// It fails if an administrator record already exists; the record is
// written exactly once and never changed afterwards.
func (am *AccessManager) BootstrapAdministrator() (*model.Administrator, error) {
	exists, err := am.AdministratorExists()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.New("registry already has an administrator; bootstrap cannot be re-run")
	}

	callerFullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity for bootstrap: %w", err)
	}
	now, err := am.getCurrentTxTimestamp()
	if err != nil {
		return nil, err
	}

	admin := model.Administrator{
		ObjectType:     administratorObjectType,
		ID:             callerFullID,
		BootstrappedAt: now,
	}
	adminKey, err := am.createAdministratorCompositeKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create administrator key: %w", err)
	}
	adminBytes, err := json.Marshal(admin)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal administrator record: %w", err)
	}
	if err := am.Ctx.GetStub().PutState(adminKey, adminBytes); err != nil {
		return nil, fmt.Errorf("failed to save administrator record: %w", err)
	}
	amLogger.Infof("Registry bootstrapped: administrator fixed to '%s'", callerFullID)
	return &admin, nil
}

// GetAdministrator returns the administrator record, or ErrNotFound if
// the registry has not been bootstrapped.
func (am *AccessManager) GetAdministrator() (*model.Administrator, error) {
	adminKey, err := am.createAdministratorCompositeKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create administrator key: %w", err)
	}
	adminBytes, err := am.Ctx.GetStub().GetState(adminKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving administrator record: %w", err)
	}
	if adminBytes == nil {
		return nil, fmt.Errorf("%w: registry has no administrator record", ErrNotFound)
	}
	var admin model.Administrator
	if err := json.Unmarshal(adminBytes, &admin); err != nil {
		return nil, fmt.Errorf("failed to unmarshal administrator record: %w", err)
	}
	return &admin, nil
}

// IsAdministrator checks if the given identity is the registry administrator.
func (am *AccessManager) IsAdministrator(fullID string) (bool, error) {
	admin, err := am.GetAdministrator()
	if err != nil {
		if errors.Is(err, ErrNotFound) { // No administrator yet means nobody is one.
			return false, nil
		}
		return false, err
	}
	return admin.ID == fullID, nil
}

// RequireAdministrator verifies the current caller is the administrator.
func (am *AccessManager) RequireAdministrator() error {
	callerFullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return fmt.Errorf("failed to get current user's FullID for administrator check: %w", err)
	}
	isAdmin, err := am.IsAdministrator(callerFullID)
	if err != nil {
		return fmt.Errorf("failed to check administrator status for '%s': %w", callerFullID, err)
	}
	if !isAdmin {
		return fmt.Errorf("%w: caller '%s' is not the registry administrator", ErrUnauthorized, callerFullID)
	}
	return nil
}

// --- Institution Authorization ---

// getInstitutionIfPresent returns the stored institution record, or nil
// without error when no record exists.
func (am *AccessManager) getInstitutionIfPresent(institutionID string) (*model.Institution, error) {
	institutionKey, err := am.createInstitutionCompositeKey(institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create institution key for '%s': %w", institutionID, err)
	}
	institutionBytes, err := am.Ctx.GetStub().GetState(institutionKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving institution record for '%s': %w", institutionID, err)
	}
	if institutionBytes == nil {
		return nil, nil
	}
	var institution model.Institution
	if err := json.Unmarshal(institutionBytes, &institution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal institution record for '%s': %w", institutionID, err)
	}
	return &institution, nil
}

// GetInstitution returns the raw stored institution record, or ErrNotFound.
func (am *AccessManager) GetInstitution(institutionID string) (*model.Institution, error) {
	institution, err := am.getInstitutionIfPresent(institutionID)
	if err != nil {
		return nil, err
	}
	if institution == nil {
		return nil, fmt.Errorf("%w: institution '%s' is not registered", ErrNotFound, institutionID)
	}
	return institution, nil
}

// IsInstitutionAuthorized reports whether the institution currently
// holds issuance rights. Unknown institutions are simply unauthorized.
func (am *AccessManager) IsInstitutionAuthorized(institutionID string) (bool, error) {
	institution, err := am.getInstitutionIfPresent(institutionID)
	if err != nil {
		return false, err
	}
	return institution != nil && institution.Authorized, nil
}

// RequireAuthorizedInstitution verifies the current caller is an
// authorized institution and returns its full identity.
func (am *AccessManager) RequireAuthorizedInstitution() (string, error) {
	callerFullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return "", fmt.Errorf("failed to get current user's FullID for institution check: %w", err)
	}
	authorized, err := am.IsInstitutionAuthorized(callerFullID)
	if err != nil {
		return "", fmt.Errorf("failed to check authorization for '%s': %w", callerFullID, err)
	}
	if !authorized {
		return "", fmt.Errorf("%w: caller '%s' is not an authorized institution", ErrUnauthorized, callerFullID)
	}
	return callerFullID, nil
}

// AuthorizeInstitution grants issuance rights to the given institution
// identity. Administrator only. Re-authorizing an already-authorized
// institution is allowed and refreshes its display name.
func (am *AccessManager) AuthorizeInstitution(institutionID, institutionName string) (*model.Institution, error) {
	if err := am.RequireAdministrator(); err != nil {
		return nil, err
	}
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, fmt.Errorf("%w: institution identity cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(institutionName) == "" {
		return nil, fmt.Errorf("%w: institution name cannot be empty", ErrInvalidInput)
	}
	if len(institutionName) > maxStringInputLength {
		return nil, fmt.Errorf("%w: institution name exceeds max length %d", ErrInvalidInput, maxStringInputLength)
	}

	callerFullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return nil, err
	}
	now, err := am.getCurrentTxTimestamp()
	if err != nil {
		return nil, err
	}

	institution, err := am.getInstitutionIfPresent(institutionID)
	if err != nil {
		return nil, err
	}
	if institution == nil {
		institution = &model.Institution{
			ObjectType:   institutionObjectType,
			ID:           institutionID,
			AuthorizedBy: callerFullID,
			AuthorizedAt: now,
		}
		amLogger.Infof("Registering new institution '%s' ('%s')", institutionID, institutionName)
	} else {
		if !institution.Authorized {
			institution.AuthorizedBy = callerFullID
			institution.AuthorizedAt = now
		}
		amLogger.Infof("Re-authorizing institution '%s' ('%s')", institutionID, institutionName)
	}
	institution.Name = institutionName
	institution.Authorized = true
	institution.LastUpdatedAt = now

	if err := am.saveInstitution(institution); err != nil {
		return nil, err
	}
	return institution, nil
}

// RevokeAuthorization withdraws issuance rights. Administrator only.
// Unlike AuthorizeInstitution this is not idempotent: revoking an
// institution that is not currently authorized fails. The record itself
// is kept so credentials it issued remain resolvable.
func (am *AccessManager) RevokeAuthorization(institutionID string) (*model.Institution, error) {
	if err := am.RequireAdministrator(); err != nil {
		return nil, err
	}
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, fmt.Errorf("%w: institution identity cannot be empty", ErrInvalidInput)
	}

	institution, err := am.getInstitutionIfPresent(institutionID)
	if err != nil {
		return nil, err
	}
	if institution == nil || !institution.Authorized {
		return nil, fmt.Errorf("%w: institution '%s' has no issuance rights to revoke", ErrNotAuthorized, institutionID)
	}

	now, err := am.getCurrentTxTimestamp()
	if err != nil {
		return nil, err
	}
	institution.Authorized = false
	institution.LastUpdatedAt = now

	if err := am.saveInstitution(institution); err != nil {
		return nil, err
	}
	amLogger.Infof("Issuance rights revoked for institution '%s'", institutionID)
	return institution, nil
}

func (am *AccessManager) saveInstitution(institution *model.Institution) error {
	institutionKey, err := am.createInstitutionCompositeKey(institution.ID)
	if err != nil {
		return fmt.Errorf("failed to create institution key for '%s': %w", institution.ID, err)
	}
	institutionBytes, err := json.Marshal(institution)
	if err != nil {
		return fmt.Errorf("failed to marshal institution record for '%s': %w", institution.ID, err)
	}
	if err := am.Ctx.GetStub().PutState(institutionKey, institutionBytes); err != nil {
		return fmt.Errorf("failed to save institution record for '%s': %w", institution.ID, err)
	}
	return nil
}
