package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eduledger/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *RegistrySmartContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// getCurrentActorInfo resolves the invoker's full identity and MSP from the context.
func (s *RegistrySmartContract) getCurrentActorInfo(ctx contractapi.TransactionContextInterface) (*actorInfo, error) {
	am := NewAccessManager(ctx)
	fullID, err := am.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's FullID: %w", err)
	}
	mspID, err := ctx.GetClientIdentity().GetMSPID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's MSPID: %w", err)
	}
	return &actorInfo{fullID: fullID, mspID: mspID}, nil
}

// createCredentialCompositeKey creates a composite key for a credential record.
func (s *RegistrySmartContract) createCredentialCompositeKey(ctx contractapi.TransactionContextInterface, credentialID string) (string, error) {
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return "", fmt.Errorf("%w: credentialID cannot be empty", ErrInvalidInput)
	}
	return ctx.GetStub().CreateCompositeKey(credentialObjectType, []string{credentialID})
}

// createStudentIndexCompositeKey creates a composite key for a student's credential index.
func (s *RegistrySmartContract) createStudentIndexCompositeKey(ctx contractapi.TransactionContextInterface, student string) (string, error) {
	student = strings.TrimSpace(student)
	if student == "" {
		return "", fmt.Errorf("%w: student identity cannot be empty", ErrInvalidInput)
	}
	return ctx.GetStub().CreateCompositeKey(studentIndexObjectType, []string{student})
}

// --- Validation Helper Functions ---

func (s *RegistrySmartContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, field)
	}
	if len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidInput, field, max)
	}
	return nil
}

func (s *RegistrySmartContract) validateOptionalString(input, field string, max int) error {
	if input != "" && len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidInput, field, max)
	}
	return nil
}

// validateIdentityString checks an externally supplied identity argument
// (student or institution). Identities are opaque strings here; only
// presence and length are enforced.
func (s *RegistrySmartContract) validateIdentityString(input, field string) error {
	return s.validateRequiredString(input, field, maxIdentityLength)
}

func parseDateString(str, field string) (time.Time, error) {
	sTrimmed := strings.TrimSpace(str)
	if sTrimmed == "" {
		return time.Time{}, fmt.Errorf("%w: %s is a required date field and cannot be empty", ErrInvalidInput, field)
	}
	t, err := time.Parse(time.RFC3339, sTrimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid format for %s (expected RFC3339 'YYYY-MM-DDTHH:MM:SSZ'): %v", ErrInvalidInput, field, err)
	}
	return t, nil
}

// --- Credential ID Derivation ---

// deriveCredentialID computes the deterministic credential identifier:
// SHA-256 over the defining fields in canonical order, separated by an
// unambiguous delimiter, hex encoded. The issuance timestamp
// participates so two otherwise-identical issuances at different times
// yield different IDs.
func deriveCredentialID(c *model.Credential) string {
	parts := []string{
		c.Student,
		c.InstitutionName,
		c.CourseName,
		c.Degree,
		strconv.FormatInt(c.GraduationDate.UTC().UnixNano(), 10),
		strconv.FormatInt(c.IssuedAt.UTC().UnixNano(), 10),
		c.Issuer,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// --- Student Index Helpers ---

// loadStudentIndex returns the student's index, or a fresh empty one if
// none has been written yet.
func (s *RegistrySmartContract) loadStudentIndex(ctx contractapi.TransactionContextInterface, student string) (*model.StudentIndex, error) {
	indexKey, err := s.createStudentIndexCompositeKey(ctx, student)
	if err != nil {
		return nil, err
	}
	indexBytes, err := ctx.GetStub().GetState(indexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read student index for '%s': %w", student, err)
	}
	if indexBytes == nil {
		return &model.StudentIndex{
			ObjectType:    studentIndexObjectType,
			Student:       student,
			CredentialIDs: []string{},
		}, nil
	}
	var index model.StudentIndex
	if err := json.Unmarshal(indexBytes, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal student index for '%s': %w", student, err)
	}
	if index.CredentialIDs == nil {
		index.CredentialIDs = []string{}
	}
	return &index, nil
}

// saveStudentIndex persists the student's index.
func (s *RegistrySmartContract) saveStudentIndex(ctx contractapi.TransactionContextInterface, index *model.StudentIndex) error {
	indexKey, err := s.createStudentIndexCompositeKey(ctx, index.Student)
	if err != nil {
		return err
	}
	indexBytes, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal student index for '%s': %w", index.Student, err)
	}
	if err := ctx.GetStub().PutState(indexKey, indexBytes); err != nil {
		return fmt.Errorf("failed to save student index for '%s': %w", index.Student, err)
	}
	return nil
}

// --- Event Emission ---

// emitRegistryEvent sends a chaincode event. Emission failures are
// logged, not returned: by the time an event is set all state writes
// have succeeded and the operation must not be reported as failed.
func (s *RegistrySmartContract) emitRegistryEvent(ctx contractapi.TransactionContextInterface, eventName string, payload map[string]interface{}) {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitRegistryEvent: Failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitRegistryEvent: Failed to set event '%s': %v", eventName, errSet)
	}
}
