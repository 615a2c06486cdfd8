package contract

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("eduledger.registrycontract")

// Object types used for composite keys, also usable as 'docType' for CouchDB queries.
const (
	credentialObjectType   = "Credential"
	studentIndexObjectType = "StudentIndex"
)

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	maxIdentityLength    = 512 // Full X.509 identity strings are long
)

// Event names emitted by the registry. Consumers (off-chain indexers)
// filter on these; payloads are JSON objects.
const (
	eventCredentialIssued      = "CredentialIssued"
	eventCredentialRevoked     = "CredentialRevoked"
	eventInstitutionAuthorized = "InstitutionAuthorized"
	eventInstitutionRevoked    = "InstitutionRevoked"
)

// RegistrySmartContract records academic credentials issued by
// authorized institutions and answers verification queries.
// @contract:RegistrySmartContract
type RegistrySmartContract struct {
	contractapi.Contract
}

// actorInfo holds commonly needed details about the transaction invoker.
type actorInfo struct {
	fullID string
	mspID  string
}

// Instantiate is called during chaincode instantiation.
func (s *RegistrySmartContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("RegistrySmartContract Instantiated/Upgraded")
}
