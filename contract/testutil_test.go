package contract

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Identities used across the tests.
const (
	adminID      = "x509::CN=registrar-admin::O=EducationBoard"
	universityID = "x509::CN=state-university::O=StateUniversity"
	collegeID    = "x509::CN=city-college::O=CityCollege"
	studentID    = "x509::CN=jordan-woods::OU=students"
	testMSPID    = "RegistryMSP"
)

// Key layout mirroring the Fabric stub so partial-composite-key queries
// behave like the real peer.
const (
	compositeKeyNamespace = "\x00"
	minUnicodeRuneValue   = rune(0)
)

type recordedEvent struct {
	name    string
	payload []byte
}

// mockStub is an in-memory world state. Only the methods the contract
// touches are implemented; anything else panics through the embedded
// nil interface, which is exactly what a test should do.
type mockStub struct {
	shim.ChaincodeStubInterface
	state   map[string][]byte
	history map[string][]*queryresult.KeyModification
	events  []recordedEvent
	txTime  time.Time
	txSeq   int
}

func newMockStub() *mockStub {
	return &mockStub{
		state:   map[string][]byte{},
		history: map[string][]*queryresult.KeyModification{},
		txTime:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// nextTx advances the simulated transaction clock; each mutating call in
// a test that needs a distinct timestamp should sit in its own tx.
func (m *mockStub) nextTx(d time.Duration) {
	m.txTime = m.txTime.Add(d)
	m.txSeq++
}

func (m *mockStub) txID() string {
	return fmt.Sprintf("tx%d", m.txSeq)
}

func (m *mockStub) GetState(key string) ([]byte, error) {
	return m.state[key], nil
}

func (m *mockStub) PutState(key string, value []byte) error {
	cp := append([]byte(nil), value...)
	m.state[key] = cp
	m.history[key] = append(m.history[key], &queryresult.KeyModification{
		TxId:      m.txID(),
		Value:     cp,
		Timestamp: timestamppb.New(m.txTime),
	})
	return nil
}

func (m *mockStub) DelState(key string) error {
	delete(m.state, key)
	m.history[key] = append(m.history[key], &queryresult.KeyModification{
		TxId:      m.txID(),
		IsDelete:  true,
		Timestamp: timestamppb.New(m.txTime),
	})
	return nil
}

func (m *mockStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	ck := compositeKeyNamespace + objectType + string(minUnicodeRuneValue)
	for _, attr := range attributes {
		ck += attr + string(minUnicodeRuneValue)
	}
	return ck, nil
}

func (m *mockStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(m.txTime), nil
}

func (m *mockStub) SetEvent(name string, payload []byte) error {
	m.events = append(m.events, recordedEvent{name: name, payload: payload})
	return nil
}

type stateIterator struct {
	kvs []*queryresult.KV
	pos int
}

func (it *stateIterator) HasNext() bool { return it.pos < len(it.kvs) }

func (it *stateIterator) Next() (*queryresult.KV, error) {
	kv := it.kvs[it.pos]
	it.pos++
	return kv, nil
}

func (it *stateIterator) Close() error { return nil }

func (m *mockStub) GetStateByPartialCompositeKey(objectType string, attributes []string) (shim.StateQueryIteratorInterface, error) {
	prefix, err := m.CreateCompositeKey(objectType, attributes)
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for k := range m.state {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	it := &stateIterator{}
	for _, k := range keys {
		it.kvs = append(it.kvs, &queryresult.KV{Key: k, Value: m.state[k]})
	}
	return it, nil
}

type historyIterator struct {
	mods []*queryresult.KeyModification
	pos  int
}

func (it *historyIterator) HasNext() bool { return it.pos < len(it.mods) }

func (it *historyIterator) Next() (*queryresult.KeyModification, error) {
	mod := it.mods[it.pos]
	it.pos++
	return mod, nil
}

func (it *historyIterator) Close() error { return nil }

func (m *mockStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	return &historyIterator{mods: m.history[key]}, nil
}

type mockClientIdentity struct {
	cid.ClientIdentity
	id    string
	mspID string
}

func (m *mockClientIdentity) GetID() (string, error) { return m.id, nil }

func (m *mockClientIdentity) GetMSPID() (string, error) { return m.mspID, nil }

type mockTransactionContext struct {
	stub     *mockStub
	identity *mockClientIdentity
}

func (m *mockTransactionContext) GetStub() shim.ChaincodeStubInterface { return m.stub }

func (m *mockTransactionContext) GetClientIdentity() cid.ClientIdentity { return m.identity }

// --- Fixtures ---

type testRegistry struct {
	contract *RegistrySmartContract
	stub     *mockStub
}

func newTestRegistry() *testRegistry {
	return &testRegistry{contract: &RegistrySmartContract{}, stub: newMockStub()}
}

// newBootstrappedRegistry returns a registry whose administrator is adminID.
func newBootstrappedRegistry(t *testing.T) *testRegistry {
	t.Helper()
	tr := newTestRegistry()
	require.NoError(t, tr.contract.BootstrapRegistry(tr.ctxFor(adminID)))
	tr.stub.nextTx(time.Second)
	return tr
}

func (tr *testRegistry) ctxFor(identity string) *mockTransactionContext {
	return &mockTransactionContext{
		stub:     tr.stub,
		identity: &mockClientIdentity{id: identity, mspID: testMSPID},
	}
}

func (tr *testRegistry) authorize(t *testing.T, institution, name string) {
	t.Helper()
	require.NoError(t, tr.contract.AuthorizeInstitution(tr.ctxFor(adminID), institution, name))
	tr.stub.nextTx(time.Second)
}

func (tr *testRegistry) issue(t *testing.T, issuer string) string {
	t.Helper()
	id, err := tr.contract.IssueCredential(tr.ctxFor(issuer),
		studentID, "Jordan Woods", "State University", "Computer Science", "BSc", "2024-05-20T00:00:00Z")
	require.NoError(t, err)
	tr.stub.nextTx(time.Second)
	return id
}

// snapshotState copies the world state for byte-for-byte atomicity assertions.
func (tr *testRegistry) snapshotState() map[string]string {
	snap := map[string]string{}
	for k, v := range tr.stub.state {
		snap[k] = string(v)
	}
	return snap
}

func (tr *testRegistry) eventCount() int { return len(tr.stub.events) }

func (tr *testRegistry) lastEvent(t *testing.T) recordedEvent {
	t.Helper()
	require.NotEmpty(t, tr.stub.events)
	return tr.stub.events[len(tr.stub.events)-1]
}
