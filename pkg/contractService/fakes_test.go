package contractService

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dandelion-network/taskctl/pkg/deploymentProbe"
	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter/walletAdapterTest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testNow   = time.Unix(1700000000, 0)
	creator   = mustAddr("0xa")
	bidderB   = mustAddr("0xb")
	bidderC   = mustAddr("0xc")
	stranger  = mustAddr("0xd")
	testNetwk = types.Network{Name: "testnet", ChainId: 2}
)

func mustAddr(a string) string {
	n, err := taskCodec.NormalizeAddress(a)
	if err != nil {
		panic(err)
	}
	return n
}

// ledgerRecord is the object form of a task returned by view_get_task.
type ledgerRecord struct {
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Creator         string         `json:"creator"`
	Budget          string         `json:"budget"`
	Deadline        string         `json:"deadline"`
	Status          uint8          `json:"status"`
	Participants    []string       `json:"participants"`
	Winner          map[string]any `json:"winner"`
	DisputeDeadline map[string]any `json:"dispute_deadline"`
	Locked          bool           `json:"locked"`
}

func record(status types.TaskStatus, participants ...string) *ledgerRecord {
	return &ledgerRecord{
		Title:           "Write docs",
		Description:     "Document the API",
		Creator:         creator,
		Budget:          "150000000",
		Deadline:        fmt.Sprint(testNow.Add(7 * 24 * time.Hour).Unix()),
		Status:          status.Code,
		Participants:    append([]string{}, participants...),
		Winner:          map[string]any{"vec": []string{}},
		DisputeDeadline: map[string]any{"vec": []string{}},
	}
}

func (r *ledgerRecord) withWinner(w string) *ledgerRecord {
	r.Winner = map[string]any{"vec": []string{w}}
	return r
}

// fakeGateway is an in-memory node: views serve records, submits go through
// the signer and are recorded.
type fakeGateway struct {
	mu        sync.Mutex
	records   map[uint64]*ledgerRecord
	views     int
	submitted []*ledgerGateway.EntryFunctionPayload
	waitErr   error
	events    []types.Event
	resources map[string]*ledgerGateway.Resource
	// listHook runs after a full listing is read and before it is returned.
	listHook func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		records:   map[uint64]*ledgerRecord{},
		resources: map[string]*ledgerGateway.Resource{},
	}
}

func (g *fakeGateway) View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.views++

	_, fn := splitFunction(function)
	switch fn {
	case fnViewGetTask:
		id, err := argU64(args, 0)
		if err != nil {
			return nil, err
		}
		r, ok := g.records[id]
		if !ok {
			return nil, taskErrors.New(taskErrors.KindExecutionFailed, "view", "E_TASK_NOT_FOUND")
		}
		b, _ := json.Marshal(r)
		return []json.RawMessage{b}, nil
	case fnViewGetAllTasks:
		list := make([]*ledgerRecord, 0, len(g.records))
		for i := uint64(0); i < uint64(len(g.records)); i++ {
			list = append(list, g.records[i])
		}
		b, _ := json.Marshal(list)
		if hook := g.listHook; hook != nil {
			g.mu.Unlock()
			hook()
			g.mu.Lock()
		}
		return []json.RawMessage{b}, nil
	}
	return nil, fmt.Errorf("unexpected view %s", function)
}

func (g *fakeGateway) Submit(ctx context.Context, payload *ledgerGateway.EntryFunctionPayload, signer ledgerGateway.Signer) (string, error) {
	hash, err := signer.SignAndSubmit(ctx, payload)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.submitted = append(g.submitted, payload)
	g.mu.Unlock()
	return hash, nil
}

func (g *fakeGateway) WaitForConfirmation(ctx context.Context, hash string, timeout time.Duration) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	receipt := &types.Receipt{Hash: hash, Success: g.waitErr == nil, Events: g.events}
	if g.waitErr != nil {
		return receipt, g.waitErr
	}
	return receipt, nil
}

func (g *fakeGateway) AccountResource(ctx context.Context, address, resourceType string) (*ledgerGateway.Resource, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.resources[address+"|"+resourceType]
	if !ok {
		return nil, taskErrors.New(taskErrors.KindNotFound, "accountResource", "resource not found")
	}
	return r, nil
}

func (g *fakeGateway) LedgerInfo(ctx context.Context) (*types.LedgerStatus, error) {
	return &types.LedgerStatus{ChainId: 2, Epoch: "10", LedgerVersion: "12345", LedgerTimestamp: "1700000000000000"}, nil
}

func (g *fakeGateway) submits() []*ledgerGateway.EntryFunctionPayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*ledgerGateway.EntryFunctionPayload(nil), g.submitted...)
}

func (g *fakeGateway) viewCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.views
}

func (g *fakeGateway) setRecord(id uint64, r *ledgerRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[id] = r
}

type fakeProbe struct {
	deployed bool
	err      error
	calls    int
}

func (p *fakeProbe) IsDeployed(ctx context.Context, address string) (bool, error) {
	p.calls++
	return p.deployed, p.err
}

func (p *fakeProbe) Inspect(ctx context.Context, address string) (*deploymentProbe.Report, error) {
	deployed, err := p.IsDeployed(ctx, address)
	return &deploymentProbe.Report{Address: address, Deployed: deployed}, err
}

// fakeContent accepts every upload under ref and serves nothing.
type fakeContent struct {
	ref  string
	puts []*types.ContentDocument
}

func (c *fakeContent) Get(ctx context.Context, ref string) (*types.ContentDocument, error) {
	return nil, fmt.Errorf("no content for %s", ref)
}

func (c *fakeContent) Put(ctx context.Context, doc *types.ContentDocument) (string, error) {
	c.puts = append(c.puts, doc)
	return c.ref, nil
}

type harness struct {
	svc    *ContractService
	gw     *fakeGateway
	wallet *walletAdapterTest.FakeWallet
	probe  *fakeProbe
}

func newHarness(t *testing.T, deployed bool) *harness {
	t.Helper()
	gw := newFakeGateway()
	wallet := walletAdapterTest.NewFakeWallet(creator, testNetwk)
	probe := &fakeProbe{deployed: deployed}

	cfg := DefaultConfig()
	cfg.Clock = func() time.Time { return testNow }
	svc, err := NewContractService(cfg, gw, wallet, probe, nil, zap.NewNop())
	require.NoError(t, err)

	_, _, err = wallet.Connect(context.Background())
	require.NoError(t, err)
	_, err = svc.Initialize(context.Background())
	require.NoError(t, err)

	return &harness{svc: svc, gw: gw, wallet: wallet, probe: probe}
}

func (h *harness) as(address string) {
	h.wallet.SwitchAccount(address)
}
