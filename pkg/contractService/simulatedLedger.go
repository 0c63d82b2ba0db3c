package contractService

import (
	"context"
	_ "embed"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/unitConverter"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"
)

//go:embed fixtures/tasks.yaml
var fixtureTasks []byte

const simulatedDisputeWindow = 7 * 24 * time.Hour

type fixture struct {
	Tasks []struct {
		Title        string           `json:"title"`
		Description  string           `json:"description"`
		Creator      string           `json:"creator"`
		Reward       string           `json:"reward"`
		DeadlineIn   int64            `json:"deadlineIn"`
		Status       types.TaskStatus `json:"status"`
		Participants []string         `json:"participants"`
	} `json:"tasks"`
}

// simulatedLedger applies task transitions to an in-memory table so that
// reads after simulated writes stay consistent. Nothing leaves the process.
type simulatedLedger struct {
	mu      sync.Mutex
	tasks   map[uint64]*types.Task
	nextId  uint64
	counter uint64
	now     func() time.Time
	logger  *zap.Logger
}

func newSimulatedLedger(now func() time.Time, logger *zap.Logger) (*simulatedLedger, error) {
	var f fixture
	if err := yaml.Unmarshal(fixtureTasks, &f); err != nil {
		return nil, fmt.Errorf("failed to parse simulation fixture: %w", err)
	}

	l := &simulatedLedger{
		tasks:  map[uint64]*types.Task{},
		now:    now,
		logger: logger,
	}
	for _, ft := range f.Tasks {
		octa, err := unitConverter.ToLedgerUnits(ft.Reward)
		if err != nil {
			return nil, fmt.Errorf("fixture task %q: %w", ft.Title, err)
		}
		display, _ := unitConverter.ToDisplayUnits(octa)
		t := &types.Task{
			Id:           l.nextId,
			Title:        ft.Title,
			Description:  ft.Description,
			Creator:      ft.Creator,
			Reward:       display,
			RewardOcta:   octa,
			Deadline:     now().Unix() + ft.DeadlineIn,
			Status:       ft.Status,
			Participants: append([]string{}, ft.Participants...),
			Simulated:    true,
		}
		l.tasks[t.Id] = t
		l.nextId++
	}
	return l, nil
}

func (l *simulatedLedger) viewTask(ctx context.Context, id uint64) (*types.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[id]
	if !ok {
		return nil, taskErrors.New(taskErrors.KindNotFound, "getTask", "task %d not found", id)
	}
	return t.Clone(), nil
}

func (l *simulatedLedger) viewAllTasks(ctx context.Context) ([]*types.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*types.Task, 0, len(l.tasks))
	for _, t := range l.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (l *simulatedLedger) submit(ctx context.Context, sender, action string, payload *ledgerGateway.EntryFunctionPayload) (*types.TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	module, fn := splitFunction(payload.Function)
	result := &types.TxResult{Action: action, Simulated: true}

	if err := l.apply(sender, module, fn, payload.Arguments, result); err != nil {
		return nil, taskErrors.New(taskErrors.KindExecutionFailed, action, "simulated abort: %s", err)
	}

	l.counter++
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], l.counter)
	result.Hash = crypto.Keccak256Hash([]byte(action), c[:]).Hex()

	l.logger.Sugar().Infow("Simulated transaction",
		zap.String("action", action),
		zap.String("function", payload.Function),
		zap.String("hash", result.Hash),
	)
	return result, nil
}

func (l *simulatedLedger) apply(sender, module, fn string, args []any, result *types.TxResult) error {
	if module == moduleTaskFactory && fn == fnCreateTask {
		return l.create(sender, args, result)
	}

	switch fn {
	case fnInit, fnStakeAsJuror, fnVote:
		return nil
	}

	id, err := argU64(args, 0)
	if err != nil {
		return err
	}
	t, ok := l.tasks[id]
	if !ok {
		return fmt.Errorf("E_TASK_NOT_FOUND: %d", id)
	}
	result.TaskId = &id

	switch fn {
	case fnOpenBidding:
		return move(t, types.StatusBidding)
	case fnPlaceBid:
		if t.Status != types.StatusBidding || sender == t.Creator || t.HasParticipant(sender) {
			return fmt.Errorf("E_INVALID_BID")
		}
		t.Participants = append(t.Participants, sender)
		return nil
	case fnSelectWinner:
		idx, err := argU64(args, 1)
		if err != nil {
			return err
		}
		if idx >= uint64(len(t.Participants)) {
			return fmt.Errorf("E_INVALID_WINNER")
		}
		if err := move(t, types.StatusInProgress); err != nil {
			return err
		}
		t.Winner = t.Participants[idx]
		return nil
	case fnRequestVerification:
		if err := move(t, types.StatusPendingEmployerConfirmation); err != nil {
			return err
		}
		t.DisputeDeadline = l.now().Add(simulatedDisputeWindow).Unix()
		return nil
	case fnCompleteTask:
		return move(t, types.StatusCompleted)
	case fnRejectCompletion, fnRaiseDispute:
		return move(t, types.StatusDisputed)
	case fnCancelTask:
		if t.Locked {
			return fmt.Errorf("E_TASK_LOCKED")
		}
		return move(t, types.StatusCancelled)
	case fnDepositFunds:
		t.Locked = true
		return nil
	case fnReleaseFunds:
		t.Locked = false
		return nil
	}
	return fmt.Errorf("unsupported function %s::%s", module, fn)
}

func (l *simulatedLedger) create(sender string, args []any, result *types.TxResult) error {
	title, err := argText(args, 0)
	if err != nil {
		return err
	}
	description, err := argText(args, 1)
	if err != nil {
		return err
	}
	octa, err := argU64(args, 2)
	if err != nil {
		return err
	}
	deadline, err := argU64(args, 3)
	if err != nil {
		return err
	}

	id := l.nextId
	l.nextId++
	l.tasks[id] = &types.Task{
		Id:           id,
		Title:        title,
		Description:  description,
		Creator:      sender,
		Reward:       unitConverter.ToDisplayUnitsUint64(octa),
		RewardOcta:   strconv.FormatUint(octa, 10),
		Deadline:     int64(deadline),
		Status:       types.StatusCreated,
		Participants: []string{},
		Simulated:    true,
	}
	result.TaskId = &id
	return nil
}

func move(t *types.Task, to types.TaskStatus) error {
	if !ValidTransition(t.Status, to) {
		return fmt.Errorf("E_INVALID_STATE: %s -> %s", t.Status, to)
	}
	t.Status = to
	return nil
}

func splitFunction(function string) (module, name string) {
	parts := strings.Split(function, "::")
	if len(parts) != 3 {
		return "", function
	}
	return parts[1], parts[2]
}

func argU64(args []any, i int) (uint64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return 0, fmt.Errorf("argument %d is not a u64 string", i)
	}
	return strconv.ParseUint(s, 10, 64)
}

func argText(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d is not a byte string", i)
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return "", fmt.Errorf("argument %d: %w", i, err)
	}
	return string(b), nil
}
