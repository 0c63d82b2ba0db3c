package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/dandelion-network/taskctl/pkg/deploymentProbe"
	"github.com/dandelion-network/taskctl/pkg/sessionStore"
	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const creator = "0x00000000000000000000000000000000000000000000000000000000000a11ce"

func sampleTasks() []*types.Task {
	return []*types.Task{
		{
			Id:           0,
			Title:        "Write docs",
			Creator:      creator,
			Reward:       "1.50000000",
			RewardOcta:   "150000000",
			Deadline:     1767225600,
			Status:       types.StatusBidding,
			Participants: []string{"0xb0b"},
		},
		{
			Id:      1,
			Title:   "Audit",
			Creator: creator,
			Reward:  "2.00000000",
			Status:  types.UnknownStatus(42),
		},
	}
}

func TestFormatter_Validate(t *testing.T) {
	assert.NoError(t, NewFormatter("").Validate())
	assert.NoError(t, NewFormatter(FormatYAML).Validate())
	assert.Error(t, NewFormatter("xml").Validate())
	assert.Equal(t, FormatTable, NewFormatter("").Format())
}

func TestPrintTasks(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatterWithWriter(FormatTable, &buf).PrintTasks(sampleTasks()))

		out := buf.String()
		assert.Contains(t, out, "Write docs")
		assert.Contains(t, out, "Bidding")
		assert.Contains(t, out, "Unknown(42)")
		assert.Contains(t, out, "1.50000000")
		assert.Contains(t, out, "2026-01-01T00:00:00Z")
		assert.Contains(t, out, "0x0000...11ce")
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatterWithWriter(FormatTable, &buf).PrintTasks(nil))
		assert.Equal(t, "No tasks found\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatterWithWriter(FormatJSON, &buf).PrintTasks(sampleTasks()))

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "Bidding", decoded[0]["status"])
		assert.Equal(t, "Unknown(42)", decoded[1]["status"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatterWithWriter(FormatYAML, &buf).PrintTasks(sampleTasks()))

		var decoded []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "Write docs", decoded[0]["title"])
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, NewFormatterWithWriter("xml", &bytes.Buffer{}).PrintTasks(sampleTasks()))
	})
}

func TestPrintTask(t *testing.T) {
	task := sampleTasks()[0]
	task.ContentRef = "bafkreiexample"
	task.Description = "bafkreiexample"
	task.Content = &types.ContentDocument{Description: "Describe every command", Requirements: "Markdown"}

	var buf bytes.Buffer
	require.NoError(t, NewFormatterWithWriter(FormatTable, &buf).PrintTask(task))

	out := buf.String()
	assert.Contains(t, out, "TASK 0")
	assert.Contains(t, out, "1.50000000 APT (150000000 octa)")
	assert.Contains(t, out, "Describe every command")
	assert.Contains(t, out, "Markdown")
	assert.Contains(t, out, "0xb0b")
}

func TestPrintTxResultsAndHistory(t *testing.T) {
	id := uint64(7)
	var buf bytes.Buffer
	f := NewFormatterWithWriter(FormatTable, &buf)

	require.NoError(t, f.PrintTxResults(&types.TxResult{Action: "placeBid", Hash: "0xabc", TaskId: &id, Simulated: true}))
	assert.Contains(t, buf.String(), "placeBid")
	assert.Contains(t, buf.String(), "true")

	buf.Reset()
	require.NoError(t, f.PrintHistory(nil))
	assert.Equal(t, "No transactions recorded\n", buf.String())

	buf.Reset()
	require.NoError(t, f.PrintHistory([]*storage.TxRecord{{
		Id:        "1",
		Account:   creator,
		Action:    "createTask",
		Hash:      "0x0123456789abcdef0123",
		TaskId:    &id,
		Status:    storage.TxStatusConfirmed,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}))
	out := buf.String()
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Contains(t, out, "confirmed")
	assert.Contains(t, out, "0x0123456789ab...")
}

func TestPrintStateAndReport(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatterWithWriter(FormatTable, &buf)

	require.NoError(t, f.PrintState(&sessionStore.State{
		Connected: true,
		Account:   &types.Account{Address: creator},
		Network:   &types.Network{Name: "testnet", ChainId: 2},
		Balance:   "2.50000000",
		Mode:      "simulation",
	}))
	assert.Contains(t, buf.String(), "2.50000000 APT")
	assert.Contains(t, buf.String(), "testnet (chain 2)")

	buf.Reset()
	require.NoError(t, f.PrintReport(&deploymentProbe.Report{
		Address: creator,
		Package: "MoveContracts",
		Present: []string{"TaskFactory"},
		Missing: []string{"Escrow"},
	}))
	assert.Contains(t, buf.String(), "Deployed: false")
	assert.Contains(t, buf.String(), "Escrow")

	buf.Reset()
	require.NoError(t, NewFormatterWithWriter(FormatJSON, &buf).PrintState(&sessionStore.State{Balance: "0.00000000"}))
	assert.Contains(t, buf.String(), `"balance": "0.00000000"`)
}

func TestPrintGeneric(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatterWithWriter(FormatTable, &buf).Print(map[string]any{"b": 2, "a": 1}))
	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a")), bytes.Index(buf.Bytes(), []byte(" b ")))
	assert.Contains(t, out, "FIELD")
}
