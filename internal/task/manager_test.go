package task

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/nft-amm/internal/types"
)

const tasksYAML = `
tasks:
  - task_name: sell-floor
    sender: alice
    operation: sell
    collection: stars1collection
    denom: ustars
    token_ids: ["1", "2"]
    slippage: {type: percent, value: "2.5"}
    robust: true
    deadline_in: 30s
  - task_name: sweep
    sender: bob
    operation: buy
    collection: stars1collection
    denom: ustars
    count: 3
    slippage: {type: fixed, value: "1500"}
    asset_recipient: vault
  - task_name: broken-op
    sender: bob
    operation: snipe
    collection: stars1collection
    denom: ustars
  - task_name: empty-buy
    sender: bob
    operation: buy
    collection: stars1collection
    denom: ustars
  - task_name: bad-slippage
    sender: bob
    operation: buy
    collection: stars1collection
    denom: ustars
    count: 1
    slippage: {type: percent, value: "250"}
`

func TestLoadTasksYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tasksYAML), 0o600))

	tasks, err := NewManager(zaptest.NewLogger(t)).LoadTasksYAML(path)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	sell := tasks[0]
	assert.Equal(t, OperationSell, sell.Operation)
	assert.Equal(t, types.SellToPair, sell.Direction())
	assert.Equal(t, 2, sell.Units())
	assert.True(t, sell.Robust)
	assert.WithinDuration(t, sell.CreatedAt.Add(30*time.Second), sell.Deadline, time.Millisecond)

	buy := tasks[1]
	assert.Equal(t, 1, buy.ID)
	assert.Equal(t, types.BuyFromPair, buy.Direction())
	assert.Equal(t, 3, buy.Units())
	assert.Equal(t, "vault", buy.AssetRecipient)
	assert.True(t, buy.Deadline.IsZero())
}

func TestParseTasksErrors(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))

	_, err := m.ParseTasks([]byte("tasks: ["))
	assert.ErrorContains(t, err, "failed to parse YAML")

	_, err = m.ParseTasks([]byte("tasks: []"))
	assert.ErrorContains(t, err, "no tasks found")

	_, err = m.ParseTasks([]byte(`
tasks:
  - task_name: nameless-sender
    operation: sell
    collection: c
    denom: ustars
    token_ids: ["1"]
`))
	assert.ErrorContains(t, err, "no valid tasks")

	_, err = m.LoadTasksYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read file")
}

func TestTaskValidate(t *testing.T) {
	base := func() *Task {
		return &Task{Name: "t", Sender: "s", Operation: OperationBuy, Collection: "c", Denom: "ustars", Count: 1}
	}

	assert.NoError(t, base().Validate())

	tooMany := base()
	tooMany.Count = types.MaxQueryLimit + 1
	assert.Error(t, tooMany.Validate())

	badFixed := base()
	badFixed.Slippage = types.SlippageConfig{Type: types.SlippageFixed, Value: "ten"}
	assert.Error(t, badFixed.Validate())

	unknown := base()
	unknown.Slippage = types.SlippageConfig{Type: "auto"}
	assert.ErrorContains(t, unknown.Validate(), "unknown slippage type")

	noTokens := base()
	noTokens.Operation = OperationSell
	assert.ErrorContains(t, noTokens.Validate(), "token_ids")
}
