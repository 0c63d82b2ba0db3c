package deploymentProbe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	data  string
	err   error
	calls int
}

func (f *fakeReader) AccountResource(ctx context.Context, address, resourceType string) (*ledgerGateway.Resource, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ledgerGateway.Resource{Type: resourceType, Data: json.RawMessage(f.data)}, nil
}

func registry(pkg string, modules ...string) string {
	mods := make([]map[string]string, 0, len(modules))
	for _, m := range modules {
		mods = append(mods, map[string]string{"name": m})
	}
	b, _ := json.Marshal(map[string]any{
		"packages": []any{
			map[string]any{"name": "Other", "modules": []any{map[string]string{"name": "TaskStorage"}}},
			map[string]any{"name": pkg, "modules": mods},
		},
	})
	return string(b)
}

func newProbe(t *testing.T, r ResourceReader) *DeploymentProbe {
	p, err := NewDeploymentProbe(r, DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestIsDeployed(t *testing.T) {
	all := DefaultConfig().ExpectedModules

	tests := []struct {
		name     string
		reader   *fakeReader
		expected bool
		missing  []string
		wantErr  error
	}{
		{
			name:     "all modules present",
			reader:   &fakeReader{data: registry("MoveContracts", all...)},
			expected: true,
			missing:  []string{},
		},
		{
			name:     "partial deployment is not deployed",
			reader:   &fakeReader{data: registry("MoveContracts", "TaskFactory", "Escrow")},
			expected: false,
			missing:  []string{"TaskStorage", "BiddingSystem", "DisputeDAO"},
		},
		{
			name:     "modules under another package name do not count",
			reader:   &fakeReader{data: registry("SomethingElse", all...)},
			expected: false,
			missing:  all,
		},
		{
			name:     "no registry",
			reader:   &fakeReader{err: taskErrors.Wrap(taskErrors.KindNotFound, "accountResource", &ledgerGateway.LedgerError{StatusCode: http.StatusNotFound})},
			expected: false,
			missing:  all,
		},
		{
			name:    "network failure is an error",
			reader:  &fakeReader{err: taskErrors.Wrap(taskErrors.KindNetworkTransient, "accountResource", errors.New("connection reset"))},
			wantErr: taskErrors.ErrNetworkTransient,
		},
		{
			name:    "malformed registry",
			reader:  &fakeReader{data: `{"packages":"nope"}`},
			wantErr: taskErrors.ErrMalformedLedgerData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProbe(t, tt.reader)

			report, err := p.Inspect(context.Background(), "0xa1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, report.Deployed)
			assert.Equal(t, tt.missing, report.Missing)

			deployed, err := p.IsDeployed(context.Background(), "0xa1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, deployed)
		})
	}
}

func TestProbeIsNotCached(t *testing.T) {
	r := &fakeReader{data: registry("MoveContracts", "TaskFactory")}
	p := newProbe(t, r)

	deployed, err := p.IsDeployed(context.Background(), "0xa1")
	require.NoError(t, err)
	assert.False(t, deployed)

	r.data = registry("MoveContracts", DefaultConfig().ExpectedModules...)
	deployed, err = p.IsDeployed(context.Background(), "0xa1")
	require.NoError(t, err)
	assert.True(t, deployed)
	assert.Equal(t, 2, r.calls)
}

func TestNewDeploymentProbe(t *testing.T) {
	_, err := NewDeploymentProbe(nil, DefaultConfig(), zap.NewNop())
	assert.EqualError(t, err, "reader cannot be nil")
	_, err = NewDeploymentProbe(&fakeReader{}, nil, zap.NewNop())
	assert.EqualError(t, err, "cfg cannot be nil")
}
