// Package deploymentProbe decides whether the task modules are published at
// an address. The decision is all-or-nothing: a package missing any expected
// module counts as not deployed.
package deploymentProbe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"go.uber.org/zap"
)

const PackageRegistryType = "0x1::code::PackageRegistry"

// ResourceReader is the gateway capability the probe needs.
type ResourceReader interface {
	AccountResource(ctx context.Context, address, resourceType string) (*ledgerGateway.Resource, error)
}

type IDeploymentProbe interface {
	IsDeployed(ctx context.Context, address string) (bool, error)
	Inspect(ctx context.Context, address string) (*Report, error)
}

type Config struct {
	PackageName     string
	ExpectedModules []string
}

func DefaultConfig() *Config {
	return &Config{
		PackageName:     "MoveContracts",
		ExpectedModules: []string{"TaskFactory", "TaskStorage", "Escrow", "BiddingSystem", "DisputeDAO"},
	}
}

// Report lists which expected modules were found in the package.
type Report struct {
	Address  string   `json:"address"`
	Package  string   `json:"package"`
	Deployed bool     `json:"deployed"`
	Present  []string `json:"present"`
	Missing  []string `json:"missing"`
}

type DeploymentProbe struct {
	reader ResourceReader
	config *Config
	logger *zap.Logger
}

func NewDeploymentProbe(reader ResourceReader, cfg *Config, logger *zap.Logger) (*DeploymentProbe, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &DeploymentProbe{reader: reader, config: cfg, logger: logger}, nil
}

type packageRegistry struct {
	Packages []struct {
		Name    string `json:"name"`
		Modules []struct {
			Name string `json:"name"`
		} `json:"modules"`
	} `json:"packages"`
}

func (p *DeploymentProbe) IsDeployed(ctx context.Context, address string) (bool, error) {
	report, err := p.Inspect(ctx, address)
	if err != nil {
		return false, err
	}
	return report.Deployed, nil
}

// Inspect reads the package registry of address. A missing account or
// registry is reported as not deployed rather than as an error.
func (p *DeploymentProbe) Inspect(ctx context.Context, address string) (*Report, error) {
	report := &Report{
		Address: address,
		Package: p.config.PackageName,
		Present: []string{},
		Missing: []string{},
	}

	resource, err := p.reader.AccountResource(ctx, address, PackageRegistryType)
	if err != nil {
		if ledgerGateway.IsNotFound(err) {
			report.Missing = append(report.Missing, p.config.ExpectedModules...)
			p.logger.Sugar().Debugw("No package registry at address", zap.String("address", address))
			return report, nil
		}
		return nil, taskErrors.WithOp("probeDeployment", err)
	}

	var registry packageRegistry
	if err := json.Unmarshal(resource.Data, &registry); err != nil {
		return nil, taskErrors.Wrap(taskErrors.KindMalformedLedgerData, "probeDeployment", err)
	}

	published := map[string]bool{}
	for _, pkg := range registry.Packages {
		if pkg.Name != p.config.PackageName {
			continue
		}
		for _, m := range pkg.Modules {
			published[m.Name] = true
		}
	}

	for _, m := range p.config.ExpectedModules {
		if published[m] {
			report.Present = append(report.Present, m)
		} else {
			report.Missing = append(report.Missing, m)
		}
	}
	report.Deployed = len(p.config.ExpectedModules) > 0 && len(report.Missing) == 0

	p.logger.Sugar().Infow("Deployment probe finished",
		zap.String("address", address),
		zap.Bool("deployed", report.Deployed),
		zap.Strings("missing", report.Missing),
	)
	return report, nil
}
