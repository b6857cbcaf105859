// Package sweep republishes every virtual machine of a CloudStack region and
// then clears the graph elements the run did not refresh.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/globomap/acs-driver/internal/collectors"
	"github.com/globomap/acs-driver/internal/documents"
	"github.com/globomap/acs-driver/internal/events"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/internal/metrics"
	"github.com/globomap/acs-driver/internal/sink"
	"github.com/globomap/acs-driver/pkg/types"
)

// EventTimeLayout formats the eventDateTime of synthesized events
const EventTimeLayout = "2006-01-02 15:04:05 -0700"

// Builder builds the documents of one event and knows the region they
// belong to
type Builder interface {
	Build(ctx context.Context, event types.RawEvent) ([]types.Document, error)
	Region() types.Document
	Environment() string
}

// Result summarizes a sweep
type Result struct {
	Window    types.ReconciliationWindow
	Projects  int
	VMs       int
	Failed    int
	Documents int
}

// Sweep is a full reconciliation run. It is not resumable: a failure before
// the final clear leaves stale elements for the next run.
type Sweep struct {
	inventory collectors.Inventory
	builder   Builder
	sink      sink.Sink
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time
}

// New creates a sweep. m may be nil.
func New(inventory collectors.Inventory, builder Builder, s sink.Sink, m *metrics.Metrics, log logger.Logger) *Sweep {
	return &Sweep{
		inventory: inventory,
		builder:   builder,
		sink:      s,
		metrics:   m,
		logger:    log.WithField("environment", builder.Environment()),
		now:       time.Now,
	}
}

// Run republishes every VM and clears what was not refreshed. Failures of a
// single VM are logged and counted; listing failures abort before the clear.
func (s *Sweep) Run(ctx context.Context) (Result, error) {
	start := s.now()
	result := Result{
		Window: types.ReconciliationWindow{
			Environment: s.builder.Environment(),
			Provider:    documents.IaaSProvider,
			StartTime:   start,
		},
	}
	logger.Infof(s.logger, "Starting reconciliation sweep at %s", start.Format(time.RFC3339))

	if err := sink.PublishAll(ctx, s.sink, []types.Document{s.builder.Region()}); err != nil {
		s.logger.Error("Failed to publish region", err)
	}

	projects, err := s.inventory.ListProjects(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list projects: %w", err)
	}
	result.Projects = len(projects)

	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		vms, err := s.inventory.ListVirtualMachinesByProject(ctx, project.ID)
		if err != nil {
			return result, fmt.Errorf("failed to list virtual machines of project %s: %w", project.ID, err)
		}
		s.logger.WithFields(map[string]interface{}{
			"project": project.DisplayName(),
			"vms":     len(vms),
		}).Debug("Sweeping project")

		for _, vm := range vms {
			result.VMs++
			published, err := s.sweepVM(ctx, vm)
			s.metrics.SweepVM(err == nil)
			if err != nil {
				result.Failed++
				s.logger.WithFields(map[string]interface{}{
					"vm":      vm.ID,
					"project": project.ID,
				}).Error("Failed to republish virtual machine", err)
				continue
			}
			result.Documents += published
		}
	}

	clears := documents.ClearDocuments(result.Window)
	if err := sink.PublishAll(ctx, s.sink, clears); err != nil {
		return result, fmt.Errorf("failed to clear stale elements: %w", err)
	}
	result.Documents += len(clears)

	finished := s.now()
	s.metrics.SweepCompleted(start, finished)
	logger.Infof(s.logger, "Sweep finished in %s: %d projects, %d virtual machines, %d failed",
		finished.Sub(start).Round(time.Second), result.Projects, result.VMs, result.Failed)

	return result, nil
}

func (s *Sweep) sweepVM(ctx context.Context, vm types.VirtualMachine) (int, error) {
	docs, err := s.builder.Build(ctx, SyntheticCreate(vm.ID, s.now()))
	if err != nil {
		return 0, err
	}
	if err := sink.PublishAll(ctx, s.sink, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// SyntheticCreate is the VM.CREATE event a sweep replays for an existing VM
func SyntheticCreate(vmID string, at time.Time) types.RawEvent {
	return types.RawEvent{
		Event:         events.EventVMCreate,
		Resource:      events.ResourceVMClass,
		ID:            vmID,
		EventDateTime: at.Format(EventTimeLayout),
	}
}
