// Package cloudstack implements the inventory gateway on top of the
// CloudStack API.
package cloudstack

import (
	"context"
	"errors"
	"strconv"

	"github.com/globomap/acs-driver/internal/collectors"
	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/pkg/types"
)

// errorCodeInvalidParameter is answered for lookups of ids that do not exist
const errorCodeInvalidParameter = 431

// DefaultPageSize is the number of VMs requested per listVirtualMachines page
const DefaultPageSize = 500

// Caller executes a single API command
type Caller interface {
	Call(ctx context.Context, command string, params map[string]string, out interface{}) error
}

// Service is the typed set of inventory operations the driver uses
type Service struct {
	caller   Caller
	pageSize int
	logger   logger.Logger
}

var _ collectors.Inventory = (*Service)(nil)

type listVirtualMachinesResponse struct {
	Count           int                    `json:"count"`
	VirtualMachines []types.VirtualMachine `json:"virtualmachine"`
}

type listProjectsResponse struct {
	Count    int             `json:"count"`
	Projects []types.Project `json:"project"`
}

type listZonesResponse struct {
	Count int          `json:"count"`
	Zones []types.Zone `json:"zone"`
}

// NewService creates a service paging VMs by pageSize
func NewService(caller Caller, pageSize int, log logger.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		caller:   caller,
		pageSize: pageSize,
		logger:   log,
	}
}

// GetVirtualMachine returns the VM with the given id, or nil when absent
func (s *Service) GetVirtualMachine(ctx context.Context, id string) (*types.VirtualMachine, error) {
	if id == "" {
		return nil, nil
	}

	var resp listVirtualMachinesResponse
	err := s.call(ctx, "listVirtualMachines", map[string]string{"id": id, "listall": "true"}, &resp)
	if err != nil || resp.Count != 1 || len(resp.VirtualMachines) != 1 {
		return nil, err
	}
	vm := resp.VirtualMachines[0]
	return &vm, nil
}

// GetProject returns the project with the given id, or nil when absent
func (s *Service) GetProject(ctx context.Context, id string) (*types.Project, error) {
	if id == "" {
		return nil, nil
	}

	var resp listProjectsResponse
	err := s.call(ctx, "listProjects", map[string]string{"id": id, "listall": "true"}, &resp)
	if err != nil || resp.Count != 1 || len(resp.Projects) != 1 {
		return nil, err
	}
	project := resp.Projects[0]
	return &project, nil
}

// GetZoneByName returns the zone with the given name, or nil when absent
func (s *Service) GetZoneByName(ctx context.Context, name string) (*types.Zone, error) {
	if name == "" {
		return nil, nil
	}
	return s.getZone(ctx, map[string]string{"name": name})
}

// GetZoneByID returns the zone with the given id, or nil when absent
func (s *Service) GetZoneByID(ctx context.Context, id string) (*types.Zone, error) {
	if id == "" {
		return nil, nil
	}
	return s.getZone(ctx, map[string]string{"id": id})
}

func (s *Service) getZone(ctx context.Context, params map[string]string) (*types.Zone, error) {
	var resp listZonesResponse
	if err := s.call(ctx, "listZones", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Zones) == 0 {
		return nil, nil
	}
	zone := resp.Zones[0]
	return &zone, nil
}

// ListProjects returns every project visible to the API account
func (s *Service) ListProjects(ctx context.Context) ([]types.Project, error) {
	var resp listProjectsResponse
	if err := s.call(ctx, "listProjects", map[string]string{"listall": "true", "simple": "true"}, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// ListVirtualMachinesByProject pages through the VMs of a project
func (s *Service) ListVirtualMachinesByProject(ctx context.Context, projectID string) ([]types.VirtualMachine, error) {
	var vms []types.VirtualMachine

	for page := 1; ; page++ {
		params := map[string]string{
			"listall":   "true",
			"projectid": projectID,
			"page":      strconv.Itoa(page),
			"pagesize":  strconv.Itoa(s.pageSize),
		}

		var resp listVirtualMachinesResponse
		if err := s.call(ctx, "listVirtualMachines", params, &resp); err != nil {
			return nil, err
		}
		vms = append(vms, resp.VirtualMachines...)

		if len(resp.VirtualMachines) < s.pageSize {
			break
		}
		// count is optional in the answer, without it only a short page ends
		if resp.Count > 0 && len(vms) >= resp.Count {
			break
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"project": projectID,
		"count":   len(vms),
	}).Debug("Listed project virtual machines")

	return vms, nil
}

// call wraps failures as inventory errors; an invalid parameter answer means
// the looked up entity does not exist and is reported as no error
func (s *Service) call(ctx context.Context, command string, params map[string]string, out interface{}) error {
	err := s.caller.Call(ctx, command, params, out)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == errorCodeInvalidParameter {
		if _, lookup := params["id"]; lookup {
			s.logger.WithField("command", command).Debug("Entity not found: " + apiErr.ErrorText)
			return nil
		}
	}
	return driverrors.InventoryError(command, err)
}
