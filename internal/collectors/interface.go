package collectors

import (
	"context"

	"github.com/globomap/acs-driver/pkg/types"
)

// Inventory fetches current snapshots from the CloudStack API.
//
// Lookups by id or name return a nil snapshot and a nil error when the entity
// does not exist; an error always means the API call itself failed.
type Inventory interface {
	GetVirtualMachine(ctx context.Context, id string) (*types.VirtualMachine, error)
	GetProject(ctx context.Context, id string) (*types.Project, error)
	GetZoneByName(ctx context.Context, name string) (*types.Zone, error)
	GetZoneByID(ctx context.Context, id string) (*types.Zone, error)

	ListProjects(ctx context.Context) ([]types.Project, error)
	// ListVirtualMachinesByProject pages through every VM of the project
	ListVirtualMachinesByProject(ctx context.Context, projectID string) ([]types.VirtualMachine, error)
}
