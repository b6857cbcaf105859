package collectors

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/globomap/acs-driver/pkg/types"
)

// MockInventory is a mock implementation of Inventory
type MockInventory struct {
	mock.Mock
}

// GetVirtualMachine mocks the GetVirtualMachine method
func (m *MockInventory) GetVirtualMachine(ctx context.Context, id string) (*types.VirtualMachine, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VirtualMachine), args.Error(1)
}

// GetProject mocks the GetProject method
func (m *MockInventory) GetProject(ctx context.Context, id string) (*types.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Project), args.Error(1)
}

// GetZoneByName mocks the GetZoneByName method
func (m *MockInventory) GetZoneByName(ctx context.Context, name string) (*types.Zone, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Zone), args.Error(1)
}

// GetZoneByID mocks the GetZoneByID method
func (m *MockInventory) GetZoneByID(ctx context.Context, id string) (*types.Zone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Zone), args.Error(1)
}

// ListProjects mocks the ListProjects method
func (m *MockInventory) ListProjects(ctx context.Context) ([]types.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Project), args.Error(1)
}

// ListVirtualMachinesByProject mocks the ListVirtualMachinesByProject method
func (m *MockInventory) ListVirtualMachinesByProject(ctx context.Context, projectID string) ([]types.VirtualMachine, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.VirtualMachine), args.Error(1)
}
