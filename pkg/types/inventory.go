package types

import (
	"errors"
	"strings"
)

// VirtualMachine is a CloudStack virtual machine snapshot
type VirtualMachine struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	State           string `json:"state,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	ZoneName        string `json:"zonename,omitempty"`
	ServiceOffering string `json:"serviceofferingname,omitempty"`
	CPUNumber       int    `json:"cpunumber,omitempty"`
	CPUSpeed        int    `json:"cpuspeed,omitempty"`
	Memory          int    `json:"memory,omitempty"`
	Template        string `json:"templatename,omitempty"`
	ProjectID       string `json:"projectid,omitempty"`
	Account         string `json:"account,omitempty"`
	Created         string `json:"created,omitempty"`
}

// Validate checks the fields every document built from a VM relies on
func (vm *VirtualMachine) Validate() error {
	if strings.TrimSpace(vm.ID) == "" {
		return errors.New("virtual machine ID is required")
	}
	return nil
}

// Project is a CloudStack project. The dictionary ids are extensions
// carrying the cost allocation of the project; they are empty when unset.
type Project struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	DisplayText       string `json:"displaytext,omitempty"`
	Account           string `json:"account,omitempty"`
	BusinessServiceID string `json:"businessserviceid,omitempty"`
	ClientID          string `json:"clientid,omitempty"`
	ComponentID       string `json:"componentid,omitempty"`
	SubComponentID    string `json:"subcomponentid,omitempty"`
	ProductID         string `json:"productid,omitempty"`
}

// DisplayName returns the name, falling back to the display text
func (p *Project) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.DisplayText
}

// Zone is a CloudStack availability zone
type Zone struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AllocationState string `json:"allocationstate,omitempty"`
}
