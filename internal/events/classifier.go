// Package events decides which document synthesis path a CloudStack event
// belongs to.
package events

import (
	"github.com/globomap/acs-driver/pkg/types"
)

// Category is the handling path of an event
type Category string

const (
	VMCreate            Category = "vm_create"
	VMUpgradeCompleted  Category = "vm_upgrade_completed"
	VMPowerStateChanged Category = "vm_power_state_changed"
	VMDelete            Category = "vm_delete"
	ZoneEdit            Category = "zone_edit"
	Unrecognized        Category = "unrecognized"
)

// Event names, resource types and statuses published by the management server
const (
	EventVMCreate  = "VM.CREATE"
	EventVMUpgrade = "VM.UPGRADE"
	EventVMDestroy = "VM.DESTROY"
	EventZoneEdit  = "ZONE.EDIT"

	ResourceVMClass = "com.cloud.vm.VirtualMachine"
	ResourceVM      = "VirtualMachine"

	StatusCompleted           = "Completed"
	StatusZoneCompleted       = "completed"
	StatusPostStateTransition = "postStateTransitionEvent"
)

// Classify maps an event to its category. Predicates are checked in a fixed
// order so an event matching several of them always takes the same path.
func Classify(e types.RawEvent) Category {
	switch {
	case e.Event == EventVMCreate && e.Resource == ResourceVMClass:
		return VMCreate
	case e.Event == EventVMUpgrade && e.Status == StatusCompleted:
		return VMUpgradeCompleted
	case e.Resource == ResourceVM && e.Status == StatusPostStateTransition:
		return VMPowerStateChanged
	case e.Event == EventVMDestroy && e.Resource == ResourceVMClass:
		return VMDelete
	case e.Event == EventZoneEdit && e.Status == StatusZoneCompleted:
		return ZoneEdit
	default:
		return Unrecognized
	}
}

// IsVMUpdate reports whether the category refreshes a VM and its edges
func (c Category) IsVMUpdate() bool {
	return c == VMCreate || c == VMUpgradeCompleted || c == VMPowerStateChanged
}

// ResourceID returns the id of the resource the event is about.
// Upgrade notifications carry it in entityuuid, everything else in id.
func ResourceID(c Category, e types.RawEvent) string {
	if c == VMUpgradeCompleted {
		return e.EntityUUID
	}
	return e.ID
}

// Classified is an event together with its category and resource id
type Classified struct {
	Event      types.RawEvent
	Category   Category
	ResourceID string
}

// NewClassified classifies e
func NewClassified(e types.RawEvent) Classified {
	c := Classify(e)
	return Classified{
		Event:      e,
		Category:   c,
		ResourceID: ResourceID(c, e),
	}
}
