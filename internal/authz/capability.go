package authz

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Capability is a per-user grant permitting an action beyond what role rank
// alone allows. The list is closed; adding one is a data change, not a
// schema change.
type Capability string

const (
	CapCreateTasks        Capability = "create_tasks"
	CapManageReceives     Capability = "manage_receives"
	CapApproveCompletions Capability = "approve_completions"
	CapRevertCompletions  Capability = "revert_completions"
	CapManageUsers        Capability = "manage_users"
)

var knownCapabilities = map[Capability]bool{
	CapCreateTasks:        true,
	CapManageReceives:     true,
	CapApproveCompletions: true,
	CapRevertCompletions:  true,
	CapManageUsers:        true,
}

// ValidCapability reports whether c is in the closed capability list.
func ValidCapability(c Capability) bool {
	return knownCapabilities[c]
}

// CapabilitySet is the grant set stored per user. Authorization checks are
// set containment rather than boolean branches.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set, rejecting unknown names.
func NewCapabilitySet(names []string) (CapabilitySet, error) {
	set := CapabilitySet{}
	for _, n := range names {
		c := Capability(n)
		if !ValidCapability(c) {
			return nil, fmt.Errorf("unknown capability %q", n)
		}
		set[c] = true
	}
	return set, nil
}

func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// Names returns the sorted member list, for storage and display.
func (s CapabilitySet) Names() []string {
	var out []string
	for c, ok := range s {
		if ok {
			out = append(out, string(c))
		}
	}
	sort.Strings(out)
	return out
}

// MarshalJSON stores the set as a sorted string array.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	names := s.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := NewCapabilitySet(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
