package design

import (
	"fmt"
)

// Initiator is a masked and offset window through which transactions enter
// the owning block via one signal index of a port.
type Initiator struct {
	Port   *Port
	Index  int
	Mask   uint64
	Offset uint64
}

// Target is a window at a base offset and aperture through which one signal
// index of a port can be reached.
type Target struct {
	Port     *Port
	Index    int
	Offset   uint64
	Aperture uint64
}

// AddressMap is the per-block initiator/target graph. Constraint edges
// restrict which initiators can access which targets; an entity with no
// constraint edges can reach every unconstrained counterpart.
type AddressMap struct {
	Block      *Block `json:"-"`
	Initiators []*Initiator
	Targets    []*Target

	constrainedInits   map[*Initiator]bool
	constrainedTargets map[*Target]bool
	edges              map[*Initiator]map[*Target]bool
}

// NewAddressMap creates an empty address map bound to a block.
func NewAddressMap(block *Block) *AddressMap {
	return &AddressMap{
		Block:              block,
		constrainedInits:   map[*Initiator]bool{},
		constrainedTargets: map[*Target]bool{},
		edges:              map[*Initiator]map[*Target]bool{},
	}
}

func (m *AddressMap) checkPort(port *Port, index int) error {
	if port == nil || port.Block != m.Block {
		return fmt.Errorf("port does not belong to block %s", m.Block.HierarchicalPath())
	}
	if index < 0 || index >= port.Count {
		return fmt.Errorf("index %d for port %s out of range", index, port.HierarchicalPath())
	}
	return nil
}

// AddInitiator adds an initiator window bound to a port and signal index of
// the owning block. On failure the map is left unmodified.
func (m *AddressMap) AddInitiator(port *Port, index int, mask, offset uint64) (*Initiator, error) {
	if err := m.checkPort(port, index); err != nil {
		return nil, err
	}
	init := &Initiator{Port: port, Index: index, Mask: mask, Offset: offset}
	m.Initiators = append(m.Initiators, init)
	return init, nil
}

// AddTarget adds a target window bound to a port and signal index of the
// owning block. On failure the map is left unmodified.
func (m *AddressMap) AddTarget(port *Port, index int, offset, aperture uint64) (*Target, error) {
	if err := m.checkPort(port, index); err != nil {
		return nil, err
	}
	target := &Target{Port: port, Index: index, Offset: offset, Aperture: aperture}
	m.Targets = append(m.Targets, target)
	return target, nil
}

// AddConstraint records that the initiator may access the target. Both must
// already be members of this map.
func (m *AddressMap) AddConstraint(init *Initiator, target *Target) error {
	if !containsInitiator(m.Initiators, init) {
		return fmt.Errorf("initiator %s[%d] is not part of this address map", init.Port.HierarchicalPath(), init.Index)
	}
	if !containsTarget(m.Targets, target) {
		return fmt.Errorf("target %s[%d] is not part of this address map", target.Port.HierarchicalPath(), target.Index)
	}
	if m.edges[init] == nil {
		m.edges[init] = map[*Target]bool{}
	}
	m.edges[init][target] = true
	m.constrainedInits[init] = true
	m.constrainedTargets[target] = true
	return nil
}

// Initiator returns the initiator bound to the given port and index.
func (m *AddressMap) Initiator(port *Port, index int) *Initiator {
	for _, init := range m.Initiators {
		if init.Port == port && init.Index == index {
			return init
		}
	}
	return nil
}

// Target returns the target bound to the given port and index.
func (m *AddressMap) Target(port *Port, index int) *Target {
	for _, target := range m.Targets {
		if target.Port == port && target.Index == index {
			return target
		}
	}
	return nil
}

// CanAccess reports whether the initiator may reach the target: either an
// explicit constraint edge exists, or neither side is constrained at all.
func (m *AddressMap) CanAccess(init *Initiator, target *Target) bool {
	if m.edges[init][target] {
		return true
	}
	return !m.constrainedInits[init] && !m.constrainedTargets[target]
}

// InitiatorsForTarget returns every initiator that can access the target.
func (m *AddressMap) InitiatorsForTarget(target *Target) []*Initiator {
	var result []*Initiator
	for _, init := range m.Initiators {
		if m.CanAccess(init, target) {
			result = append(result, init)
		}
	}
	return result
}

// TargetsForInitiator returns every target the initiator can access.
func (m *AddressMap) TargetsForInitiator(init *Initiator) []*Target {
	var result []*Target
	for _, target := range m.Targets {
		if m.CanAccess(init, target) {
			result = append(result, target)
		}
	}
	return result
}

func containsInitiator(list []*Initiator, needle *Initiator) bool {
	for _, item := range list {
		if item == needle {
			return true
		}
	}
	return false
}

func containsTarget(list []*Target, needle *Target) bool {
	for _, item := range list {
		if item == needle {
			return true
		}
	}
	return false
}

// MarshalJSON renders initiators and targets using hierarchical port paths.
func (m *AddressMap) MarshalJSON() ([]byte, error) {
	type initiatorJSON struct {
		Port   string `json:"port"`
		Index  int    `json:"index"`
		Mask   uint64 `json:"mask"`
		Offset uint64 `json:"offset"`
	}
	type targetJSON struct {
		Port     string `json:"port"`
		Index    int    `json:"index"`
		Offset   uint64 `json:"offset"`
		Aperture uint64 `json:"aperture"`
	}
	inits := make([]initiatorJSON, 0, len(m.Initiators))
	for _, init := range m.Initiators {
		inits = append(inits, initiatorJSON{init.Port.HierarchicalPath(), init.Index, init.Mask, init.Offset})
	}
	targets := make([]targetJSON, 0, len(m.Targets))
	for _, target := range m.Targets {
		targets = append(targets, targetJSON{target.Port.HierarchicalPath(), target.Index, target.Offset, target.Aperture})
	}
	return marshalOrdered(
		kv{"initiators", inits},
		kv{"targets", targets},
	)
}
