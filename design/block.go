package design

import (
	"fmt"
)

// Direction of a port relative to its block.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
	Inout  Direction = "inout"
)

// Role of an interconnect or interconnect component.
type Role string

const (
	Master Role = "master"
	Slave  Role = "slave"
	Bidir  Role = "bidir"
)

// Port is a named signal bundle on a block. A port may carry several signals
// of the same interconnect type (Count > 1), each addressed by index.
type Port struct {
	Name        string
	Type        string
	Count       int
	Direction   Direction
	Block       *Block `json:"-"`
	Description string
	Attributes  Attributes

	connections []*Connection
}

// HierarchicalPath returns the dotted path of the port within the design.
func (p *Port) HierarchicalPath() string {
	if p.Block == nil {
		return fmt.Sprintf("[%s]", p.Name)
	}
	return fmt.Sprintf("%s[%s]", p.Block.HierarchicalPath(), p.Name)
}

// InboundConnections returns every connection ending at this port.
func (p *Port) InboundConnections() []*Connection {
	var result []*Connection
	for _, conn := range p.connections {
		if conn.End == p {
			result = append(result, conn)
		}
	}
	return result
}

// OutboundConnections returns every connection starting at this port.
func (p *Port) OutboundConnections() []*Connection {
	var result []*Connection
	for _, conn := range p.connections {
		if conn.Start == p {
			result = append(result, conn)
		}
	}
	return result
}

// Connection is a wiring edge between one signal index of a source port and
// one signal index of a destination port.
type Connection struct {
	Start      *Port
	StartIndex int
	End        *Port
	EndIndex   int
}

// MarshalJSON renders the connection using hierarchical port paths.
func (c *Connection) MarshalJSON() ([]byte, error) {
	return marshalOrdered(
		kv{"start", c.Start.HierarchicalPath()},
		kv{"start_index", c.StartIndex},
		kv{"end", c.End.HierarchicalPath()},
		kv{"end_index", c.EndIndex},
	)
}

// TieOff binds one signal index of a port to a literal value.
type TieOff struct {
	Port  *Port
	Index int
	Value int64
}

// MarshalJSON renders the tie-off using the hierarchical port path.
func (t *TieOff) MarshalJSON() ([]byte, error) {
	return marshalOrdered(
		kv{"port", t.Port.HierarchicalPath()},
		kv{"index", t.Index},
		kv{"value", t.Value},
	)
}

// PortSet groups the ports of a block by direction.
type PortSet struct {
	Input  []*Port `json:"input"`
	Output []*Port `json:"output"`
	Inout  []*Port `json:"inout"`
}

// Block is one instantiated node of the output design hierarchy. Its
// topology is populated during elaboration and frozen afterwards.
type Block struct {
	Name        string
	Type        string
	Description string
	Parent      *Block `json:"-"`
	Children    []*Block
	Ports       PortSet
	Connections []*Connection
	Ties        []*TieOff
	Registers   []*RegisterGroup
	AddressMap  *AddressMap
	Attributes  Attributes

	principals map[string]*Port
}

// NewBlock creates a block instance of the named module type.
func NewBlock(name, typeName string, parent *Block, description string) *Block {
	return &Block{
		Name:        name,
		Type:        typeName,
		Description: description,
		Parent:      parent,
		principals:  map[string]*Port{},
	}
}

// NodeID implements the project Node interface.
func (b *Block) NodeID() string { return b.Name }

// HierarchicalPath returns the dotted path of the block from the root.
func (b *Block) HierarchicalPath() string {
	if b.Parent == nil {
		return b.Name
	}
	return b.Parent.HierarchicalPath() + "." + b.Name
}

// IsLeaf reports whether the block has no children.
func (b *Block) IsLeaf() bool { return len(b.Children) == 0 }

// AddPort attaches a port to the block under its declared direction.
func (b *Block) AddPort(p *Port) {
	p.Block = b
	switch p.Direction {
	case Output:
		b.Ports.Output = append(b.Ports.Output, p)
	case Inout:
		b.Ports.Inout = append(b.Ports.Inout, p)
	default:
		b.Ports.Input = append(b.Ports.Input, p)
	}
}

// AddChild attaches a child block.
func (b *Block) AddChild(child *Block) {
	child.Parent = b
	b.Children = append(b.Children, child)
}

// FindChild returns the child block with the given instance name.
func (b *Block) FindChild(name string) *Block {
	for _, child := range b.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// AllPorts returns every port of the block, inputs first.
func (b *Block) AllPorts() []*Port {
	result := make([]*Port, 0, len(b.Ports.Input)+len(b.Ports.Output)+len(b.Ports.Inout))
	result = append(result, b.Ports.Input...)
	result = append(result, b.Ports.Output...)
	result = append(result, b.Ports.Inout...)
	return result
}

// FindPort returns the port with the given name, or nil.
func (b *Block) FindPort(name string) *Port {
	for _, p := range b.AllPorts() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AddConnection wires one signal index of the source port to one signal index
// of the destination port. Indices must address existing signals.
func (b *Block) AddConnection(start *Port, startIndex int, end *Port, endIndex int) (*Connection, error) {
	if startIndex < 0 || startIndex >= start.Count {
		return nil, fmt.Errorf("signal index %d out of range for port %s", startIndex, start.HierarchicalPath())
	}
	if endIndex < 0 || endIndex >= end.Count {
		return nil, fmt.Errorf("signal index %d out of range for port %s", endIndex, end.HierarchicalPath())
	}
	conn := &Connection{Start: start, StartIndex: startIndex, End: end, EndIndex: endIndex}
	b.Connections = append(b.Connections, conn)
	start.connections = append(start.connections, conn)
	end.connections = append(end.connections, conn)
	return conn, nil
}

// AddTieOff binds a signal index of a port to a constant value.
func (b *Block) AddTieOff(port *Port, index int, value int64) (*TieOff, error) {
	if index < 0 || index >= port.Count {
		return nil, fmt.Errorf("signal index %d out of range for port %s", index, port.HierarchicalPath())
	}
	tie := &TieOff{Port: port, Index: index, Value: value}
	b.Ties = append(b.Ties, tie)
	return tie, nil
}

// TiesFor returns the tie-offs bound to a port.
func (b *Block) TiesFor(port *Port) []*TieOff {
	var result []*TieOff
	for _, tie := range b.Ties {
		if tie.Port == port {
			result = append(result, tie)
		}
	}
	return result
}

// NominatePrincipal records a port as the block's principal signal for its
// type (clock, reset). The first nomination wins; later ones are ignored so
// that a chosen principal is never reassigned.
func (b *Block) NominatePrincipal(p *Port) *Port {
	if b.principals == nil {
		b.principals = map[string]*Port{}
	}
	if existing, ok := b.principals[p.Type]; ok {
		return existing
	}
	b.principals[p.Type] = p
	return p
}

// PrincipalSignal returns the nominated principal port for a signal type.
func (b *Block) PrincipalSignal(signalType string) *Port {
	return b.principals[signalType]
}

// AddRegisterGroup attaches an elaborated register group to the block.
func (b *Block) AddRegisterGroup(group *RegisterGroup) {
	b.Registers = append(b.Registers, group)
}

// SetAddressMap attaches the elaborated address map of the block.
func (b *Block) SetAddressMap(m *AddressMap) {
	b.AddressMap = m
}

// MarshalJSON renders the block tree without parent back-references.
func (b *Block) MarshalJSON() ([]byte, error) {
	return marshalOrdered(
		kv{"name", b.Name},
		kv{"type", b.Type},
		kv{"description", b.Description},
		kv{"attributes", b.Attributes},
		kv{"ports", b.Ports},
		kv{"children", b.Children},
		kv{"connections", b.Connections},
		kv{"ties", b.Ties},
		kv{"registers", b.Registers},
		kv{"address_map", b.AddressMap},
	)
}
