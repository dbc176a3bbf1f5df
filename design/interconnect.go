package design

// ComponentKind distinguishes plain signals from nested interconnect
// references within an interconnect type.
type ComponentKind string

const (
	ComponentSimple  ComponentKind = "simple"
	ComponentComplex ComponentKind = "complex"
)

// InterconnectComponent is one component of an interconnect type: either a
// simple signal of some width, or a complex reference to another type.
type InterconnectComponent struct {
	Name        string
	Role        Role
	Description string
	Kind        ComponentKind
	Ref         string
	Width       int
	Count       int
	Default     int64
	Attributes  Attributes
	Enums       []*EnumValue
}

// AddEnumValue appends an enumerated value to the component.
func (c *InterconnectComponent) AddEnumValue(name string, value int64, description string) {
	c.Enums = append(c.Enums, &EnumValue{Name: name, Value: value, Description: description})
}

// Interconnect describes one interconnect type referenced by the design.
type Interconnect struct {
	Name        string
	Role        Role
	Description string
	Attributes  Attributes
	Components  []*InterconnectComponent
}

// NodeID implements the project Node interface.
func (i *Interconnect) NodeID() string { return i.Name }

// AddComponent appends a component to the interconnect.
func (i *Interconnect) AddComponent(c *InterconnectComponent) {
	i.Components = append(i.Components, c)
}
