package design

// EnumValue is one named value of an enumerated field or signal.
type EnumValue struct {
	Name        string
	Value       int64
	Description string
}

// RegisterField is a bit range within a register.
type RegisterField struct {
	Name        string
	LSB         int
	Width       int
	Reset       int64
	Signed      bool
	Description string
	Attributes  Attributes
	Enums       []*EnumValue
}

// AddEnumValue appends an enumerated value to the field.
func (f *RegisterField) AddEnumValue(name string, value int64, description string) {
	f.Enums = append(f.Enums, &EnumValue{Name: name, Value: value, Description: description})
}

// Register is one addressable register. Its offset is relative to the group
// that owns it.
type Register struct {
	Name        string
	Offset      uint64
	Width       int
	BusAccess   string
	BlockAccess string
	InstAccess  string
	Description string
	Attributes  Attributes
	Fields      []*RegisterField
}

// NodeID implements the project Node interface.
func (r *Register) NodeID() string { return r.Name }

// AddField appends a laid-out field to the register.
func (r *Register) AddField(f *RegisterField) {
	r.Fields = append(r.Fields, f)
}

// ByteWidth returns the number of bytes the register occupies.
func (r *Register) ByteWidth() uint64 {
	return uint64((r.Width + 7) / 8)
}

// RegisterGroup is a contiguous block of registers placed at a byte offset.
type RegisterGroup struct {
	ID          string
	Offset      uint64
	Description string
	Attributes  Attributes
	Registers   []*Register
}

// NodeID implements the project Node interface.
func (g *RegisterGroup) NodeID() string { return g.ID }

// AddRegister appends a register to the group.
func (g *RegisterGroup) AddRegister(r *Register) {
	g.Registers = append(g.Registers, r)
}
