package design

// CommandField is a bit range within an instruction word. Unlike register
// fields, command fields of sibling instructions may deliberately overlap.
type CommandField struct {
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
func (f *CommandField) AddEnumValue(name string, value int64, description string) {
	f.Enums = append(f.Enums, &EnumValue{Name: name, Value: value, Description: description})
}

// Command is one decoded instruction word.
type Command struct {
	ID          string
	Width       int
	Description string
	Attributes  Attributes
	Fields      []*CommandField
}

// NodeID implements the project Node interface.
func (c *Command) NodeID() string { return c.ID }

// AddField appends a laid-out field to the command.
func (c *Command) AddField(f *CommandField) {
	c.Fields = append(c.Fields, f)
}
