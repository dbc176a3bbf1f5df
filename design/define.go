package design

// Define is a named constant carried into the output for downstream tools.
type Define struct {
	Name        string `json:"name"`
	Value       int64  `json:"value"`
	Description string `json:"description,omitempty"`
}

func (d *Define) NodeID() string {
	return "def:" + d.Name
}
