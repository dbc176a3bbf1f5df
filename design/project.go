package design

// Node is any top-level artifact a project can carry: blocks, register
// groups, commands, interconnects and defines all qualify.
type Node interface {
	NodeID() string
}

// Project is the root of an elaborated design. Principal nodes are the
// artifacts the elaboration was asked for; reference nodes are artifacts
// pulled in because a principal depends on them.
type Project struct {
	Name       string
	Principals []Node
	References []Node

	seen map[string]bool
}

func NewProject(name string) *Project {
	return &Project{Name: name, seen: map[string]bool{}}
}

// AddPrincipalNode appends a principal artifact. A node already present,
// principal or reference, is not added twice.
func (p *Project) AddPrincipalNode(node Node) {
	if p.seen[node.NodeID()] {
		return
	}
	p.seen[node.NodeID()] = true
	p.Principals = append(p.Principals, node)
}

// AddReferenceNode appends a supporting artifact unless already present.
func (p *Project) AddReferenceNode(node Node) {
	if p.seen[node.NodeID()] {
		return
	}
	p.seen[node.NodeID()] = true
	p.References = append(p.References, node)
}

// Merge folds another project's nodes into this one. The other project's
// principals join as references since only one elaboration root exists.
func (p *Project) Merge(other *Project) {
	for _, node := range other.Principals {
		p.AddReferenceNode(node)
	}
	for _, node := range other.References {
		p.AddReferenceNode(node)
	}
}

// Blocks returns every block in the project, principals first.
func (p *Project) Blocks() []*Block {
	var result []*Block
	for _, node := range p.Principals {
		if b, ok := node.(*Block); ok {
			result = append(result, b)
		}
	}
	for _, node := range p.References {
		if b, ok := node.(*Block); ok {
			result = append(result, b)
		}
	}
	return result
}

func (p *Project) MarshalJSON() ([]byte, error) {
	return marshalOrdered(
		kv{"name", p.Name},
		kv{"principals", p.Principals},
		kv{"references", p.References},
	)
}
