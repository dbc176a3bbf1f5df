package design

import (
	"testing"
)

func testBlock(name string, parent *Block) *Block {
	return NewBlock(name, name+"_type", parent, "")
}

func TestHierarchicalPath(t *testing.T) {
	root := testBlock("root", nil)
	child := testBlock("child_0", root)
	root.AddChild(child)
	port := &Port{Name: "data", Type: "wire", Count: 1, Direction: Input}
	child.AddPort(port)

	if child.HierarchicalPath() != "root.child_0" {
		t.Fatalf("unexpected block path %q", child.HierarchicalPath())
	}
	if port.HierarchicalPath() != "root.child_0[data]" {
		t.Fatalf("unexpected port path %q", port.HierarchicalPath())
	}
}

func TestAddPortBuckets(t *testing.T) {
	block := testBlock("top", nil)
	in := &Port{Name: "a", Type: "wire", Count: 1, Direction: Input}
	out := &Port{Name: "b", Type: "wire", Count: 1, Direction: Output}
	bi := &Port{Name: "c", Type: "wire", Count: 1, Direction: Inout}
	block.AddPort(in)
	block.AddPort(out)
	block.AddPort(bi)

	if len(block.Ports.Input) != 1 || len(block.Ports.Output) != 1 || len(block.Ports.Inout) != 1 {
		t.Fatal("ports not sorted into direction buckets")
	}
	if block.FindPort("b") != out {
		t.Fatal("port lookup failed")
	}
	if block.FindPort("missing") != nil {
		t.Fatal("lookup of a missing port should return nil")
	}
	if len(block.AllPorts()) != 3 {
		t.Fatal("unexpected number of ports")
	}
	if in.Block != block {
		t.Fatal("port not bound to its block")
	}
}

func TestConnections(t *testing.T) {
	root := testBlock("root", nil)
	child := testBlock("child_0", root)
	root.AddChild(child)

	src := &Port{Name: "clk", Type: "clock", Count: 1, Direction: Input}
	dst := &Port{Name: "clk", Type: "clock", Count: 2, Direction: Input}
	root.AddPort(src)
	child.AddPort(dst)

	conn, err := root.AddConnection(src, 0, dst, 1)
	if err != nil {
		t.Fatalf("connection failed: %v", err)
	}
	if conn.Start != src || conn.EndIndex != 1 {
		t.Fatal("connection endpoints wrong")
	}
	if len(dst.InboundConnections()) != 1 {
		t.Fatal("inbound connection not recorded")
	}
	if len(src.OutboundConnections()) != 1 {
		t.Fatal("outbound connection not recorded")
	}

	if _, err := root.AddConnection(src, 3, dst, 0); err == nil {
		t.Fatal("out of range source index accepted")
	}
}

func TestTieOffs(t *testing.T) {
	block := testBlock("top", nil)
	port := &Port{Name: "mode", Type: "wire", Count: 2, Direction: Input}
	block.AddPort(port)

	tie, err := block.AddTieOff(port, 0, 3)
	if err != nil {
		t.Fatalf("tie-off failed: %v", err)
	}
	if tie.Value != 3 {
		t.Fatal("unexpected tie value")
	}
	ties := block.TiesFor(port)
	if len(ties) != 1 || ties[0] != tie {
		t.Fatal("tie lookup failed")
	}
	if _, err := block.AddTieOff(port, 5, 0); err == nil {
		t.Fatal("out of range tie index accepted")
	}
}

func TestNominatePrincipalFirstWins(t *testing.T) {
	block := testBlock("top", nil)
	first := &Port{Name: "clk", Type: "clock", Count: 1, Direction: Input}
	second := &Port{Name: "clk_alt", Type: "clock", Count: 1, Direction: Input}
	block.AddPort(first)
	block.AddPort(second)

	block.NominatePrincipal(first)
	block.NominatePrincipal(second)

	if block.PrincipalSignal("clock") != first {
		t.Fatal("later nomination overrode the first principal")
	}
	if block.PrincipalSignal("reset") != nil {
		t.Fatal("unexpected reset principal")
	}
}

func TestLeafAndRegisters(t *testing.T) {
	block := testBlock("top", nil)
	if !block.IsLeaf() {
		t.Fatal("block with no children should be a leaf")
	}
	group := &RegisterGroup{ID: "ctrl"}
	group.AddRegister(&Register{Name: "version_0", Width: 32})
	block.AddRegisterGroup(group)
	if len(block.Registers) != 1 {
		t.Fatal("register group not attached")
	}
	if block.Registers[0].Registers[0].ByteWidth() != 4 {
		t.Fatal("unexpected register byte width")
	}
}
