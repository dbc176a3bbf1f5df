package elaborate

import (
	"strings"
	"testing"

	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/schema"
)

// hierPrelude declares the interconnect types and a leaf module shared by
// the hierarchy tests.
const hierPrelude = `
!His
name: clock
role: slave
ports:
- !Port
  name: clk
---
!His
name: reset
role: slave
ports:
- !Port
  name: rst
---
!His
name: data
role: slave
ports:
- !Port
  name: value
  width: 32
---
!Mod
name: widget
options: imp
ports:
- name: in_data
  ref: data
  role: slave
---
`

func elabModule(t *testing.T, source, name string, opts Options) (*design.Project, error) {
	t.Helper()
	scope := testScope(t, source)
	decl := scope.Lookup(name, schema.KindMod)
	if decl == nil {
		t.Fatalf("module %s not found in scope", name)
	}
	e := &elaborator{scope: scope, opts: opts}
	return e.elaborateModule(decl.(*schema.Mod))
}

func rootBlock(t *testing.T, source, name string) *design.Block {
	t.Helper()
	project, err := elabModule(t, source, name, Options{})
	if err != nil {
		t.Fatalf("elaboration failed: %v", err)
	}
	block, ok := project.Principals[0].(*design.Block)
	if !ok {
		t.Fatalf("principal node is %T", project.Principals[0])
	}
	return block
}

func TestModuleBoundary(t *testing.T) {
	project, err := elabModule(t, hierPrelude+`
!Mod
name: device
ports:
- name: in_data
  ref: data
  role: slave
- name: out_data
  ref: data
  role: master
`, "device", Options{})
	if err != nil {
		t.Fatalf("elaboration failed: %v", err)
	}
	block := project.Principals[0].(*design.Block)
	if block.Name != "device" || block.Type != "device" {
		t.Fatalf("unexpected block identity %s/%s", block.Name, block.Type)
	}
	if len(block.Ports.Input) != 3 || len(block.Ports.Output) != 1 {
		t.Fatalf("unexpected port counts: %d in, %d out", len(block.Ports.Input), len(block.Ports.Output))
	}
	clk := block.FindPort("clk")
	if clk == nil || !clk.Attributes.Flag("AUTO_CLK") {
		t.Fatal("automatic clock port missing")
	}
	if block.PrincipalSignal("clock") != clk {
		t.Fatal("clock not nominated as principal")
	}
	if block.PrincipalSignal("reset") != block.FindPort("rst") {
		t.Fatal("reset not nominated as principal")
	}
	if leaf, _ := block.Attributes.Get("LEAF_NODE"); leaf != true {
		t.Fatal("leaf block not flagged")
	}
	// The referenced interconnect types join the project: data, clock, reset.
	if len(project.References) != 3 {
		t.Fatalf("expected 3 interconnect references, got %d", len(project.References))
	}
}

func TestModuleNoClkRst(t *testing.T) {
	block := rootBlock(t, hierPrelude+`
!Mod
name: bare
options: no_clk_rst
ports:
- name: in_data
  ref: data
  role: slave
`, "bare")
	if block.FindPort("clk") != nil || block.FindPort("rst") != nil {
		t.Fatal("clock/reset ports added despite opt-out")
	}
	if block.PrincipalSignal("clock") != nil {
		t.Fatal("principal clock nominated without a port")
	}
}

func TestZeroCountPortSkipped(t *testing.T) {
	block := rootBlock(t, hierPrelude+`
!Def
name: DEBUG_PORTS
val: 0
---
!Mod
name: device
ports:
- name: dbg
  ref: data
  role: slave
  count: DEBUG_PORTS
`, "device")
	if block.FindPort("dbg") != nil {
		t.Fatal("zero-count port not suppressed")
	}
}

func TestBadPortRole(t *testing.T) {
	_, err := elabModule(t, hierPrelude+`
!Mod
name: device
ports:
- name: in_data
  ref: data
  role: sideways
`, "device", Options{})
	if err == nil {
		t.Fatal("unknown role accepted")
	}
	if !strings.Contains(err.Error(), "unknown port role") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChildExpansionAndWiring(t *testing.T) {
	block := rootBlock(t, hierPrelude+`
!Mod
name: top
ports:
- name: in_data
  ref: data
  role: slave
modules:
- name: eng
  ref: widget
  count: 2
`, "top")
	if len(block.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(block.Children))
	}
	if block.Children[0].Name != "eng_0" || block.Children[1].Name != "eng_1" {
		t.Fatalf("unexpected child names %s, %s", block.Children[0].Name, block.Children[1].Name)
	}
	if block.Children[0].HierarchicalPath() != "top.eng_0" {
		t.Fatalf("unexpected path %s", block.Children[0].HierarchicalPath())
	}

	parentData := block.FindPort("in_data")
	parentClk := block.FindPort("clk")
	for _, child := range block.Children {
		data := child.FindPort("in_data")
		inbound := data.InboundConnections()
		if len(inbound) != 1 || inbound[0].Start != parentData {
			t.Fatalf("%s data port not driven from the parent", child.Name)
		}
		clk := child.FindPort("clk")
		inbound = clk.InboundConnections()
		if len(inbound) != 1 || inbound[0].Start != parentClk {
			t.Fatalf("%s clock not distributed", child.Name)
		}
	}
}

func TestExplicitFanOut(t *testing.T) {
	block := rootBlock(t, hierPrelude+`
!Mod
name: top
ports:
- name: in_data
  ref: data
  role: slave
modules:
- name: eng
  ref: widget
  count: 2
connections:
- points:
  - port: in_data
  - port: in_data
    mod: eng
`, "top")
	parentData := block.FindPort("in_data")
	if len(parentData.OutboundConnections()) != 2 {
		t.Fatalf("expected fan-out of 2, got %d", len(parentData.OutboundConnections()))
	}
	// The implicit passes must not double-wire the already connected ports.
	for _, child := range block.Children {
		if inbound := child.FindPort("in_data").InboundConnections(); len(inbound) != 1 {
			t.Fatalf("%s driven %d times", child.Name, len(inbound))
		}
	}
}

func TestBadFanShape(t *testing.T) {
	_, err := elabModule(t, hierPrelude+`
!Mod
name: top
ports:
- name: a
  ref: data
  role: slave
- name: b
  ref: data
  role: slave
- name: x
  ref: data
  role: master
- name: y
  ref: data
  role: master
- name: z
  ref: data
  role: master
connections:
- points:
  - port: a
  - port: b
  - port: x
  - port: y
  - port: z
`, "top", Options{})
	if err == nil {
		t.Fatal("malformed fan shape accepted")
	}
	if !strings.Contains(err.Error(), "bad connection 2 sources => 3 targets") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTieOff(t *testing.T) {
	block := rootBlock(t, hierPrelude+`
!Mod
name: top
modules:
- name: eng
  ref: widget
connections:
- constants:
  - !Point
    port: in_data
    mod: eng
  - !Const
    value: 2 + 1
`, "top")
	if len(block.Ties) != 1 {
		t.Fatalf("expected 1 tie-off, got %d", len(block.Ties))
	}
	tie := block.Ties[0]
	child := block.FindChild("eng_0")
	if tie.Port != child.FindPort("in_data") || tie.Index != 0 || tie.Value != 3 {
		t.Fatalf("unexpected tie-off: %+v", tie)
	}
}

func TestTieOffMultipleConstants(t *testing.T) {
	_, err := elabModule(t, hierPrelude+`
!Mod
name: top
modules:
- name: eng
  ref: widget
connections:
- constants:
  - !Point
    port: in_data
    mod: eng
  - !Const
    value: 1
  - !Const
    value: 2
`, "top", Options{})
	if err == nil {
		t.Fatal("multiple constants accepted")
	}
	if !strings.Contains(err.Error(), "multiple constants") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultsSuppressWiring(t *testing.T) {
	block := rootBlock(t, hierPrelude+`
!Mod
name: top
ports:
- name: in_data
  ref: data
  role: slave
modules:
- name: eng
  ref: widget
defaults:
- port: in_data
  mod: eng
`, "top")
	child := block.FindChild("eng_0")
	if inbound := child.FindPort("in_data").InboundConnections(); len(inbound) != 0 {
		t.Fatal("defaulted port was wired anyway")
	}
	if outbound := block.FindPort("in_data").OutboundConnections(); len(outbound) != 0 {
		t.Fatal("parent port wired to a defaulted target")
	}
}

func TestRelaxedTypeMatch(t *testing.T) {
	// Different port names still wire up in the type-only pass.
	block := rootBlock(t, hierPrelude+`
!Mod
name: sink
options: imp
ports:
- name: dev_data
  ref: data
  role: slave
---
!Mod
name: top
ports:
- name: host_data
  ref: data
  role: slave
modules:
- name: eng
  ref: sink
`, "top")
	child := block.FindChild("eng_0")
	inbound := child.FindPort("dev_data").InboundConnections()
	if len(inbound) != 1 || inbound[0].Start != block.FindPort("host_data") {
		t.Fatal("type-only match not wired")
	}
}

func TestClockRootOverride(t *testing.T) {
	block := rootBlock(t, hierPrelude+`
!Mod
name: pll
options: [no_clk_rst, imp]
ports:
- name: clk_out
  ref: clock
  role: master
---
!Mod
name: top
modules:
- name: gen
  ref: pll
- name: eng
  ref: widget
clk_root:
  port: clk_out
  mod: gen
`, "top")
	gen := block.FindChild("gen_0")
	eng := block.FindChild("eng_0")
	inbound := eng.FindPort("clk").InboundConnections()
	if len(inbound) != 1 || inbound[0].Start != gen.FindPort("clk_out") {
		t.Fatal("child clock not driven from the root clock source")
	}
	// Reset still distributes from the block's own boundary.
	inbound = eng.FindPort("rst").InboundConnections()
	if len(inbound) != 1 || inbound[0].Start != block.FindPort("rst") {
		t.Fatal("child reset not distributed")
	}
}

func TestModInheritanceMerge(t *testing.T) {
	scope := testScope(t, `
!Mod
name: base_widget
sd: Base widget
options: [task, mode=base]
ports:
- name: in_data
  ref: data
  role: slave
- name: aux
  ref: data
  role: slave
modules:
- name: sub
  ref: widget
---
!Mod
name: fancy
extends: base_widget
options: [mode=fancy]
ports:
- name: in_data
  ref: wide
  role: slave
`)
	e := &elaborator{scope: scope, opts: Options{}}
	mod := scope.Lookup("fancy", schema.KindMod).(*schema.Mod)
	merged, err := e.resolveModInheritance(mod, map[string]bool{})
	if err != nil {
		t.Fatalf("inheritance resolution failed: %v", err)
	}
	if len(merged.Ports) != 2 {
		t.Fatalf("expected 2 merged ports, got %d", len(merged.Ports))
	}
	// The derived declaration of in_data wins, the base's aux is appended.
	if merged.Ports[0].Name != "in_data" || merged.Ports[0].Ref != "wide" {
		t.Fatalf("derived port not kept: %+v", merged.Ports[0])
	}
	if merged.Ports[1].Name != "aux" {
		t.Fatalf("base port not inherited: %+v", merged.Ports[1])
	}
	if !merged.HasOption("task") {
		t.Fatal("base simple option not inherited")
	}
	if mode, _ := merged.OptionValue("mode"); mode != "fancy" {
		t.Fatalf("derived valued option lost: %s", mode)
	}
	if merged.SD != "Base widget" {
		t.Fatal("description fallback not applied")
	}
	if len(merged.Modules) != 1 || merged.Modules[0].Name != "sub" {
		t.Fatal("base children not inherited")
	}
}

func TestModInheritanceCycle(t *testing.T) {
	scope := testScope(t, `
!Mod
name: ping
extends: pong
---
!Mod
name: pong
extends: ping
`)
	e := &elaborator{scope: scope, opts: Options{}}
	mod := scope.Lookup("ping", schema.KindMod).(*schema.Mod)
	_, err := e.resolveModInheritance(mod, map[string]bool{})
	if err == nil {
		t.Fatal("cyclic inheritance accepted")
	}
	if !strings.Contains(err.Error(), "transitively extends itself") {
		t.Fatalf("unexpected error: %v", err)
	}
}

const regAttachPrelude = `
!Group
name: ctrl_regs
regs:
- name: ctrl
  fields:
  - name: mode
    width: 4
---
`

func TestRegistersAttachViaConfig(t *testing.T) {
	block := rootBlock(t, hierPrelude+regAttachPrelude+`
!Config
name: device_cfg
order:
- !Register
  group: ctrl_regs
---
!Mod
name: device
registers: device_cfg
`, "device")
	if len(block.Registers) != 1 || block.Registers[0].ID != "ctrl_regs" {
		t.Fatalf("register group not attached: %+v", block.Registers)
	}
}

func TestRegistersAttachViaBareGroup(t *testing.T) {
	// Naming a group directly wraps it into an implicit configuration.
	block := rootBlock(t, hierPrelude+regAttachPrelude+`
!Mod
name: device
registers: ctrl_regs
`, "device")
	if len(block.Registers) != 1 || len(block.Registers[0].Registers) != 1 {
		t.Fatalf("register group not attached: %+v", block.Registers)
	}
}

func TestRegistersUnresolved(t *testing.T) {
	_, err := elabModule(t, hierPrelude+`
!Mod
name: device
registers: missing_cfg
`, "device", Options{})
	if err == nil {
		t.Fatal("unresolvable register configuration accepted")
	}
	if !strings.Contains(err.Error(), "could not resolve register configuration") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestModuleAddressMap(t *testing.T) {
	block := rootBlock(t, hierPrelude+`
!Mod
name: noc
ports:
- name: host
  ref: data
  role: slave
- name: periph
  ref: data
  role: master
addressmap:
- !Initiator
  port:
    port: host
  mask: 0xFFFF
- !Target
  port:
    port: periph
  offset: 0x1000
  aperture: 0x1000
  constrain:
  - port: host
`, "noc")
	amap := block.AddressMap
	if amap == nil {
		t.Fatal("address map not attached")
	}
	if len(amap.Initiators) != 1 || len(amap.Targets) != 1 {
		t.Fatalf("unexpected map sizes: %d initiators, %d targets", len(amap.Initiators), len(amap.Targets))
	}
	init := amap.Initiators[0]
	target := amap.Targets[0]
	if init.Mask != 0xFFFF || target.Offset != 0x1000 || target.Aperture != 0x1000 {
		t.Fatalf("unexpected windows: %+v %+v", init, target)
	}
	if !amap.CanAccess(init, target) {
		t.Fatal("constrained initiator cannot reach its target")
	}
}

func TestModuleAddressMapBadPort(t *testing.T) {
	_, err := elabModule(t, hierPrelude+`
!Mod
name: noc
ports:
- name: host
  ref: data
  role: slave
addressmap:
- !Initiator
  port:
    port: host
- !Target
  port:
    port: missing
  aperture: 0x1000
`, "noc", Options{})
	if err == nil {
		t.Fatal("address map entry on a missing port accepted")
	}
	if !strings.Contains(err.Error(), "could not find port") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestModuleAddressMapWithoutInitiator(t *testing.T) {
	_, err := elabModule(t, hierPrelude+`
!Mod
name: noc
ports:
- name: periph
  ref: data
  role: master
addressmap:
- !Target
  port:
    port: periph
  aperture: 0x1000
`, "noc", Options{})
	if err == nil {
		t.Fatal("address map without initiators accepted")
	}
	if !strings.Contains(err.Error(), "at least one !Initiator") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestModuleAddressMapWithoutTarget(t *testing.T) {
	_, err := elabModule(t, hierPrelude+`
!Mod
name: noc
ports:
- name: host
  ref: data
  role: slave
addressmap:
- !Initiator
  port:
    port: host
  mask: 0xFFFF
`, "noc", Options{})
	if err == nil {
		t.Fatal("address map without targets accepted")
	}
	if !strings.Contains(err.Error(), "at least one !Target") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMaxDepthTruncation(t *testing.T) {
	source := hierPrelude + `
!Mod
name: mid
modules:
- name: inner
  ref: widget
---
!Mod
name: top
modules:
- name: m
  ref: mid
`
	project, err := elabModule(t, source, "top", Options{MaxDepth: 1})
	if err != nil {
		t.Fatalf("elaboration failed: %v", err)
	}
	block := project.Principals[0].(*design.Block)
	if len(block.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(block.Children))
	}
	child := block.Children[0]
	if len(child.Children) != 0 {
		t.Fatal("expansion not truncated at the depth limit")
	}
	// A truncated child still carries its boundary and principal signals.
	if child.PrincipalSignal("clock") == nil {
		t.Fatal("truncated child lost its principal clock")
	}
}

func TestInterconnectElaboration(t *testing.T) {
	scope := testScope(t, `
!His
name: simple
role: slave
ports:
- !Port
  name: valid
- !Port
  name: mode
  width: 2
  default: fast
  enum:
  - name: slow
    val: 0
  - name: fast
    val: 1
---
!His
name: bundle
role: bi
ports:
- !HisRef
  name: ch
  ref: simple
  count: 2
- !Port
  name: ready
  role: master
`)
	decl := scope.Lookup("bundle", schema.KindHis)
	project, err := Elaborate(decl, scope, Options{})
	if err != nil {
		t.Fatalf("elaboration failed: %v", err)
	}
	bundle := project.Principals[0].(*design.Interconnect)
	if bundle.Role != design.Bidir {
		t.Fatalf("unexpected role %s", bundle.Role)
	}
	if len(bundle.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(bundle.Components))
	}
	ch := bundle.Components[0]
	if ch.Kind != design.ComponentComplex || ch.Ref != "simple" || ch.Count != 2 {
		t.Fatalf("unexpected complex component: %+v", ch)
	}
	// A bidirectional interconnect forces its role onto every component.
	if ch.Role != design.Bidir || bundle.Components[1].Role != design.Bidir {
		t.Fatal("component roles not propagated")
	}

	if len(project.References) != 1 {
		t.Fatalf("expected 1 referenced type, got %d", len(project.References))
	}
	simple := project.References[0].(*design.Interconnect)
	if simple.Role != design.Slave {
		t.Fatalf("unexpected role %s", simple.Role)
	}
	mode := simple.Components[1]
	if mode.Width != 2 || mode.Default != 1 {
		t.Fatalf("unexpected mode component: %+v", mode)
	}
	if len(mode.Enums) != 2 || mode.Enums[1].Value != 1 {
		t.Fatal("enumerated values not captured")
	}
}
