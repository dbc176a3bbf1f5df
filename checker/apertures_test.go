package checker

import (
	"strings"
	"testing"

	"github.com/bluwireless/blade/design"
)

// apertureFixture builds a two-level design: a root block whose address map
// exposes one initiator window and one target, and a child register block
// whose access port is driven from that target.
type apertureFixture struct {
	soc    *design.Block
	dev    *design.Block
	host   *design.Port
	periph *design.Port
	bus    *design.Port
	amap   *design.AddressMap
	init   *design.Initiator
	target *design.Target
}

func newApertureFixture(t *testing.T, mask, tgtOffset, aperture uint64) *apertureFixture {
	t.Helper()
	f := &apertureFixture{}

	f.soc = design.NewBlock("soc", "soc", nil, "")
	f.host = &design.Port{Name: "host", Type: "bus", Count: 1, Direction: design.Input}
	f.soc.AddPort(f.host)
	f.periph = &design.Port{Name: "periph", Type: "bus", Count: 1, Direction: design.Output}
	f.soc.AddPort(f.periph)

	f.dev = design.NewBlock("dev", "device", f.soc, "")
	f.bus = &design.Port{Name: "bus", Type: "bus", Count: 1, Direction: design.Input}
	f.dev.AddPort(f.bus)
	f.soc.AddChild(f.dev)
	if _, err := f.soc.AddConnection(f.periph, 0, f.bus, 0); err != nil {
		t.Fatalf("wiring fixture: %v", err)
	}

	// One register group, highest byte touched is 0x10 + 4.
	group := &design.RegisterGroup{ID: "regs", Offset: 0}
	group.AddRegister(&design.Register{Name: "status", Offset: 0, Width: 32})
	group.AddRegister(&design.Register{Name: "ctrl", Offset: 0x10, Width: 32})
	f.dev.AddRegisterGroup(group)

	f.amap = design.NewAddressMap(f.soc)
	var err error
	if f.init, err = f.amap.AddInitiator(f.host, 0, mask, 0); err != nil {
		t.Fatalf("building fixture map: %v", err)
	}
	if f.target, err = f.amap.AddTarget(f.periph, 0, tgtOffset, aperture); err != nil {
		t.Fatalf("building fixture map: %v", err)
	}
	f.soc.SetAddressMap(f.amap)
	return f
}

func (f *apertureFixture) project() *design.Project {
	project := design.NewProject("soc")
	project.AddPrincipalNode(f.soc)
	return project
}

func TestCheckAperturesClean(t *testing.T) {
	f := newApertureFixture(t, 0xFFFF, 0, 0x100)
	violations, err := CheckApertures(f.project())
	if err != nil {
		t.Fatalf("check aborted: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
}

func TestCheckAperturesTooSmall(t *testing.T) {
	// The layout reaches byte 0x14, the aperture ends at 0x10.
	f := newApertureFixture(t, 0xFFFF, 0, 0x10)
	violations, err := CheckApertures(f.project())
	if err != nil {
		t.Fatalf("check aborted: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
	if !strings.Contains(violations[0].Message, "does not fit") {
		t.Fatalf("unexpected violation: %v", violations[0])
	}
	if violations[0].Path != "soc.dev" {
		t.Fatalf("violation attached to %s", violations[0].Path)
	}
}

func TestCheckAperturesInitiatorWindow(t *testing.T) {
	// The aperture fits but the initiator window ends at mask+1 = 0x10.
	f := newApertureFixture(t, 0xF, 0, 0x100)
	violations, err := CheckApertures(f.project())
	if err != nil {
		t.Fatalf("check aborted: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
	if !strings.Contains(violations[0].Message, "can be accessed by") {
		t.Fatalf("unexpected violation: %v", violations[0])
	}
}

func TestCheckAperturesNoAccessPort(t *testing.T) {
	soc := design.NewBlock("soc", "soc", nil, "")
	dev := design.NewBlock("dev", "device", soc, "")
	bus := &design.Port{Name: "bus", Type: "bus", Count: 1, Direction: design.Input}
	dev.AddPort(bus)
	soc.AddChild(dev)
	group := &design.RegisterGroup{ID: "regs"}
	group.AddRegister(&design.Register{Name: "ctrl", Width: 32})
	dev.AddRegisterGroup(group)

	project := design.NewProject("soc")
	project.AddPrincipalNode(soc)
	violations, err := CheckApertures(project)
	if err != nil {
		t.Fatalf("check aborted: %v", err)
	}
	if len(violations) != 1 || !strings.Contains(violations[0].Message, "could not establish access port") {
		t.Fatalf("unexpected violations: %v", violations)
	}
}

func TestCheckAperturesNoReachableInitiator(t *testing.T) {
	f := newApertureFixture(t, 0xFFFF, 0, 0x100)
	// Constrain the only initiator to a different target; the register
	// block's target becomes unreachable.
	other := &design.Port{Name: "other", Type: "bus", Count: 1, Direction: design.Output}
	f.soc.AddPort(other)
	otherTarget, err := f.amap.AddTarget(other, 0, 0x1000, 0x100)
	if err != nil {
		t.Fatalf("building fixture map: %v", err)
	}
	if err := f.amap.AddConstraint(f.init, otherTarget); err != nil {
		t.Fatalf("building fixture map: %v", err)
	}

	violations, err := CheckApertures(f.project())
	if err != nil {
		t.Fatalf("check aborted: %v", err)
	}
	if len(violations) != 1 || !strings.Contains(violations[0].Message, "no initiators can access") {
		t.Fatalf("unexpected violations: %v", violations)
	}
}

func TestChaseDriver(t *testing.T) {
	f := newApertureFixture(t, 0xFFFF, 0, 0x100)
	driver, index, err := ChaseDriver(f.bus, 0)
	if err != nil {
		t.Fatalf("chase failed: %v", err)
	}
	if driver != f.periph || index != 0 {
		t.Fatalf("chased to %s[%d]", driver.HierarchicalPath(), index)
	}
	// An undriven port is its own driver.
	driver, _, err = ChaseDriver(f.host, 0)
	if err != nil || driver != f.host {
		t.Fatal("undriven port should chase to itself")
	}
}

func TestChaseDriverDiverging(t *testing.T) {
	f := newApertureFixture(t, 0xFFFF, 0, 0x100)
	if _, err := f.soc.AddConnection(f.host, 0, f.bus, 0); err != nil {
		t.Fatalf("wiring fixture: %v", err)
	}
	_, _, err := ChaseDriver(f.bus, 0)
	if err == nil {
		t.Fatal("diverging driver tree accepted")
	}
	critical, ok := err.(*CriticalViolation)
	if !ok {
		t.Fatalf("expected CriticalViolation, got %T", err)
	}
	if !strings.Contains(critical.Message, "diverging connection tree") {
		t.Fatalf("unexpected violation: %v", critical)
	}
}

func TestRunCollectsCriticals(t *testing.T) {
	f := newApertureFixture(t, 0xFFFF, 0, 0x100)
	if _, err := f.soc.AddConnection(f.host, 0, f.bus, 0); err != nil {
		t.Fatalf("wiring fixture: %v", err)
	}
	violations := Run(f.project())
	if len(violations) != 1 {
		t.Fatalf("expected the critical violation in the result, got %v", violations)
	}
	if !strings.Contains(violations[0].Message, "diverging") {
		t.Fatalf("unexpected violation: %v", violations[0])
	}
}
