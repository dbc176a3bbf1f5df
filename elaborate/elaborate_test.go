package elaborate

import (
	"testing"

	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/schema"
)

func TestElaborateDefine(t *testing.T) {
	scope := testScope(t, `
!Def
name: FIFO_DEPTH
val: 1 << 5
`)
	decl := scope.Lookup("FIFO_DEPTH", schema.KindDef)
	project, err := Elaborate(decl, scope, Options{})
	if err != nil {
		t.Fatalf("elaboration failed: %v", err)
	}
	define := project.Principals[0].(*design.Define)
	if define.Name != "FIFO_DEPTH" || define.Value != 32 {
		t.Fatalf("unexpected define: %+v", define)
	}
}

func TestElaborateBareGroup(t *testing.T) {
	scope := testScope(t, `
!Group
name: ctrl_regs
regs:
- name: ctrl
  fields:
  - name: mode
    width: 4
`)
	decl := scope.Lookup("ctrl_regs", schema.KindGroup)
	project, err := Elaborate(decl, scope, Options{})
	if err != nil {
		t.Fatalf("elaboration failed: %v", err)
	}
	if len(project.Principals) != 1 {
		t.Fatalf("expected 1 register group, got %d", len(project.Principals))
	}
	group := project.Principals[0].(*design.RegisterGroup)
	if group.ID != "ctrl_regs" || len(group.Registers) != 1 {
		t.Fatalf("unexpected group: %+v", group)
	}
}

func TestElaborateInstructionProject(t *testing.T) {
	scope := testScope(t, `
!Inst
name: op
fields:
- name: opcode
  lsb: 0
  width: 8
`)
	decl := scope.Lookup("op", schema.KindInst)
	project, err := Elaborate(decl, scope, Options{})
	if err != nil {
		t.Fatalf("elaboration failed: %v", err)
	}
	command := project.Principals[0].(*design.Command)
	if command.ID != "op" || command.Width != 32 {
		t.Fatalf("unexpected command: %+v", command)
	}
}
