package schema

import (
	"testing"
)

func TestParseInterconnect(t *testing.T) {
	decls, defines, err := Parse([]byte(`
!His
name: axi4_lite
role: master
ports:
- !Port
  name: awaddr
  width: 32
  role: master
- !HisRef
  name: wdata
  ref: axi4_w
  count: 2
  role: master
`), "his.yaml")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(defines) != 0 {
		t.Fatal("unexpected defines")
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	his, ok := decls[0].(*His)
	if !ok {
		t.Fatalf("expected *His, got %T", decls[0])
	}
	if his.DeclKind() != KindHis {
		t.Fatal("wrong declaration kind")
	}
	if his.Name != "axi4_lite" || his.Role != "master" {
		t.Fatal("wrong interconnect attributes")
	}
	if len(his.Ports) != 2 {
		t.Fatalf("expected 2 components, got %d", len(his.Ports))
	}
	port, ok := his.Ports[0].(*Port)
	if !ok {
		t.Fatalf("expected *Port, got %T", his.Ports[0])
	}
	if port.Name != "awaddr" || port.Width.Raw != "32" {
		t.Fatal("wrong port attributes")
	}
	ref, ok := his.Ports[1].(*HisRef)
	if !ok {
		t.Fatalf("expected *HisRef, got %T", his.Ports[1])
	}
	if ref.Ref != "axi4_w" || ref.Count.Raw != "2" {
		t.Fatal("wrong reference attributes")
	}
	if his.Src.Path != "his.yaml" {
		t.Fatal("source path not stamped")
	}
}

func TestParseMultiDocument(t *testing.T) {
	decls, defines, err := Parse([]byte(`
!Def
name: NUM_PORTS
val: 4
---
!Define
group: ctrl
reg: version
field: minor
reset: 7
---
!Group
name: ctrl
regs:
- !Reg
  name: version
  fields:
  - !Field
    name: minor
    width: 8
`), "multi.yaml")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
	if len(defines) != 1 {
		t.Fatalf("expected 1 define, got %d", len(defines))
	}
	def, ok := decls[0].(*Def)
	if !ok {
		t.Fatalf("expected *Def, got %T", decls[0])
	}
	if def.Val.Raw != "4" || !def.Val.Defined {
		t.Fatal("wrong constant value")
	}
	if defines[0].Reset.Raw != "7" {
		t.Fatal("wrong define override")
	}
	group, ok := decls[1].(*Group)
	if !ok {
		t.Fatalf("expected *Group, got %T", decls[1])
	}
	if len(group.Regs) != 1 || len(group.Regs[0].Fields) != 1 {
		t.Fatal("register group not fully decoded")
	}
	if group.Regs[0].Fields[0].Src.Path != "multi.yaml" {
		t.Fatal("field source path not stamped")
	}
}

func TestParseOptionsScalarAndList(t *testing.T) {
	decls, _, err := Parse([]byte(`
!Mod
name: a
options: top
---
!Mod
name: b
options:
- imp
- type=widget
`), "opts.yaml")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	a := decls[0].(*Mod)
	if !a.HasOption("top") {
		t.Fatal("scalar option not parsed")
	}
	b := decls[1].(*Mod)
	if !b.HasOption("imp") {
		t.Fatal("list option not parsed")
	}
	if v, ok := b.OptionValue("type"); !ok || v != "widget" {
		t.Fatal("valued option not parsed")
	}
}

func TestParseUnknownTag(t *testing.T) {
	_, _, err := Parse([]byte("!Bogus\nname: x\n"), "bad.yaml")
	if err == nil {
		t.Fatal("expected an error for an unknown document tag")
	}
}

func TestExprUnset(t *testing.T) {
	if NewExpr("-").Defined {
		t.Fatal("dash expression should be unset")
	}
	if NewExpr(" ").Defined {
		t.Fatal("blank expression should be unset")
	}
	e := NewExpr(" 1 << 4 ")
	if !e.Defined || e.Raw != "1 << 4" {
		t.Fatal("expression not trimmed")
	}
	if NewExpr("").Or("32") != "32" {
		t.Fatal("fallback not applied")
	}
}

func TestShortDescriptionDerived(t *testing.T) {
	tag := TagBase{LD: "first line\nsecond line"}
	if tag.ShortDescription() != "first line second line" {
		t.Fatal("short description not derived from the long one")
	}
	tag = TagBase{SD: "short", LD: "long"}
	if tag.Description() != "long" || tag.ShortDescription() != "short" {
		t.Fatal("description precedence wrong")
	}
}
