// Package schema defines the typed declaration nodes handed to the
// elaborator, mirroring the tags of the YAML description (!Mod, !His, !Group,
// !Inst, !Config, !Def, ...). Declarations are read-only once loaded.
package schema

import (
	"fmt"
	"strings"
)

// maxShortDescription bounds the length of derived short descriptions.
const maxShortDescription = 150

// Source identifies where a declaration came from, for diagnostics.
type Source struct {
	Path string
	Line int
}

func (s Source) String() string {
	if s.Path == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", s.Path, s.Line)
}

// Kind discriminates the closed set of named declaration types that can be
// registered in an elaboration scope.
type Kind string

const (
	KindMod    Kind = "Mod"
	KindHis    Kind = "His"
	KindGroup  Kind = "Group"
	KindInst   Kind = "Inst"
	KindConfig Kind = "Config"
	KindDef    Kind = "Def"

	// KindAny requests a lookup across every kind.
	KindAny Kind = ""
)

// Declaration is a named, typed node of the input description.
type Declaration interface {
	DeclKind() Kind
	DeclName() string
	DeclSource() Source
}

func normalizeUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeName produces the key under which a declaration is registered.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Expr is an unevaluated expression captured verbatim from the source
// document. The markers "" and "-" both mean "not set".
type Expr struct {
	Raw     string
	Defined bool
}

// NewExpr wraps a raw expression string.
func NewExpr(raw string) Expr {
	clean := strings.TrimSpace(raw)
	return Expr{Raw: clean, Defined: clean != "" && clean != "-"}
}

// Or returns the raw expression, or the fallback if the expression is unset.
func (e Expr) Or(fallback string) string {
	if !e.Defined {
		return fallback
	}
	return e.Raw
}

// TagBase carries the attributes shared by every tag.
type TagBase struct {
	Name    string     `yaml:"name"`
	SD      string     `yaml:"sd"`
	LD      string     `yaml:"ld"`
	Options OptionList `yaml:"options"`
	Src     Source     `yaml:"-"`
}

func (t *TagBase) DeclName() string   { return t.Name }
func (t *TagBase) DeclSource() Source { return t.Src }

// Description returns the long description, falling back to the short one.
func (t *TagBase) Description() string {
	if strings.TrimSpace(t.LD) != "" {
		return t.LD
	}
	return t.SD
}

// ShortDescription returns the short description, deriving one from the long
// description when absent.
func (t *TagBase) ShortDescription() string {
	if strings.TrimSpace(t.SD) != "" {
		return t.SD
	}
	flat := strings.ReplaceAll(t.LD, "\n", " ")
	if len(flat) > maxShortDescription {
		flat = flat[:maxShortDescription]
	}
	return flat
}

// HasOption reports whether a bare option key is present (case-insensitive).
func (t *TagBase) HasOption(key string) bool {
	for _, opt := range t.Options {
		if strings.EqualFold(strings.TrimSpace(opt), key) {
			return true
		}
	}
	return false
}

// OptionValue returns the value of a 'key=value' option.
func (t *TagBase) OptionValue(key string) (string, bool) {
	for _, opt := range t.Options {
		k, v, ok := strings.Cut(opt, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), key) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Port declares a simple signal component within a !His.
type Port struct {
	TagBase `yaml:",inline"`
	Width   Expr    `yaml:"width"`
	Count   Expr    `yaml:"count"`
	Default Expr    `yaml:"default"`
	Role    string  `yaml:"role"`
	Enum    []*Enum `yaml:"enum"`
}

// HisRef instantiates a named !His, either as a complex component of another
// !His or as a boundary port of a !Mod.
type HisRef struct {
	TagBase `yaml:",inline"`
	Ref     string `yaml:"ref"`
	Count   Expr   `yaml:"count"`
	Role    string `yaml:"role"`
}

// Component is either a *Port or a *HisRef inside a !His.
type Component interface {
	componentNode()
}

func (*Port) componentNode()   {}
func (*HisRef) componentNode() {}

// His declares an interconnect type.
type His struct {
	TagBase `yaml:",inline"`
	Role    string        `yaml:"role"`
	Ports   ComponentList `yaml:"ports"`
}

func (*His) DeclKind() Kind { return KindHis }

// ModInst instantiates a child module within a !Mod.
type ModInst struct {
	TagBase `yaml:",inline"`
	Ref     string `yaml:"ref"`
	Count   Expr   `yaml:"count"`
}

// Point names a port, optionally qualified by the child instance that carries
// it. Inside !Initiator and !Target tags the Mod attribute is reused to carry
// the port index.
type Point struct {
	TagBase `yaml:",inline"`
	Port    string `yaml:"port"`
	Mod     string `yaml:"mod"`
}

// Const is a literal value used to tie off ports.
type Const struct {
	TagBase `yaml:",inline"`
	Value   Expr `yaml:"value"`
}

// ConnectEnd is either a *Point or a *Const inside a !Connect constant list.
type ConnectEnd interface {
	connectEndNode()
}

func (*Point) connectEndNode() {}
func (*Const) connectEndNode() {}

// Connect declares an explicit connection group.
type Connect struct {
	TagBase   `yaml:",inline"`
	Points    []*Point       `yaml:"points"`
	Constants ConnectEndList `yaml:"constants"`
}

// Mod declares a module.
type Mod struct {
	TagBase     `yaml:",inline"`
	Extends     string       `yaml:"extends"`
	Ports       []*HisRef    `yaml:"ports"`
	Modules     []*ModInst   `yaml:"modules"`
	Connections []*Connect   `yaml:"connections"`
	Defaults    []*Point     `yaml:"defaults"`
	ClkRoot     *Point       `yaml:"clk_root"`
	RstRoot     *Point       `yaml:"rst_root"`
	AddressMap  MapEntryList `yaml:"addressmap"`
	Registers   string       `yaml:"registers"`
}

func (*Mod) DeclKind() Kind { return KindMod }

// Field declares a bit range within a register or instruction word.
type Field struct {
	TagBase `yaml:",inline"`
	Width   Expr    `yaml:"width"`
	LSB     Expr    `yaml:"lsb"`
	MSB     Expr    `yaml:"msb"`
	Type    string  `yaml:"type"`
	Reset   Expr    `yaml:"reset"`
	Enums   []*Enum `yaml:"enums"`
}

// Enum declares one value of an enumeration.
type Enum struct {
	TagBase `yaml:",inline"`
	Val     Expr `yaml:"val"`
}

// Reg declares one addressable register.
type Reg struct {
	TagBase     `yaml:",inline"`
	Addr        Expr     `yaml:"addr"`
	Array       Expr     `yaml:"array"`
	Align       Expr     `yaml:"align"`
	BlockAccess string   `yaml:"blockaccess"`
	BusAccess   string   `yaml:"busaccess"`
	InstAccess  string   `yaml:"instaccess"`
	Location    string   `yaml:"location"`
	Protect     string   `yaml:"protect"`
	Parent      string   `yaml:"parent"`
	Width       Expr     `yaml:"width"`
	Fields      []*Field `yaml:"fields"`
}

// Group declares a contiguous block of registers.
type Group struct {
	TagBase `yaml:",inline"`
	Type    string `yaml:"type"`
	Array   Expr   `yaml:"array"`
	Regs    []*Reg `yaml:"regs"`
}

func (*Group) DeclKind() Kind { return KindGroup }

// GroupType returns the declared type, defaulting to a plain register group.
func (g *Group) GroupType() string {
	if strings.TrimSpace(g.Type) == "" {
		return GroupRegister
	}
	return strings.ToLower(strings.TrimSpace(g.Type))
}

// Register instantiates a register-type !Group within a !Config.
type Register struct {
	TagBase `yaml:",inline"`
	Group   string `yaml:"group"`
}

// Macro instantiates a macro-type !Group within a !Config.
type Macro struct {
	TagBase `yaml:",inline"`
	Macro   string `yaml:"macro"`
	Array   Expr   `yaml:"array"`
	Align   Expr   `yaml:"align"`
}

// OrderItem is either a *Register or a *Macro inside a !Config order.
type OrderItem interface {
	orderItemNode()
}

func (*Register) orderItemNode() {}
func (*Macro) orderItemNode()    {}

// Config declares the ordered register-group instantiation list of a block.
type Config struct {
	TagBase `yaml:",inline"`
	Order   OrderList `yaml:"order"`
}

func (*Config) DeclKind() Kind { return KindConfig }

// Inst declares an instruction, optionally derived from a base instruction
// with one inherited field fixed to an enumerated value (decode fixation).
type Inst struct {
	TagBase `yaml:",inline"`
	Base    string   `yaml:"base"`
	DecodeF string   `yaml:"decode_f"`
	DecodeE string   `yaml:"decode_e"`
	Fields  []*Field `yaml:"fields"`
}

func (*Inst) DeclKind() Kind { return KindInst }

// Def declares a named constant.
type Def struct {
	TagBase `yaml:",inline"`
	Val     Expr `yaml:"val"`
}

func (*Def) DeclKind() Kind { return KindDef }

// Define overrides parameters of a group, register, or field from outside its
// declaration. A group name of 'MACRO' scopes the override to a !Macro
// instantiation instead.
type Define struct {
	Name        string `yaml:"name"`
	Group       string `yaml:"group"`
	Reg         string `yaml:"reg"`
	Field       string `yaml:"field"`
	Enum        string `yaml:"enum"`
	Array       Expr   `yaml:"array"`
	Align       Expr   `yaml:"align"`
	Width       Expr   `yaml:"width"`
	Reset       Expr   `yaml:"reset"`
	BlockAccess string `yaml:"blockaccess"`
	BusAccess   string `yaml:"busaccess"`
	InstAccess  string `yaml:"instaccess"`
	Src         Source `yaml:"-"`
}

// Initiator declares a port through which transactions enter a block.
type Initiator struct {
	TagBase   `yaml:",inline"`
	Port      *Point   `yaml:"port"`
	Mask      Expr     `yaml:"mask"`
	Offset    Expr     `yaml:"offset"`
	Constrain []*Point `yaml:"constrain"`
}

// Target declares a port through which transactions leave a block, visible
// through a window of the given offset and aperture.
type Target struct {
	TagBase   `yaml:",inline"`
	Port      *Point   `yaml:"port"`
	Offset    Expr     `yaml:"offset"`
	Aperture  Expr     `yaml:"aperture"`
	Constrain []*Point `yaml:"constrain"`
}

// MapEntry is either an *Initiator or a *Target inside a !Mod address map.
type MapEntry interface {
	mapEntryNode()
}

func (*Initiator) mapEntryNode() {}
func (*Target) mapEntryNode()    {}
