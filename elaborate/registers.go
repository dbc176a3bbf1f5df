package elaborate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/log"
	"github.com/bluwireless/blade/schema"
)

// defineScope indexes !Define overrides by their group/register/field path.
// A lookup returns only the overrides declared at that exact level.
type defineScope struct {
	byPath map[string][]*schema.Define
}

func newDefineScope() *defineScope {
	return &defineScope{byPath: map[string][]*schema.Define{}}
}

func (d *defineScope) add(def *schema.Define, path ...string) {
	key := definePath(path...)
	d.byPath[key] = append(d.byPath[key], def)
}

func (d *defineScope) at(path ...string) []*schema.Define {
	return d.byPath[definePath(path...)]
}

func definePath(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = schema.NormalizeName(p)
	}
	return strings.Join(normalized, "/")
}

// buildDefineScopes splits the collected overrides into one scope for
// register groups and one for macro instantiations (group name 'MACRO').
func buildDefineScopes(defines []*schema.Define) (groupDefs, macroDefs *defineScope) {
	groupDefs = newDefineScope()
	macroDefs = newDefineScope()
	for _, def := range defines {
		if strings.EqualFold(def.Group, "MACRO") {
			macroDefs.add(def, def.Name)
			continue
		}
		switch {
		case def.Reg != "" && def.Field != "":
			groupDefs.add(def, def.Group, def.Reg, def.Field)
		case def.Reg != "":
			groupDefs.add(def, def.Group, def.Reg)
		default:
			groupDefs.add(def, def.Group)
		}
	}
	return groupDefs, macroDefs
}

func defineParam(def *schema.Define, param string) (schema.Expr, bool) {
	switch param {
	case "width":
		return def.Width, true
	case "reset":
		return def.Reset, true
	case "array":
		return def.Array, true
	case "align":
		return def.Align, true
	}
	return schema.Expr{}, false
}

func defineAccess(def *schema.Define, param string) string {
	switch param {
	case "blockaccess":
		return def.BlockAccess
	case "busaccess":
		return def.BusAccess
	case "instaccess":
		return def.InstAccess
	}
	return ""
}

// overrideExpr returns the first override in the list that sets the given
// parameter.
func overrideExpr(defines []*schema.Define, param string) (schema.Expr, bool) {
	for _, def := range defines {
		if expr, known := defineParam(def, param); known && expr.Defined {
			return expr, true
		}
	}
	return schema.Expr{}, false
}

func overrideAccess(defines []*schema.Define, param string) (string, bool) {
	for _, def := range defines {
		if access := defineAccess(def, param); strings.TrimSpace(access) != "" {
			return access, true
		}
	}
	return "", false
}

// regRefContext is the context threaded through cross-reference resolution
// while a register group is being laid out.
type regRefContext struct {
	group *schema.Group
	defs  *defineScope
}

// regRefCallback resolves cross-references of the form
// group/register/field/parameter against the scope and the active group.
// 'self' in the group position refers to the group under elaboration.
func regRefCallback(req RefRequest) (interface{}, interface{}, error) {
	ctx, _ := req.Context.(*regRefContext)
	if len(req.CrossRef) < 2 {
		return nil, nil, exprErrorf("", "malformed cross-reference: %s", strings.Join(req.CrossRef, "/"))
	}
	parts := req.CrossRef
	param := parts[len(parts)-1]
	parts = parts[:len(parts)-1]

	var group *schema.Group
	if strings.EqualFold(parts[0], "self") {
		if ctx == nil || ctx.group == nil {
			return nil, nil, exprErrorf("", "no group provided to resolve reference: %s", strings.Join(req.CrossRef, "/"))
		}
		group = ctx.group
	} else {
		decl := req.Scope.Lookup(parts[0], schema.KindGroup)
		if decl == nil {
			return nil, nil, exprErrorf("", "could not find group %s", parts[0])
		}
		group = decl.(*schema.Group)
	}

	var focus interface{} = group
	if len(parts) > 1 {
		reg := findReg(group, parts[1])
		if reg == nil {
			return nil, nil, layoutErrorf(group.Src, "could not resolve register %s within group %s", parts[1], group.Name)
		}
		focus = reg
		if len(parts) > 2 {
			field := findField(reg.Fields, parts[2])
			if field == nil {
				return nil, nil, layoutErrorf(reg.Src, "could not resolve field %s within register %s", parts[2], reg.Name)
			}
			focus = field
		}
	}

	value := tagAttr(focus, param)

	// A !Define scoped to the referenced path overrides the literal value.
	if ctx != nil && ctx.defs != nil {
		for _, def := range ctx.defs.at(parts...) {
			if expr, known := defineParam(def, param); known && expr.Defined {
				value = expr.Raw
			}
		}
	}
	if value == nil {
		return nil, nil, exprErrorf("", "parameter %s of %s is not set", param, strings.Join(parts, "/"))
	}
	return value, &regRefContext{group: group, defs: defsOf(ctx)}, nil
}

func defsOf(ctx *regRefContext) *defineScope {
	if ctx == nil {
		return nil
	}
	return ctx.defs
}

func findReg(group *schema.Group, name string) *schema.Reg {
	for _, reg := range group.Regs {
		if schema.NormalizeName(reg.Name) == schema.NormalizeName(name) {
			return reg
		}
	}
	return nil
}

func findField(fields []*schema.Field, name string) *schema.Field {
	for _, field := range fields {
		if schema.NormalizeName(field.Name) == schema.NormalizeName(name) {
			return field
		}
	}
	return nil
}

// tagAttr fetches a raw parameter value from a group, register or field.
func tagAttr(focus interface{}, param string) interface{} {
	exprOrNil := func(e schema.Expr) interface{} {
		if !e.Defined {
			return nil
		}
		return e.Raw
	}
	switch f := focus.(type) {
	case *schema.Group:
		switch param {
		case "array":
			return exprOrNil(f.Array)
		case "name":
			return f.Name
		}
	case *schema.Reg:
		switch param {
		case "addr":
			return exprOrNil(f.Addr)
		case "array":
			return exprOrNil(f.Array)
		case "align":
			return exprOrNil(f.Align)
		case "width":
			return exprOrNil(f.Width)
		case "name":
			return f.Name
		}
	case *schema.Field:
		switch param {
		case "width":
			return exprOrNil(f.Width)
		case "lsb":
			return exprOrNil(f.LSB)
		case "msb":
			return exprOrNil(f.MSB)
		case "reset":
			return exprOrNil(f.Reset)
		case "name":
			return f.Name
		}
	}
	return nil
}

// groupBuilder owns the mutable state of one group expansion: the group
// being laid out, its override scope and the strictness policy.
type groupBuilder struct {
	scope  *Scope
	group  *schema.Group
	defs   *defineScope
	strict bool

	byteMode bool
}

func (b *groupBuilder) ctx() *regRefContext {
	return &regRefContext{group: b.group, defs: b.defs}
}

// regExpr returns a register parameter with any !Define override applied.
func (b *groupBuilder) regExpr(reg *schema.Reg, param string, base schema.Expr) schema.Expr {
	if expr, ok := overrideExpr(b.defs.at(b.group.Name, reg.Name), param); ok {
		return expr
	}
	return base
}

func (b *groupBuilder) regAccess(reg *schema.Reg, param, base, fallback string) string {
	if access, ok := overrideAccess(b.defs.at(b.group.Name, reg.Name), param); ok {
		return schema.NormalizeAccess(access)
	}
	if strings.TrimSpace(base) == "" {
		return fallback
	}
	return schema.NormalizeAccess(base)
}

func (b *groupBuilder) fieldExpr(reg *schema.Reg, field *schema.Field, param string, base schema.Expr) schema.Expr {
	if expr, ok := overrideExpr(b.defs.at(b.group.Name, reg.Name, field.Name), param); ok {
		return expr
	}
	return base
}

// evalIntDefault evaluates an expression, substituting a default when unset.
func (b *groupBuilder) evalIntDefault(expr schema.Expr, fallback int64) (int64, error) {
	value, defined, err := b.scope.evalInt(expr, regRefCallback, b.ctx())
	if err != nil {
		return 0, err
	}
	if !defined {
		return fallback, nil
	}
	return value, nil
}

func (b *groupBuilder) evalIntOpt(expr schema.Expr) (int64, bool, error) {
	return b.scope.evalInt(expr, regRefCallback, b.ctx())
}

// fieldBitmap tracks which bits of a register are already claimed.
type fieldBitmap struct {
	slots []*schema.Field
}

func newFieldBitmap(width int64) *fieldBitmap {
	return &fieldBitmap{slots: make([]*schema.Field, width)}
}

func (m *fieldBitmap) freeFrom(lsb int64) int64 {
	var free int64
	for i := lsb; i < int64(len(m.slots)); i++ {
		if m.slots[i] == nil {
			free++
		}
	}
	return free
}

func (m *fieldBitmap) overlapping(lsb, width int64) []string {
	var names []string
	seen := map[string]bool{}
	for i := lsb; i < lsb+width && i < int64(len(m.slots)); i++ {
		if f := m.slots[i]; f != nil && !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	return names
}

func (m *fieldBitmap) extend(to int64) {
	for int64(len(m.slots)) < to {
		m.slots = append(m.slots, nil)
	}
}

func (m *fieldBitmap) place(field *schema.Field, lsb, width int64) {
	for i := lsb; i < lsb+width; i++ {
		m.slots[i] = field
	}
}

func (m *fieldBitmap) nextFree(from int64) int64 {
	for i := from; i < int64(len(m.slots)); i++ {
		if m.slots[i] == nil {
			return i
		}
	}
	return -1
}

// placedOrder returns the distinct fields in ascending bit order.
func (m *fieldBitmap) placedOrder() []*schema.Field {
	var placed []*schema.Field
	seen := map[*schema.Field]bool{}
	for _, f := range m.slots {
		if f != nil && !seen[f] {
			seen[f] = true
			placed = append(placed, f)
		}
	}
	return placed
}

// resolveFieldRange fixes the LSB of a field from its requested lsb/msb and
// width. When both bounds are given they must agree with the width; when
// only the MSB is given the LSB is derived; otherwise the fallback is used.
// Shared between register layout and instruction layout.
func resolveFieldRange(owner, field string, src schema.Source,
	reqLSB int64, lsbSet bool, reqMSB int64, msbSet bool,
	width, fallback int64) (int64, error) {

	lsb := fallback
	if lsbSet {
		lsb = reqLSB
	}
	if lsbSet && msbSet {
		if reqMSB-width+1 != reqLSB {
			return 0, layoutErrorf(src, "field %s.%s LSB %d and MSB %d don't agree",
				owner, field, reqLSB, reqMSB)
		}
	} else if msbSet {
		lsb = reqMSB - width + 1
	}
	if lsb < 0 {
		return 0, layoutErrorf(src, "field %s.%s cannot be placed, LSB is invalid", owner, field)
	}
	return lsb, nil
}

// wrapReset folds a negative reset value into the field's unsigned range.
func wrapReset(reset, width int64) int64 {
	for reset < 0 {
		reset += 1 << uint(width)
	}
	return reset
}

// buildRegister lays out one register instance at the given group-relative
// offset, packing its fields into a bitmap and resolving every parameter
// through the override scope.
func (b *groupBuilder) buildRegister(reg *schema.Reg, offset uint64, iteration int, macroPrefix string) (*design.Register, error) {
	file := filepath.Base(reg.Src.Path)

	name := fmt.Sprintf("%s_%d", strings.TrimSpace(reg.Name), iteration)
	if macroPrefix != "" {
		name = fmt.Sprintf("%s_%s", strings.TrimSpace(macroPrefix), name)
	}

	regWidth, err := b.evalIntDefault(b.regExpr(reg, "width", reg.Width), 32)
	if err != nil {
		return nil, err
	}

	// A command-definition field turns the register into a packed command
	// word whose width is the sum of its field widths.
	var totalWidth int64
	hasCommand := false
	for _, field := range reg.Fields {
		w, err := b.evalIntDefault(b.fieldExpr(reg, field, "width", field.Width), 1)
		if err != nil {
			return nil, err
		}
		totalWidth += w
		hasCommand = hasCommand || field.Type == schema.FieldCommand
	}
	if hasCommand {
		regWidth = totalWidth
	}

	dfReg := &design.Register{
		Name:        name,
		Offset:      offset,
		Width:       int(regWidth),
		BusAccess:   b.regAccess(reg, "busaccess", reg.BusAccess, schema.AccessReadWrite),
		BlockAccess: b.regAccess(reg, "blockaccess", reg.BlockAccess, schema.AccessReadWrite),
		InstAccess:  b.regAccess(reg, "instaccess", reg.InstAccess, schema.AccessReadOnly),
		Description: reg.Description(),
	}
	dfReg.Attributes.ApplyOptions(reg.Options)
	dfReg.Attributes.Set("location", reg.Location)
	if reg.Parent != "" {
		dfReg.Attributes.Set("parent", reg.Parent)
	}
	protect := reg.Protect
	if strings.TrimSpace(protect) == "" {
		protect = "000"
	}
	dfReg.Attributes.Set("protect", protect)

	bitmap := newFieldBitmap(regWidth)
	var nextLSB int64

	for _, field := range reg.Fields {
		reqLSB, lsbSet, err := b.evalIntOpt(b.fieldExpr(reg, field, "lsb", field.LSB))
		if err != nil {
			return nil, err
		}
		reqMSB, msbSet, err := b.evalIntOpt(b.fieldExpr(reg, field, "msb", field.MSB))
		if err != nil {
			return nil, err
		}
		width, err := b.evalIntDefault(b.fieldExpr(reg, field, "width", field.Width), 1)
		if err != nil {
			return nil, err
		}
		reset, err := b.evalIntDefault(b.fieldExpr(reg, field, "reset", field.Reset), 0)
		if err != nil {
			return nil, err
		}

		if width == 0 {
			log.Warning("Field %s: %s.%s has zero width\n", file, name, field.Name)
			continue
		}

		lsb, err := resolveFieldRange(name, field.Name, field.Src, reqLSB, lsbSet, reqMSB, msbSet, width, nextLSB)
		if err != nil {
			return nil, err
		}
		reset = wrapReset(reset, width)

		if bitmap.freeFrom(lsb) < width {
			if b.strict {
				return nil, layoutErrorf(field.Src, "field %s: %s.%s exceeds maximum width (%d)",
					file, name, field.Name, len(bitmap.slots))
			}
			log.Warning("Field %s: %s.%s exceeds maximum width (%d)\n", file, name, field.Name, len(bitmap.slots))
			bitmap.extend(lsb + width)
		} else if clashes := bitmap.overlapping(lsb, width); len(clashes) > 0 {
			return nil, layoutErrorf(field.Src, "field %s: %s.%s overlaps with: %s",
				file, name, field.Name, strings.Join(clashes, ", "))
		}
		bitmap.place(field, lsb, width)
		nextLSB = bitmap.nextFree(lsb + width)

		log.Debug("Adding field '%s' with LSB=%d and WIDTH=%d\n", field.Name, lsb, width)
		dfField := &design.RegisterField{
			Name:        field.Name,
			LSB:         int(lsb),
			Width:       int(width),
			Reset:       reset,
			Signed:      field.Type == schema.FieldSigned,
			Description: field.Description(),
		}
		dfReg.AddField(dfField)

		enumVal := int64(-1)
		for _, enum := range field.Enums {
			if enum.Val.Defined {
				value, defined, err := b.evalIntOpt(enum.Val)
				if err != nil {
					return nil, err
				}
				if defined {
					enumVal = value
				} else {
					enumVal++
				}
			} else {
				enumVal++
			}
			if enumVal > (1<<uint(width))-1 {
				log.Warning("Enumeration value for field (%s) %s.%s exceeds width (%d bits) of field: %s=%d\n",
					file, name, field.Name, width, enum.Name, enumVal)
			}
			dfField.AddEnumValue(enum.Name, enumVal, enum.Description())
		}

		dfField.Attributes.ApplyOptions(field.Options)
		if field.Type == schema.FieldCommand {
			dfField.Attributes.Set("CMD_DEF", true)
		}
	}

	// Flag fields whose allocated position differs from declaration order.
	placed := bitmap.placedOrder()
	count := len(placed)
	if len(reg.Fields) > count {
		count = len(reg.Fields)
	}
	for i := 0; i < count; i++ {
		expected, reality := "", ""
		if i < len(reg.Fields) {
			expected = reg.Fields[i].Name
		}
		if i < len(placed) {
			reality = placed[i].Name
		}
		if expected != reality {
			log.Warning("Field %s: %s.%s LSB placement differs from declared order\n", file, name, expected)
		}
	}

	return dfReg, nil
}

// buildGroup expands a group declaration into one RegisterGroup per array
// instance, assigning byte addresses from nextAddr onwards. It returns the
// constructed groups and the next free address.
func (e *elaborator) buildGroup(group *schema.Group, isMacro bool, nextAddr uint64, defs *defineScope,
	macroPrefix string, macroArray, macroAlign int64) ([]*design.RegisterGroup, uint64, error) {

	file := filepath.Base(group.Src.Path)

	if isMacro && group.GroupType() != schema.GroupMacro {
		return nil, 0, layoutErrorf(group.Src, "evaluating macro but group %s is not of macro type (%s)", group.Name, file)
	} else if !isMacro && group.GroupType() != schema.GroupRegister {
		return nil, 0, layoutErrorf(group.Src, "evaluating non-macro but group %s is not of register type (%s)", group.Name, file)
	}

	builder := &groupBuilder{
		scope:    e.scope,
		group:    group,
		defs:     defs,
		strict:   e.opts.Strict,
		byteMode: group.HasOption(schema.OptionByte),
	}

	grpArray := macroArray
	if !isMacro {
		var err error
		grpArray, err = builder.evalIntDefault(group.Array, 1)
		if err != nil {
			return nil, 0, err
		}
	}

	// Addresses and alignments are in words unless the group opted into
	// byte-dense packing.
	align := int64(1)
	if isMacro {
		align = macroAlign
	}
	byteAlign := uint64(align)
	if !builder.byteMode {
		byteAlign = uint64(align) << 2
	}
	alignMask := byteAlign - 1

	regs := expandInterrupts(group.Regs)
	regs = expandSetClear(regs)

	// Only the first pass of the group is aligned, repeats follow directly.
	if align > 0 && nextAddr&alignMask != 0 {
		nextAddr = (nextAddr + byteAlign) &^ alignMask
	}

	var dfGroups []*design.RegisterGroup
	log.Debug("Expanding group %s %d times\n", group.Name, grpArray)
	for iGroup := int64(0); iGroup < grpArray; iGroup++ {
		grpName := group.Name
		if isMacro {
			grpName = macroPrefix
		}
		if grpArray > 1 {
			grpName = fmt.Sprintf("%s_%d", grpName, iGroup)
		}
		dfGroup := &design.RegisterGroup{
			ID:          grpName,
			Offset:      nextAddr,
			Description: group.Description(),
		}
		dfGroup.Attributes.ApplyOptions(group.Options)
		if isMacro {
			dfGroup.Attributes.Set("MACRO", group.Name)
		}
		if group.Src.Path != "" {
			dfGroup.Attributes.Set("source_path", group.Src.Path)
		}

		for _, reg := range regs {
			regArray, err := builder.evalIntDefault(builder.regExpr(reg, "array", reg.Array), 1)
			if err != nil {
				return nil, 0, err
			}
			regWidth, err := builder.evalIntDefault(builder.regExpr(reg, "width", reg.Width), 1)
			if err != nil {
				return nil, 0, err
			}
			regByteWidth := uint64(regWidth+7) / 8

			regAddr := nextAddr
			regAlign, err := builder.evalIntDefault(builder.regExpr(reg, "align", reg.Align), 1)
			if err != nil {
				return nil, 0, err
			}
			regByteAlign := uint64(regAlign)
			if !builder.byteMode {
				regByteAlign = uint64(regAlign) << 2
			}
			regAlignMask := regByteAlign - 1

			if reg.Addr.Defined {
				explicit, err := builder.evalIntDefault(builder.regExpr(reg, "addr", reg.Addr), 0)
				if err != nil {
					return nil, 0, err
				}
				regAddr = uint64(explicit)
				if !builder.byteMode {
					regAddr *= 4
				}
			}
			if regAddr < nextAddr {
				return nil, 0, layoutErrorf(reg.Src, "address for '%s' out of sequence (0x%x < 0x%x) (%s)",
					reg.Name, regAddr, nextAddr, file)
			}

			for iReg := int64(0); iReg < regArray; iReg++ {
				if regAddr&regAlignMask != 0 {
					regAddr = (regAddr + regByteAlign) &^ regAlignMask
				}
				prefix := ""
				if isMacro {
					prefix = grpName
				}
				dfReg, err := builder.buildRegister(reg, regAddr-dfGroup.Offset, int(iReg), prefix)
				if err != nil {
					return nil, 0, err
				}
				dfGroup.AddRegister(dfReg)

				regAddr += regByteWidth
				if !builder.byteMode && regAddr&0x3 != 0 {
					regAddr = (regAddr + 4) &^ uint64(0x3)
				}
			}
			nextAddr = regAddr
		}
		dfGroups = append(dfGroups, dfGroup)
	}

	return dfGroups, nextAddr, nil
}

// elaborateRegisters works through a configuration's ordered instantiation
// list, expanding plain register groups and macros into RegisterGroups.
func (e *elaborator) elaborateRegisters(top *schema.Config) ([]*design.RegisterGroup, error) {
	groupDefs, macroDefs := buildDefineScopes(e.scope.Defines())

	var nextAddr uint64
	var allGroups []*design.RegisterGroup
	for _, item := range top.Order {
		switch inst := item.(type) {
		case *schema.Register:
			decl := e.scope.Lookup(inst.Group, schema.KindGroup)
			if decl == nil {
				return nil, layoutErrorf(inst.Src, "could not resolve register group: %s", inst.Group)
			}
			groups, addr, err := e.buildGroup(decl.(*schema.Group), false, nextAddr, groupDefs, "", 0, 0)
			if err != nil {
				return nil, err
			}
			allGroups = append(allGroups, groups...)
			nextAddr = addr
		case *schema.Macro:
			decl := e.scope.Lookup(inst.Macro, schema.KindGroup)
			if decl == nil {
				return nil, layoutErrorf(inst.Src, "could not resolve macro group: %s", inst.Macro)
			}
			group := decl.(*schema.Group)

			arrayExpr, alignExpr := inst.Array, inst.Align
			for _, def := range macroDefs.at(inst.Name) {
				if def.Array.Defined {
					arrayExpr = def.Array
				}
				if def.Align.Defined {
					alignExpr = def.Align
				}
			}
			ctx := &regRefContext{group: group, defs: macroDefs}
			mArray, defined, err := e.scope.evalInt(arrayExpr, regRefCallback, ctx)
			if err != nil {
				return nil, err
			}
			if !defined {
				mArray = 1
			}
			mAlign, defined, err := e.scope.evalInt(alignExpr, regRefCallback, ctx)
			if err != nil {
				return nil, err
			}
			if !defined {
				mAlign = 1
			}

			groups, addr, err := e.buildGroup(group, true, nextAddr, macroDefs, inst.Name, mArray, mAlign)
			if err != nil {
				return nil, err
			}
			allGroups = append(allGroups, groups...)
			nextAddr = addr
		default:
			return nil, layoutErrorf(top.Src, "invalid type referenced in order of config %s", top.Name)
		}
	}
	return allGroups, nil
}
