package elaborate

import (
	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/schema"
)

// instructionWidth is the fixed width of a decoded instruction word.
const instructionWidth = 32

// instRefContext carries the instruction and field under elaboration so
// that $param self-references and inst/field/param cross-references can be
// resolved.
type instRefContext struct {
	inst  *schema.Inst
	field *schema.Field
}

func instRefCallback(req RefRequest) (interface{}, interface{}, error) {
	ctx, _ := req.Context.(*instRefContext)
	if ctx == nil || ctx.inst == nil {
		return nil, nil, exprErrorf("", "no instruction provided to resolve reference")
	}
	inst := ctx.inst
	field := ctx.field

	var focus interface{}
	var param string
	if req.SelfRef != "" {
		param = req.SelfRef
		if field != nil {
			focus = field
		} else {
			focus = inst
		}
	} else {
		parts := req.CrossRef
		param = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
		if len(parts) == 0 {
			return nil, nil, exprErrorf("", "malformed instruction cross-reference")
		}
		if !schemaNameEqual(parts[0], "self") {
			decl := req.Scope.Lookup(parts[0], schema.KindInst)
			if decl == nil {
				return nil, nil, exprErrorf("", "could not find instruction %s", parts[0])
			}
			inst = decl.(*schema.Inst)
		}
		focus = inst
		if len(parts) > 1 {
			found := findField(inst.Fields, parts[1])
			if found == nil {
				return nil, nil, layoutErrorf(inst.Src, "could not resolve field %s within instruction %s", parts[1], inst.Name)
			}
			field = found
			focus = found
		}
	}

	value := tagAttr(focus, param)
	if value == nil {
		return nil, nil, exprErrorf("", "parameter %s is not set on %s", param, inst.Name)
	}
	return value, &instRefContext{inst: inst, field: field}, nil
}

func schemaNameEqual(a, b string) bool {
	return schema.NormalizeName(a) == schema.NormalizeName(b)
}

// resolveInstruction flattens an instruction's inheritance chain into the
// full field list, applying decode fixation: a derived instruction may pin
// one inherited field to one of its enumerated values. Returns the full
// hierarchical name, the resolved base name, and the field list.
func (e *elaborator) resolveInstruction(inst *schema.Inst, visiting map[string]bool) (string, string, []*schema.Field, error) {
	key := schema.NormalizeName(inst.Name)
	if visiting[key] {
		return "", "", nil, layoutErrorf(inst.Src, "instruction %s transitively inherits from itself", inst.Name)
	}
	visiting[key] = true
	defer delete(visiting, key)

	basename := ""
	var fields []*schema.Field
	if inst.Base != "" {
		decl := e.scope.Lookup(inst.Base, schema.KindInst)
		if decl == nil {
			return "", "", nil, layoutErrorf(inst.Src, "could not resolve base instruction '%s'", inst.Base)
		}
		resolved, _, baseFields, err := e.resolveInstruction(decl.(*schema.Inst), visiting)
		if err != nil {
			return "", "", nil, err
		}
		basename = resolved
		fields = append(fields, baseFields...)
	}

	propagated := make([]*schema.Field, 0, len(fields)+len(inst.Fields))
	foundDecodeF := false
	for _, field := range fields {
		if inst.DecodeF == "" || !schemaNameEqual(inst.DecodeF, field.Name) {
			propagated = append(propagated, field)
			continue
		}
		foundDecodeF = true
		fixed := &schema.Field{
			TagBase: schema.TagBase{
				Name:    field.Name,
				SD:      field.SD,
				LD:      field.LD,
				Options: append(schema.OptionList{}, field.Options...),
				Src:     field.Src,
			},
			Width: field.Width,
			LSB:   field.LSB,
			MSB:   field.MSB,
			Type:  field.Type,
			Reset: field.Reset,
			Enums: field.Enums,
		}
		if inst.DecodeE != "" {
			var match *schema.Enum
			for _, enum := range field.Enums {
				if schemaNameEqual(enum.Name, inst.DecodeE) {
					match = enum
					break
				}
			}
			if match == nil {
				return "", "", nil, layoutErrorf(inst.Src, "could not resolve decode_e '%s' in field '%s'", inst.DecodeE, field.Name)
			}
			value, err := e.scope.Evaluate(match.Val.Raw, instRefCallback, &instRefContext{inst: inst, field: field})
			if err != nil {
				return "", "", nil, err
			}
			fixed.Reset = schema.NewExpr(valueString(value))
			fixed.SD = valueString(value)
			fixed.LD = valueString(value)
			fixed.Options = append(fixed.Options, "value_fixed")
		}
		propagated = append(propagated, fixed)
	}
	if inst.DecodeF != "" && !foundDecodeF {
		return "", "", nil, layoutErrorf(inst.Src, "could not resolve decode_f '%s' for instruction '%s'", inst.DecodeF, inst.Name)
	}

	propagated = append(propagated, inst.Fields...)

	name := inst.Name
	if basename != "" {
		name = basename + "_" + name
	}
	return name, basename, propagated, nil
}

// elaborateInstruction lays an instruction's fields out into a Command.
// Fields may overlap deliberately, so unlike register layout no bitmap
// collision check is performed.
func (e *elaborator) elaborateInstruction(top *schema.Inst) (*design.Command, error) {
	_, basename, fields, err := e.resolveInstruction(top, map[string]bool{})
	if err != nil {
		return nil, err
	}

	dfInst := &design.Command{
		ID:          top.Name,
		Width:       instructionWidth,
		Description: top.Description(),
	}
	dfInst.Attributes.ApplyOptions(top.Options)
	if top.Base != "" {
		dfInst.Attributes.Set("base", top.Base)
		dfInst.Attributes.Set("fullbase", basename)
	}
	if top.DecodeF != "" {
		dfInst.Attributes.Set("decode_f", top.DecodeF)
		dfInst.Attributes.Set("decode_e", top.DecodeE)
	}

	own := map[*schema.Field]bool{}
	for _, field := range top.Fields {
		own[field] = true
	}

	for _, field := range fields {
		ctx := &instRefContext{inst: top, field: field}

		reqLSB, lsbSet, err := e.scope.evalInt(field.LSB, instRefCallback, ctx)
		if err != nil {
			return nil, err
		}
		reqMSB, msbSet, err := e.scope.evalInt(field.MSB, instRefCallback, ctx)
		if err != nil {
			return nil, err
		}
		width, defined, err := e.scope.evalInt(field.Width, instRefCallback, ctx)
		if err != nil {
			return nil, err
		}
		if !defined {
			width = 1
		}
		reset, defined, err := e.scope.evalInt(field.Reset, instRefCallback, ctx)
		if err != nil {
			return nil, err
		}
		if !defined {
			reset = 0
		}

		lsb, err := resolveFieldRange(top.Name, field.Name, field.Src, reqLSB, lsbSet, reqMSB, msbSet, width, 0)
		if err != nil {
			return nil, err
		}
		if lsb+width-1 > instructionWidth {
			return nil, layoutErrorf(field.Src, "instruction %s.%s MSB %d is greater than the instruction width (%d)",
				top.Name, field.Name, lsb+width-1, instructionWidth)
		}

		dfField := &design.CommandField{
			Name:        field.Name,
			LSB:         int(lsb),
			Width:       int(width),
			Reset:       wrapReset(reset, width),
			Description: field.Description(),
		}
		dfField.Attributes.Set("inherited", !own[field])

		enumVal := int64(-1)
		for _, enum := range field.Enums {
			enumVal++
			if enum.Val.Defined {
				value, defined, err := e.scope.evalInt(enum.Val, instRefCallback, ctx)
				if err != nil {
					return nil, err
				}
				if defined {
					enumVal = value
				}
			}
			dfField.AddEnumValue(enum.Name, enumVal, enum.Description())
		}
		dfField.Attributes.ApplyOptions(field.Options)
		dfInst.AddField(dfField)
	}

	return dfInst, nil
}
