package elaborate

import (
	"fmt"

	"github.com/bluwireless/blade/schema"
)

// derivedFields builds a fresh copy of a field list for a derived register.
// Descriptions are prefixed, and the reset or width expressions may be
// replaced per field. Fields are rebuilt from scratch so the derived list
// never aliases the original declarations.
func derivedFields(fields []*schema.Field, prefix string, reset, width func(*schema.Field) schema.Expr) []*schema.Field {
	out := make([]*schema.Field, 0, len(fields))
	for _, field := range fields {
		derived := &schema.Field{
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
		if prefix != "" && field.LD != "" {
			derived.LD = fmt.Sprintf("%s %s", prefix, field.LD)
		}
		if prefix != "" && field.SD != "" {
			derived.SD = fmt.Sprintf("%s %s", prefix, field.SD)
		}
		if reset != nil {
			derived.Reset = reset(field)
		}
		if width != nil {
			derived.Width = width(field)
		}
		out = append(out, derived)
	}
	return out
}

func derivedReg(base *schema.Reg, name, ld, blockAccess, busAccess string,
	fields []*schema.Field, options []string, location string) *schema.Reg {
	return &schema.Reg{
		TagBase: schema.TagBase{
			Name:    name,
			LD:      ld,
			Options: schema.OptionList(options),
			Src:     base.Src,
		},
		Array:       base.Array,
		Align:       base.Align,
		BlockAccess: blockAccess,
		BusAccess:   busAccess,
		Location:    location,
		Parent:      base.Name,
		Fields:      fields,
	}
}

// expandEvent derives the interrupt register set from a register tagged with
// the 'event' option: raw status, masked status, clear, enable, set, and
// optionally level and mode configuration.
func expandEvent(reg *schema.Reg, hasMode, hasLevel bool) []*schema.Reg {
	var expanded []*schema.Reg

	expanded = append(expanded, derivedReg(reg,
		reg.Name+"_rsta",
		fmt.Sprintf("Shows unmasked (raw) interrupt event/status for %s", reg.LD),
		schema.AccessReadOnly, schema.AccessReadOnly,
		derivedFields(reg.Fields, "Raw status for", nil, nil),
		[]string{"interrupt=rsta", reg.Name},
		schema.LocationInternal,
	))

	expanded = append(expanded, derivedReg(reg,
		reg.Name+"_msta",
		fmt.Sprintf("Shows masked interrupt status (MSTA=RSTA & ENABLE) for %s", reg.LD),
		schema.AccessReadOnly, schema.AccessReadOnly,
		derivedFields(reg.Fields, "Masked status for", nil, nil),
		[]string{"interrupt=msta", reg.Name},
		schema.LocationInternal,
	))

	expanded = append(expanded, derivedReg(reg,
		reg.Name+"_clear",
		"Clears bits in the masked (MSTA) and raw (RSTA) status registers (interrupt acknowledgement).",
		schema.AccessReadOnly, schema.AccessActiveWrite,
		derivedFields(reg.Fields, "Clear bit for", nil, nil),
		[]string{"interrupt=clear", reg.Name},
		schema.LocationCore,
	))

	expanded = append(expanded, derivedReg(reg,
		reg.Name+"_enable",
		"Interrupt enable. Has no effect on RSTA, but is used by MSTA & the interrupt output for the block.",
		schema.AccessReadOnly, schema.AccessReadWrite,
		derivedFields(reg.Fields, "Enable for", nil, nil),
		[]string{"interrupt=enable", reg.Name},
		schema.LocationInternal,
	))

	expanded = append(expanded, derivedReg(reg,
		reg.Name+"_set",
		fmt.Sprintf("Software interrupt raise - sets bit in RSTA & MSTA (if enable set) for %s", reg.LD),
		schema.AccessReadOnly, schema.AccessActiveWrite,
		derivedFields(reg.Fields, "Set RSTA bit for", nil, nil),
		[]string{"interrupt=set", reg.Name},
		schema.LocationCore,
	))

	if hasLevel {
		// Reset to all ones, deferred as an expression so the field width
		// is resolved under the group's own scope.
		levelReset := func(field *schema.Field) schema.Expr {
			return schema.NewExpr(fmt.Sprintf("((1 << (%s)) - 1)", field.Width.Or("1")))
		}
		expanded = append(expanded, derivedReg(reg,
			reg.Name+"_level",
			"Defines the input interrupt level sensitivity (only appropriate for interrupt generation from external sources like GPIO).",
			schema.AccessReadOnly, schema.AccessReadWrite,
			derivedFields(reg.Fields,
				"Level mode: 0 = active low, 1 = active high. Edge mode: 0 = falling edge, 1 = rising edge.",
				levelReset, nil),
			[]string{"interrupt=level", reg.Name},
			schema.LocationInternal,
		))
	}

	if hasMode {
		one := func(*schema.Field) schema.Expr { return schema.NewExpr("1") }
		expanded = append(expanded, derivedReg(reg,
			reg.Name+"_mode",
			"Defines the input interrupt mode of level or edge (only appropriate for interrupt generation from external sources like GPIO).",
			schema.AccessReadOnly, schema.AccessReadWrite,
			derivedFields(reg.Fields, "0 = level mode, 1 = edge mode.", one, one),
			[]string{"interrupt=mode", reg.Name},
			schema.LocationInternal,
		))
	}

	return expanded
}

// expandInterrupts rewrites every register tagged 'event' into its derived
// interrupt register set, passing untagged registers through unchanged.
func expandInterrupts(regs []*schema.Reg) []*schema.Reg {
	var expanded []*schema.Reg
	for _, reg := range regs {
		if reg.HasOption(schema.OptionEvent) {
			expanded = append(expanded, expandEvent(
				reg,
				reg.HasOption(schema.OptionHasMode),
				reg.HasOption(schema.OptionHasLevel) || !reg.HasOption(schema.OptionNoLevel),
			)...)
		} else {
			expanded = append(expanded, reg)
		}
	}
	return expanded
}
