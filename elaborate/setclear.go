package elaborate

import (
	"fmt"

	"github.com/bluwireless/blade/schema"
)

// replacedFields rebuilds a field list with every description replaced.
func replacedFields(fields []*schema.Field, desc string) []*schema.Field {
	out := make([]*schema.Field, 0, len(fields))
	for _, field := range fields {
		derived := &schema.Field{
			TagBase: schema.TagBase{
				Name:    field.Name,
				SD:      desc,
				LD:      desc,
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
		out = append(out, derived)
	}
	return out
}

// expandSetClearReg derives the status/set/clear triplet from a register
// tagged with the 'setclear' option.
func expandSetClearReg(reg *schema.Reg) []*schema.Reg {
	var expanded []*schema.Reg

	expanded = append(expanded, derivedReg(reg,
		reg.Name,
		reg.LD,
		schema.AccessReadOnly, schema.AccessReadWrite,
		derivedFields(reg.Fields, "", nil, nil),
		[]string{"setclear=status", reg.Name},
		schema.LocationInternal,
	))

	expanded = append(expanded, derivedReg(reg,
		reg.Name+"_set",
		fmt.Sprintf("%s (set alias - write 1 to set bit position).", reg.LD),
		schema.AccessReadOnly, schema.AccessActiveWrite,
		replacedFields(reg.Fields,
			"Write a 1 to this field to set the corresponding bit (0 is ignored)."),
		[]string{"setclear=set", reg.Name},
		schema.LocationInternal,
	))

	expanded = append(expanded, derivedReg(reg,
		reg.Name+"_clear",
		fmt.Sprintf("%s (clear alias - write 1 to clear bit position).", reg.LD),
		schema.AccessReadOnly, schema.AccessActiveWrite,
		replacedFields(reg.Fields,
			"Write a 1 to this field to clear the corresponding bit (0 is ignored)."),
		[]string{"setclear=clear", reg.Name},
		schema.LocationInternal,
	))

	return expanded
}

// expandSetClear rewrites every register tagged 'setclear' into its derived
// status/set/clear registers, passing untagged registers through unchanged.
func expandSetClear(regs []*schema.Reg) []*schema.Reg {
	var expanded []*schema.Reg
	for _, reg := range regs {
		if reg.HasOption(schema.OptionSetClear) {
			expanded = append(expanded, expandSetClearReg(reg)...)
		} else {
			expanded = append(expanded, reg)
		}
	}
	return expanded
}
