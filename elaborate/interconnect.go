package elaborate

import (
	"strings"

	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/schema"
)

// designRole maps a declared role onto the output model. Unknown roles are
// treated as bidirectional.
func designRole(role string) design.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case schema.RoleMaster:
		return design.Master
	case schema.RoleSlave:
		return design.Slave
	default:
		return design.Bidir
	}
}

// buildInterconnect converts an interconnect type declaration into its
// output description, resolving component widths, counts and defaults.
func (e *elaborator) buildInterconnect(his *schema.His) (*design.Interconnect, error) {
	role := designRole(his.Role)
	intc := &design.Interconnect{
		Name:        his.Name,
		Role:        role,
		Description: his.Description(),
	}

	for _, component := range his.Ports {
		switch port := component.(type) {
		case *schema.HisRef:
			// A bidirectional interconnect propagates its role to every
			// component.
			compRole := designRole(port.Role)
			if role == design.Bidir {
				compRole = design.Bidir
			}
			count, defined, err := e.scope.evalInt(port.Count, nil, nil)
			if err != nil {
				return nil, err
			}
			if !defined {
				count = 1
			}
			intc.AddComponent(&design.InterconnectComponent{
				Name:        port.Name,
				Role:        compRole,
				Description: port.Description(),
				Kind:        design.ComponentComplex,
				Ref:         port.Ref,
				Count:       int(count),
			})
		case *schema.Port:
			compRole := designRole(port.Role)
			if role == design.Bidir {
				compRole = design.Bidir
			}
			width, defined, err := e.scope.evalInt(port.Width, nil, nil)
			if err != nil {
				return nil, err
			}
			if !defined {
				width = 1
			}
			count, defined, err := e.scope.evalInt(port.Count, nil, nil)
			if err != nil {
				return nil, err
			}
			if !defined {
				count = 1
			}

			// The default may name one of the port's enumerated values.
			var dflt int64
			dfltSet := false
			if port.Default.Defined && len(port.Enum) > 0 {
				for _, enum := range port.Enum {
					if schemaNameEqual(enum.Name, port.Default.Raw) {
						value, defined, err := e.scope.evalInt(enum.Val, nil, nil)
						if err != nil {
							return nil, err
						}
						if defined {
							dflt, dfltSet = value, true
						}
						break
					}
				}
			}
			if !dfltSet {
				value, defined, err := e.scope.evalInt(port.Default, nil, nil)
				if err != nil {
					return nil, err
				}
				if defined {
					dflt = value
				}
			}

			comp := &design.InterconnectComponent{
				Name:        port.Name,
				Role:        compRole,
				Description: port.Description(),
				Kind:        design.ComponentSimple,
				Width:       int(width),
				Count:       int(count),
				Default:     dflt,
			}
			enumVal := int64(-1)
			for _, enum := range port.Enum {
				enumVal++
				if enum.Val.Defined {
					value, defined, err := e.scope.evalInt(enum.Val, nil, nil)
					if err != nil {
						return nil, err
					}
					if defined {
						enumVal = value
					}
				}
				comp.AddEnumValue(enum.Name, enumVal, enum.Description())
			}
			intc.AddComponent(comp)
		default:
			return nil, wiringErrorf(his.Src, "unknown interconnect component type in %s", his.Name)
		}
	}

	intc.Attributes.ApplyOptions(his.Options)
	if his.Src.Path != "" {
		intc.Attributes.Set("source_path", his.Src.Path)
	}
	return intc, nil
}

// elaborateInterconnect builds the named interconnect type and, recursively,
// every interconnect type it references. The top type joins the project as a
// principal node, referenced types as reference nodes.
func (e *elaborator) elaborateInterconnect(his *schema.His, project *design.Project) (*design.Project, error) {
	intc, err := e.buildInterconnect(his)
	if err != nil {
		return nil, err
	}
	if project == nil {
		project = design.NewProject(his.Name)
		project.AddPrincipalNode(intc)
	} else {
		project.AddReferenceNode(intc)
	}
	for _, component := range intc.Components {
		if component.Kind != design.ComponentComplex {
			continue
		}
		decl := e.scope.Lookup(component.Ref, schema.KindHis)
		if decl == nil {
			return nil, wiringErrorf(his.Src, "failed to resolve interconnect type %s", component.Ref)
		}
		if _, err := e.elaborateInterconnect(decl.(*schema.His), project); err != nil {
			return nil, err
		}
	}
	return project, nil
}
