// Package elaborate turns parsed schema declarations into a fully resolved
// design: expressions evaluated, registers laid out bit-exactly, module
// hierarchies expanded and wired, address maps closed over.
package elaborate

import (
	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/log"
	"github.com/bluwireless/blade/schema"
)

// Options tunes elaboration behaviour.
type Options struct {
	// MaxDepth truncates hierarchy expansion below the given depth. Zero
	// means no limit.
	MaxDepth int
	// Strict turns field width overflows from warnings into hard errors.
	Strict bool
}

type elaborator struct {
	scope *Scope
	opts  Options
}

// Elaborate expands a top-level declaration into a project, resolving every
// reference through the given scope.
func Elaborate(top schema.Declaration, scope *Scope, opts Options) (*design.Project, error) {
	e := &elaborator{scope: scope, opts: opts}

	switch decl := top.(type) {
	case *schema.Mod:
		return e.elaborateModule(decl)

	case *schema.His:
		return e.elaborateInterconnect(decl, nil)

	case *schema.Inst:
		command, err := e.elaborateInstruction(decl)
		if err != nil {
			return nil, err
		}
		project := design.NewProject(decl.Name)
		project.AddPrincipalNode(command)
		return project, nil

	case *schema.Config:
		return e.registerProject(decl.Name, decl)

	case *schema.Group:
		// A bare group elaborates as a one-entry configuration.
		config := &schema.Config{
			TagBase: schema.TagBase{Name: decl.Name, Src: decl.Src},
			Order: schema.OrderList{
				&schema.Register{
					TagBase: schema.TagBase{Name: decl.Name, Src: decl.Src},
					Group:   decl.Name,
				},
			},
		}
		return e.registerProject(decl.Name, config)

	case *schema.Def:
		define, err := e.elaborateDefine(decl)
		if err != nil {
			return nil, err
		}
		project := design.NewProject(decl.Name)
		project.AddPrincipalNode(define)
		return project, nil
	}

	return nil, scopeErrorf(top.DeclSource(), "declaration %s of type %T cannot be elaborated", top.DeclName(), top)
}

func (e *elaborator) registerProject(name string, config *schema.Config) (*design.Project, error) {
	groups, err := e.elaborateRegisters(config)
	if err != nil {
		return nil, err
	}
	project := design.NewProject(name)
	for _, group := range groups {
		project.AddPrincipalNode(group)
	}
	log.Debug("Elaborated %d register groups from %s\n", len(groups), name)
	return project, nil
}
