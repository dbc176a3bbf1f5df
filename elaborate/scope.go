package elaborate

import (
	"github.com/bluwireless/blade/log"
	"github.com/bluwireless/blade/schema"
	"github.com/bluwireless/blade/util"
)

// Scope is the registry of every declaration visible to one elaboration
// run, keyed by kind and normalized name. It also carries the Define
// overrides collected while loading, and tracks in-progress constant
// resolutions to break reference cycles.
type Scope struct {
	docs    map[schema.Kind]*util.OrderedMap[string, schema.Declaration]
	defines []*schema.Define

	resolving map[string]bool
}

func NewScope() *Scope {
	return &Scope{
		docs:      map[schema.Kind]*util.OrderedMap[string, schema.Declaration]{},
		resolving: map[string]bool{},
	}
}

// Register adds a named declaration to the scope. Registering a constant
// twice with the same value is a no-op; a constant with a conflicting value
// or a declaration without a name is a ScopeError. Duplicates of any other
// kind keep the first registration and warn.
func (s *Scope) Register(decl schema.Declaration) error {
	name := schema.NormalizeName(decl.DeclName())
	if name == "" {
		return scopeErrorf(decl.DeclSource(), "cannot register a %s declaration without a name", decl.DeclKind())
	}
	kind := decl.DeclKind()
	if s.docs[kind] == nil {
		m := util.NewOrderedMap[string, schema.Declaration]()
		s.docs[kind] = &m
	}
	if existing, ok := s.docs[kind].Lookup(name); ok {
		if def, isDef := decl.(*schema.Def); isDef {
			prev := existing.(*schema.Def)
			if prev.Val.Raw == def.Val.Raw {
				return nil
			}
			return scopeErrorf(def.Src, "constant %s redefined with a different value: %q vs %q (first seen at %s)",
				def.Name, def.Val.Raw, prev.Val.Raw, prev.Src)
		}
		log.Warning("%s (kind %s) already exists in scope:\n -> %s\n -> %s\n",
			decl.DeclName(), kind, decl.DeclSource(), existing.DeclSource())
		return nil
	}
	s.docs[kind].Insert(name, decl)
	return nil
}

// Lookup returns the declaration registered under the given name, or nil.
// With kind schema.KindAny every kind is searched in a fixed order.
func (s *Scope) Lookup(name string, kind schema.Kind) schema.Declaration {
	clean := schema.NormalizeName(name)
	if kind != schema.KindAny {
		if m := s.docs[kind]; m != nil {
			if decl, ok := m.Lookup(clean); ok {
				return decl
			}
		}
		return nil
	}
	for _, k := range []schema.Kind{schema.KindMod, schema.KindHis, schema.KindGroup, schema.KindInst, schema.KindConfig, schema.KindDef} {
		if m := s.docs[k]; m != nil {
			if decl, ok := m.Lookup(clean); ok {
				return decl
			}
		}
	}
	return nil
}

// LookupDef returns the constant registered under the given name, or nil.
func (s *Scope) LookupDef(name string) *schema.Def {
	if decl := s.Lookup(name, schema.KindDef); decl != nil {
		return decl.(*schema.Def)
	}
	return nil
}

// Declarations returns every declaration of one kind, sorted by name.
func (s *Scope) Declarations(kind schema.Kind) []schema.Declaration {
	if m := s.docs[kind]; m != nil {
		return m.Values()
	}
	return nil
}

// AddDefine records a layout override collected from the source files.
func (s *Scope) AddDefine(def *schema.Define) {
	s.defines = append(s.defines, def)
}

// Defines returns every recorded layout override.
func (s *Scope) Defines() []*schema.Define {
	return s.defines
}
