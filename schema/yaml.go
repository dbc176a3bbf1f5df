package schema

import (
	"bytes"
	"io"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// OptionList accepts either a single scalar option or a sequence of options.
type OptionList []string

func (l *OptionList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		value := strings.TrimSpace(node.Value)
		if value == "" {
			*l = nil
			return nil
		}
		*l = OptionList{value}
		return nil
	}
	var values []string
	if err := node.Decode(&values); err != nil {
		return err
	}
	*l = OptionList(values)
	return nil
}

func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*e = Expr{}
		return nil
	}
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("expected scalar expression, got %s", node.Tag)
	}
	*e = NewExpr(node.Value)
	return nil
}

// ComponentList dispatches !Port and !HisRef items inside a !His.
type ComponentList []Component

func (l *ComponentList) UnmarshalYAML(node *yaml.Node) error {
	for _, item := range node.Content {
		switch item.Tag {
		case "!Port":
			p := new(Port)
			if err := item.Decode(p); err != nil {
				return err
			}
			p.Src.Line = item.Line
			*l = append(*l, p)
		case "!HisRef":
			r := new(HisRef)
			if err := item.Decode(r); err != nil {
				return err
			}
			r.Src.Line = item.Line
			*l = append(*l, r)
		default:
			return errors.Errorf("unsupported interconnect component tag %q", item.Tag)
		}
	}
	return nil
}

// OrderList dispatches !Register and !Macro items inside a !Config.
type OrderList []OrderItem

func (l *OrderList) UnmarshalYAML(node *yaml.Node) error {
	for _, item := range node.Content {
		switch item.Tag {
		case "!Register":
			r := new(Register)
			if err := item.Decode(r); err != nil {
				return err
			}
			r.Src.Line = item.Line
			*l = append(*l, r)
		case "!Macro":
			m := new(Macro)
			if err := item.Decode(m); err != nil {
				return err
			}
			m.Src.Line = item.Line
			*l = append(*l, m)
		default:
			return errors.Errorf("unsupported order tag %q", item.Tag)
		}
	}
	return nil
}

// MapEntryList dispatches !Initiator and !Target items of an address map.
type MapEntryList []MapEntry

func (l *MapEntryList) UnmarshalYAML(node *yaml.Node) error {
	for _, item := range node.Content {
		switch item.Tag {
		case "!Initiator":
			i := new(Initiator)
			if err := item.Decode(i); err != nil {
				return err
			}
			i.Src.Line = item.Line
			*l = append(*l, i)
		case "!Target":
			t := new(Target)
			if err := item.Decode(t); err != nil {
				return err
			}
			t.Src.Line = item.Line
			*l = append(*l, t)
		default:
			return errors.Errorf("unsupported address map tag %q", item.Tag)
		}
	}
	return nil
}

// ConnectEndList dispatches !Point and !Const items of a tie-off list.
type ConnectEndList []ConnectEnd

func (l *ConnectEndList) UnmarshalYAML(node *yaml.Node) error {
	for _, item := range node.Content {
		switch item.Tag {
		case "!Point":
			p := new(Point)
			if err := item.Decode(p); err != nil {
				return err
			}
			p.Src.Line = item.Line
			*l = append(*l, p)
		case "!Const":
			c := new(Const)
			if err := item.Decode(c); err != nil {
				return err
			}
			c.Src.Line = item.Line
			*l = append(*l, c)
		default:
			return errors.Errorf("unsupported connection end tag %q", item.Tag)
		}
	}
	return nil
}

// Parse decodes every declaration document in the given YAML source text.
// !Define documents are returned separately as they are overlays rather than
// registerable declarations.
func Parse(data []byte, path string) ([]Declaration, []*Define, error) {
	var decls []Declaration
	var defines []*Define

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parsing %s", path)
		}
		node := &doc
		if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
			node = node.Content[0]
		}

		switch node.Tag {
		case "!Mod":
			m := new(Mod)
			if err := node.Decode(m); err != nil {
				return nil, nil, errors.Wrapf(err, "parsing !Mod in %s", path)
			}
			stampMod(m, path, node.Line)
			decls = append(decls, m)
		case "!His":
			h := new(His)
			if err := node.Decode(h); err != nil {
				return nil, nil, errors.Wrapf(err, "parsing !His in %s", path)
			}
			stampHis(h, path, node.Line)
			decls = append(decls, h)
		case "!Group":
			g := new(Group)
			if err := node.Decode(g); err != nil {
				return nil, nil, errors.Wrapf(err, "parsing !Group in %s", path)
			}
			stampGroup(g, path, node.Line)
			decls = append(decls, g)
		case "!Inst":
			i := new(Inst)
			if err := node.Decode(i); err != nil {
				return nil, nil, errors.Wrapf(err, "parsing !Inst in %s", path)
			}
			stampInst(i, path, node.Line)
			decls = append(decls, i)
		case "!Config":
			c := new(Config)
			if err := node.Decode(c); err != nil {
				return nil, nil, errors.Wrapf(err, "parsing !Config in %s", path)
			}
			stampBase(&c.TagBase, path, node.Line)
			decls = append(decls, c)
		case "!Def":
			d := new(Def)
			if err := node.Decode(d); err != nil {
				return nil, nil, errors.Wrapf(err, "parsing !Def in %s", path)
			}
			stampBase(&d.TagBase, path, node.Line)
			decls = append(decls, d)
		case "!Define":
			d := new(Define)
			if err := node.Decode(d); err != nil {
				return nil, nil, errors.Wrapf(err, "parsing !Define in %s", path)
			}
			d.Src = Source{Path: path, Line: node.Line}
			defines = append(defines, d)
		default:
			return nil, nil, errors.Errorf("unsupported document tag %q in %s", node.Tag, path)
		}
	}

	return decls, defines, nil
}

// LoadFile parses every declaration document in a YAML file.
func LoadFile(path string) ([]Declaration, []*Define, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", path)
	}
	return Parse(data, path)
}

func stampBase(t *TagBase, path string, line int) {
	t.Src.Path = path
	if t.Src.Line == 0 {
		t.Src.Line = line
	}
}

func stampMod(m *Mod, path string, line int) {
	stampBase(&m.TagBase, path, line)
	for _, p := range m.Ports {
		p.Src.Path = path
	}
	for _, c := range m.Modules {
		c.Src.Path = path
	}
	for _, conn := range m.Connections {
		conn.Src.Path = path
		for _, pt := range conn.Points {
			pt.Src.Path = path
		}
		for _, end := range conn.Constants {
			switch e := end.(type) {
			case *Point:
				e.Src.Path = path
			case *Const:
				e.Src.Path = path
			}
		}
	}
	for _, pt := range m.Defaults {
		pt.Src.Path = path
	}
	for _, entry := range m.AddressMap {
		switch e := entry.(type) {
		case *Initiator:
			e.Src.Path = path
		case *Target:
			e.Src.Path = path
		}
	}
}

func stampHis(h *His, path string, line int) {
	stampBase(&h.TagBase, path, line)
	for _, comp := range h.Ports {
		switch c := comp.(type) {
		case *Port:
			c.Src.Path = path
		case *HisRef:
			c.Src.Path = path
		}
	}
}

func stampGroup(g *Group, path string, line int) {
	stampBase(&g.TagBase, path, line)
	for _, reg := range g.Regs {
		reg.Src.Path = path
		for _, field := range reg.Fields {
			field.Src.Path = path
		}
	}
}

func stampInst(i *Inst, path string, line int) {
	stampBase(&i.TagBase, path, line)
	for _, field := range i.Fields {
		field.Src.Path = path
	}
}
