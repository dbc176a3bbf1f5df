package elaborate

import (
	"fmt"
	"strings"

	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/log"
	"github.com/bluwireless/blade/schema"
	"github.com/bluwireless/blade/util"
)

// resolveModInheritance merges a module with its (possibly chained) base
// modules: the derived module's ports, children and valued options win,
// the base's are appended. Explicit connections and defaults from the base
// run after the derived module's own.
func (e *elaborator) resolveModInheritance(mod *schema.Mod, visiting map[string]bool) (*schema.Mod, error) {
	if mod.Extends == "" {
		return mod, nil
	}
	key := schema.NormalizeName(mod.Name)
	if visiting[key] {
		return nil, wiringErrorf(mod.Src, "module %s transitively extends itself", mod.Name)
	}
	visiting[key] = true
	defer delete(visiting, key)

	decl := e.scope.Lookup(mod.Extends, schema.KindMod)
	if decl == nil {
		return nil, wiringErrorf(mod.Src, "could not resolve base module '%s' extended by %s", mod.Extends, mod.Name)
	}
	base, err := e.resolveModInheritance(decl.(*schema.Mod), visiting)
	if err != nil {
		return nil, err
	}

	merged := *mod
	merged.Extends = ""

	portNames := map[string]bool{}
	for _, port := range mod.Ports {
		portNames[schema.NormalizeName(port.Name)] = true
	}
	merged.Ports = append([]*schema.HisRef{}, mod.Ports...)
	for _, port := range base.Ports {
		if !portNames[schema.NormalizeName(port.Name)] {
			merged.Ports = append(merged.Ports, port)
		}
	}

	// Simple options union, then valued options from the base only where
	// the derived module does not already define that key.
	options := append(schema.OptionList{}, mod.Options...)
	seen := map[string]bool{}
	for _, opt := range options {
		seen[opt] = true
	}
	for _, opt := range base.Options {
		if !strings.Contains(opt, "=") && !seen[opt] {
			options = append(options, opt)
			seen[opt] = true
		}
	}
	valued := map[string]bool{}
	for _, opt := range options {
		if key, _, ok := strings.Cut(opt, "="); ok {
			valued[strings.TrimSpace(key)] = true
		}
	}
	for _, opt := range base.Options {
		if key, _, ok := strings.Cut(opt, "="); ok && !valued[strings.TrimSpace(key)] {
			options = append(options, opt)
			valued[strings.TrimSpace(key)] = true
		}
	}
	merged.Options = options

	if strings.TrimSpace(merged.SD) == "" {
		merged.SD = base.SD
	}
	if strings.TrimSpace(merged.LD) == "" {
		merged.LD = base.LD
	}

	childNames := map[string]bool{}
	for _, child := range mod.Modules {
		childNames[schema.NormalizeName(child.Name)] = true
	}
	merged.Modules = append([]*schema.ModInst{}, mod.Modules...)
	for _, child := range base.Modules {
		if !childNames[schema.NormalizeName(child.Name)] {
			merged.Modules = append(merged.Modules, child)
		}
	}

	merged.Connections = append(append([]*schema.Connect{}, mod.Connections...), base.Connections...)
	merged.Defaults = append(append([]*schema.Point{}, mod.Defaults...), base.Defaults...)

	if merged.ClkRoot == nil {
		merged.ClkRoot = base.ClkRoot
	}
	if merged.RstRoot == nil {
		merged.RstRoot = base.RstRoot
	}
	if merged.Registers == "" {
		merged.Registers = base.Registers
	}

	return &merged, nil
}

// resolvePointToPorts expands a connection point to concrete ports. A point
// without a child instance names a port on the block itself; one with a
// child instance expands through the instance-count expansion map.
func resolvePointToPorts(block *design.Block, xmap map[string][]string, point *schema.Point) ([]*design.Port, error) {
	if strings.TrimSpace(point.Mod) == "" {
		port := block.FindPort(point.Port)
		if port == nil {
			return nil, wiringErrorf(point.Src, "could not find port %s on block %s", point.Port, block.Name)
		}
		return []*design.Port{port}, nil
	}
	names, ok := xmap[point.Mod]
	if !ok {
		names = []string{point.Mod}
	}
	var ports []*design.Port
	for _, name := range names {
		child := block.FindChild(name)
		if child == nil {
			return nil, wiringErrorf(point.Src, "could not find child %s on block %s", name, block.Name)
		}
		port := child.FindPort(point.Port)
		if port == nil {
			return nil, wiringErrorf(point.Src, "could not find port %s on block %s", point.Port, name)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// portBuckets groups unconnected ports by direction.
type portBuckets struct {
	in    []*design.Port
	out   []*design.Port
	inout []*design.Port
}

func (b *portBuckets) empty() bool {
	return len(b.in)+len(b.out)+len(b.inout) == 0
}

// childPorts carries one child's unconnected ports, keeping child order
// deterministic across the implicit wiring passes.
type childPorts struct {
	child   *design.Block
	buckets portBuckets
}

type unconnectedPorts struct {
	parent   portBuckets
	children []*childPorts
}

// listUnconnectedPorts collects every port on the block and its children
// that is neither wired nor tied off through the defaults list.
func listUnconnectedPorts(block *design.Block, xmap map[string][]string, defaults []*schema.Point) (*unconnectedPorts, error) {
	topIn := append([]*design.Port{}, block.Ports.Input...)
	topOut := append([]*design.Port{}, block.Ports.Output...)
	topBi := append([]*design.Port{}, block.Ports.Inout...)

	var defaulted []*design.Port
	for _, point := range defaults {
		ports, err := resolvePointToPorts(block, xmap, point)
		if err != nil {
			return nil, err
		}
		defaulted = append(defaulted, ports...)
	}

	for _, port := range defaulted {
		topIn = util.RemovedElement(topIn, port)
		topOut = util.RemovedElement(topOut, port)
		topBi = util.RemovedElement(topBi, port)
	}
	// A tied-off port counts as driven.
	for _, tie := range block.Ties {
		topIn = util.RemovedElement(topIn, tie.Port)
		topBi = util.RemovedElement(topBi, tie.Port)
	}
	for _, conn := range block.Connections {
		if conn.Start.Block == block {
			topIn = util.RemovedElement(topIn, conn.Start)
			topBi = util.RemovedElement(topBi, conn.Start)
		}
		if conn.End.Block == block {
			topOut = util.RemovedElement(topOut, conn.End)
		}
	}

	result := &unconnectedPorts{parent: portBuckets{in: topIn, out: topOut, inout: topBi}}

	for _, child := range block.Children {
		buckets := portBuckets{
			in:    append([]*design.Port{}, child.Ports.Input...),
			out:   append([]*design.Port{}, child.Ports.Output...),
			inout: append([]*design.Port{}, child.Ports.Inout...),
		}
		for _, port := range defaulted {
			buckets.in = util.RemovedElement(buckets.in, port)
			buckets.out = util.RemovedElement(buckets.out, port)
			buckets.inout = util.RemovedElement(buckets.inout, port)
		}
		for _, tie := range block.Ties {
			buckets.in = util.RemovedElement(buckets.in, tie.Port)
			buckets.inout = util.RemovedElement(buckets.inout, tie.Port)
		}
		for _, conn := range block.Connections {
			if conn.Start.Block == child {
				buckets.out = util.RemovedElement(buckets.out, conn.Start)
			}
			if conn.End.Block == child {
				buckets.in = util.RemovedElement(buckets.in, conn.End)
				buckets.inout = util.RemovedElement(buckets.inout, conn.End)
			}
		}
		if !buckets.empty() {
			result.children = append(result.children, &childPorts{child: child, buckets: buckets})
		}
	}

	return result, nil
}

// matchPorts reports whether two ports may be wired implicitly.
func matchPorts(a, b *design.Port, relaxed bool) bool {
	return a.Type == b.Type && (relaxed || a.Name == b.Name)
}

// wireImplicit connects the lesser of the two ports' signal counts, source
// side wrapping and target side continuing from the next unused index. An
// exhausted target is a warning, never a failure.
func wireImplicit(block *design.Block, src *design.Port, tgt *design.Port) error {
	common := src.Count
	if tgt.Count < common {
		common = tgt.Count
	}
	srcBase := len(src.OutboundConnections())
	tgtBase := len(tgt.InboundConnections())
	for i := 0; i < common; i++ {
		srcIdx := (i + srcBase) % src.Count
		tgtIdx := i + tgtBase
		if tgtIdx >= tgt.Count {
			log.Warning("Multiple candidates for automatic connection to port %s in block %s\n",
				tgt.HierarchicalPath(), block.Name)
			break
		}
		if _, err := block.AddConnection(src, srcIdx, tgt, tgtIdx); err != nil {
			return wiringErrorf(schema.Source{}, "%v", err)
		}
	}
	return nil
}

// wireParentToChild wires unconnected parent inputs (or bidirectionals)
// through to matching child inputs.
func wireParentToChild(block *design.Block, parentIn []*design.Port, children []*childPorts, relaxed, bidir bool) error {
	for _, topIn := range parentIn {
		for _, entry := range children {
			candidates := entry.buckets.in
			if bidir {
				candidates = entry.buckets.inout
			}
			for _, childIn := range candidates {
				if !matchPorts(childIn, topIn, relaxed) {
					continue
				}
				log.Debug("Connecting %s -> %s\n", topIn.HierarchicalPath(), childIn.HierarchicalPath())
				if err := wireImplicit(block, topIn, childIn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// wireChildToParent wires unconnected child outputs up to matching parent
// outputs.
func wireChildToParent(block *design.Block, parentOut []*design.Port, children []*childPorts, relaxed bool) error {
	for _, topOut := range parentOut {
		for _, entry := range children {
			for _, childOut := range entry.buckets.out {
				if !matchPorts(childOut, topOut, relaxed) {
					continue
				}
				log.Debug("Connecting %s -> %s\n", childOut.HierarchicalPath(), topOut.HierarchicalPath())
				if err := wireImplicit(block, childOut, topOut); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// wireChildToChild wires unconnected outputs of one child to matching
// unconnected inputs of another.
func wireChildToChild(block *design.Block, children []*childPorts, relaxed bool) error {
	for _, a := range children {
		for _, b := range children {
			if a == b {
				continue
			}
			for _, src := range a.buckets.out {
				for _, tgt := range b.buckets.in {
					if !matchPorts(src, tgt, relaxed) {
						continue
					}
					log.Debug("Connecting %s -> %s\n", src.HierarchicalPath(), tgt.HierarchicalPath())
					if err := wireImplicit(block, src, tgt); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// signalCursor tracks the next unconnected signal index per port while
// explicit connection groups are expanded, wrapping once exhausted.
type signalCursor struct {
	next map[*design.Port]int
}

func newSignalCursor() *signalCursor {
	return &signalCursor{next: map[*design.Port]int{}}
}

func (c *signalCursor) index(port *design.Port) int {
	index := c.next[port]
	if index >= port.Count {
		index = 0
	}
	c.next[port] = index + 1
	return index
}

func portDirection(role string) (design.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case schema.RoleSlave:
		return design.Input, nil
	case schema.RoleMaster:
		return design.Output, nil
	case schema.RoleBi:
		return design.Inout, nil
	}
	return "", wiringErrorf(schema.Source{}, "unknown port role '%s'", role)
}

// buildTree recursively expands a module declaration into a block: ports,
// automatic clock/reset, children, explicit and implicit connections,
// registers and the address map. A depth limit truncates the expansion
// right after the principal clock/reset are identified.
func (e *elaborator) buildTree(module *schema.Mod, instanceName string, parent *design.Block, depth int) (*design.Block, error) {
	log.Debug("Elaborating %s\n", module.Name)

	module, err := e.resolveModInheritance(module, map[string]bool{})
	if err != nil {
		return nil, err
	}

	block := design.NewBlock(instanceName, module.Name, parent, module.Description())
	block.Attributes.ApplyOptions(module.Options)
	block.Attributes.Set("LEAF_NODE", len(module.Modules) == 0)
	if module.Src.Path != "" {
		block.Attributes.Set("source_path", module.Src.Path)
	}

	// Boundary ports.
	for _, port := range module.Ports {
		direction, err := portDirection(port.Role)
		if err != nil {
			return nil, wiringErrorf(port.Src, "port %s of %s: %v", port.Name, module.Name, err)
		}
		count, defined, err := e.scope.evalInt(port.Count, nil, nil)
		if err != nil {
			return nil, err
		}
		if !defined {
			count = 1
		}
		if count == 0 {
			log.Debug("Skipping %s port %s of type %s as the count evaluated to zero\n",
				direction, port.Name, port.Ref)
			continue
		}
		newPort := &design.Port{
			Name:        port.Name,
			Type:        port.Ref,
			Count:       int(count),
			Direction:   direction,
			Description: port.Description(),
		}
		newPort.Attributes.ApplyOptions(port.Options)
		block.AddPort(newPort)
	}

	// Automatic clock and reset, unless the module opted out.
	var mainClock, mainReset *design.Port
	if !module.HasOption(schema.OptionNoAutoClkRst) && !module.HasOption(schema.OptionNoClkRst) {
		mainClock = &design.Port{Name: "clk", Type: "clock", Count: 1, Direction: design.Input}
		mainClock.Attributes.Set("AUTO_CLK", true)
		mainClock.Attributes.Set("EXPLICIT_NAME", true)
		block.AddPort(mainClock)

		mainReset = &design.Port{Name: "rst", Type: "reset", Count: 1, Direction: design.Input}
		mainReset.Attributes.Set("AUTO_RST", true)
		mainReset.Attributes.Set("EXPLICIT_NAME", true)
		block.AddPort(mainReset)
	}

	// An explicitly tagged clock or reset input may stand in when the
	// automatic ports were suppressed.
	if mainClock == nil || mainReset == nil {
		for _, port := range block.Ports.Input {
			if mainClock == nil && port.Attributes.Flag("AUTO_CLK") {
				mainClock = port
			} else if mainReset == nil && port.Attributes.Flag("AUTO_RST") {
				mainReset = port
			}
		}
	}
	if mainClock != nil {
		log.Debug("Identified main clock signal: %s\n", mainClock.HierarchicalPath())
		block.NominatePrincipal(mainClock)
	}
	if mainReset != nil {
		log.Debug("Identified main reset signal: %s\n", mainReset.HierarchicalPath())
		block.NominatePrincipal(mainReset)
	}

	// Shallow elaboration stops here, leaving a leaf placeholder.
	if e.opts.MaxDepth > 0 && depth >= e.opts.MaxDepth {
		return block, nil
	}

	// Child instances. The expansion map records which concrete instance
	// names each declared child expands to.
	expansionMap := map[string][]string{}
	for _, item := range module.Modules {
		decl := e.scope.Lookup(item.Ref, schema.KindMod)
		if decl == nil {
			return nil, wiringErrorf(item.Src, "could not resolve child %s of type %s", item.Name, item.Ref)
		}
		count, defined, err := e.scope.evalInt(item.Count, nil, nil)
		if err != nil {
			return nil, err
		}
		if !defined {
			count = 1
		}
		var expandsTo []string
		for i := int64(0); i < count; i++ {
			childName := fmt.Sprintf("%s_%d", item.Name, i)
			child, err := e.buildTree(decl.(*schema.Mod), childName, block, depth+1)
			if err != nil {
				return nil, err
			}
			if desc := item.Description(); desc != "" {
				child.Description = desc
			}
			block.AddChild(child)
			expandsTo = append(expandsTo, childName)
		}
		expansionMap[item.Name] = expandsTo
	}

	// A module-nominated root signal overrides the distribution source.
	if module.ClkRoot != nil {
		ports, err := resolvePointToPorts(block, expansionMap, module.ClkRoot)
		if err != nil {
			return nil, err
		}
		mainClock = ports[0]
		log.Debug("Identified root clock signal: %s\n", mainClock.HierarchicalPath())
		block.NominatePrincipal(mainClock)
	}
	if module.RstRoot != nil {
		ports, err := resolvePointToPorts(block, expansionMap, module.RstRoot)
		if err != nil {
			return nil, err
		}
		mainReset = ports[0]
		log.Debug("Identified root reset signal: %s\n", mainReset.HierarchicalPath())
		block.NominatePrincipal(mainReset)
	}

	// Explicit connection groups.
	cursor := newSignalCursor()
	for _, conn := range module.Connections {
		if len(conn.Points) > 0 {
			if err := e.wireConnectionGroup(block, expansionMap, cursor, conn); err != nil {
				return nil, err
			}
		}
		if len(conn.Constants) > 0 {
			if err := e.wireTieOffs(block, expansionMap, conn); err != nil {
				return nil, err
			}
		}
	}

	// Clock and reset distribution to children whose nominated signals are
	// still undriven.
	var defaulted []*design.Port
	for _, point := range module.Defaults {
		ports, err := resolvePointToPorts(block, expansionMap, point)
		if err != nil {
			return nil, err
		}
		defaulted = append(defaulted, ports...)
	}
	isDefaulted := func(port *design.Port) bool {
		return util.ContainsElement(defaulted, port)
	}
	for _, child := range block.Children {
		childClock := child.PrincipalSignal("clock")
		childReset := child.PrincipalSignal("reset")
		// A child may nominate a root signal that is not an input port on
		// its own boundary, in which case it cannot be driven from here.
		if mainClock != nil && childClock != nil && childClock.Block == child && childClock.Direction == design.Input {
			if len(childClock.InboundConnections()) == 0 && !isDefaulted(childClock) {
				if _, err := block.AddConnection(mainClock, 0, childClock, 0); err != nil {
					return nil, wiringErrorf(module.Src, "%v", err)
				}
			}
		}
		if mainReset != nil && childReset != nil && childReset.Block == child && childReset.Direction == design.Input {
			if len(childReset.InboundConnections()) == 0 && !isDefaulted(childReset) {
				if _, err := block.AddConnection(mainReset, 0, childReset, 0); err != nil {
					return nil, wiringErrorf(module.Src, "%v", err)
				}
			}
		}
	}

	// Implicit connections, first with strict name+type matching, then
	// relaxed to type only.
	for pass := 0; pass < 2; pass++ {
		relaxed := pass == 1
		unconn, err := listUnconnectedPorts(block, expansionMap, module.Defaults)
		if err != nil {
			return nil, err
		}
		if err := wireParentToChild(block, unconn.parent.in, unconn.children, relaxed, false); err != nil {
			return nil, err
		}
		if err := wireParentToChild(block, unconn.parent.inout, unconn.children, relaxed, true); err != nil {
			return nil, err
		}
		if err := wireChildToParent(block, unconn.parent.out, unconn.children, relaxed); err != nil {
			return nil, err
		}
		if err := wireChildToChild(block, unconn.children, relaxed); err != nil {
			return nil, err
		}
	}

	// Attached register layout.
	configTag, err := e.resolveRegisterConfig(module)
	if err != nil {
		return nil, err
	}
	if configTag != nil {
		groups, err := e.elaborateRegisters(configTag)
		if err != nil {
			return nil, err
		}
		for _, group := range groups {
			block.AddRegisterGroup(group)
		}
	}

	// Unconnected-port audit. Blocks carrying registers or their own
	// implementation legitimately leave boundary ports undriven.
	unconn, err := listUnconnectedPorts(block, expansionMap, module.Defaults)
	if err != nil {
		return nil, err
	}
	var audit []*design.Port
	if configTag == nil && !module.HasOption(schema.OptionImp) && !module.HasOption(schema.OptionDecoder) {
		audit = append(audit, unconn.parent.in...)
		audit = append(audit, unconn.parent.out...)
		audit = append(audit, unconn.parent.inout...)
	}
	for _, entry := range unconn.children {
		audit = append(audit, entry.buckets.in...)
		audit = append(audit, entry.buckets.out...)
		audit = append(audit, entry.buckets.inout...)
	}
	for _, port := range audit {
		log.Warning("Port unconnected after elaboration: %s\n", port.HierarchicalPath())
	}

	// Address map.
	if len(module.AddressMap) > 0 {
		if err := e.elaborateAddressMap(module.AddressMap, block); err != nil {
			return nil, err
		}
	}

	return block, nil
}

// resolveRegisterConfig finds the register configuration attached to a
// module: either a named !Config, or a single !Group wrapped into an
// implicit one-entry configuration.
func (e *elaborator) resolveRegisterConfig(module *schema.Mod) (*schema.Config, error) {
	if strings.TrimSpace(module.Registers) == "" {
		return nil, nil
	}
	if decl := e.scope.Lookup(module.Registers, schema.KindConfig); decl != nil {
		return decl.(*schema.Config), nil
	}
	if decl := e.scope.Lookup(module.Registers, schema.KindGroup); decl != nil {
		group := decl.(*schema.Group)
		return &schema.Config{
			TagBase: schema.TagBase{Name: module.Registers, Src: module.Src},
			Order: schema.OrderList{
				&schema.Register{
					TagBase: schema.TagBase{Name: group.Name, Src: group.Src},
					Group:   group.Name,
				},
			},
		}, nil
	}
	return nil, layoutErrorf(module.Src, "could not resolve register configuration '%s' for module %s", module.Registers, module.Name)
}

// wireConnectionGroup classifies the points of an explicit connection group
// as sources or targets and wires them as 1:1, 1:N or N:1.
func (e *elaborator) wireConnectionGroup(block *design.Block, xmap map[string][]string, cursor *signalCursor, conn *schema.Connect) error {
	var sources, targets []*design.Port
	for _, point := range conn.Points {
		ports, err := resolvePointToPorts(block, xmap, point)
		if err != nil {
			return err
		}
		for _, port := range ports {
			// On the block itself an input faces inward (source) and an
			// output faces outward (target); on a child it is reversed.
			if port.Block == block {
				if port.Direction == design.Input {
					sources = append(sources, port)
				} else {
					targets = append(targets, port)
				}
			} else {
				if port.Direction == design.Input {
					targets = append(targets, port)
				} else {
					sources = append(sources, port)
				}
			}
		}
	}

	connect := func(src, tgt *design.Port, srcIdx, tgtIdx int) error {
		if _, err := block.AddConnection(src, srcIdx, tgt, tgtIdx); err != nil {
			return wiringErrorf(conn.Src, "%v", err)
		}
		return nil
	}

	switch {
	case len(sources) == len(targets):
		for i := range sources {
			for j := 0; j < targets[i].Count; j++ {
				if err := connect(sources[i], targets[i], cursor.index(sources[i]), cursor.index(targets[i])); err != nil {
					return err
				}
			}
		}
	case len(sources) == 1 && len(targets) > 1:
		for i := range targets {
			for j := 0; j < targets[i].Count; j++ {
				srcIdx := 0
				if sources[0].Count > 1 {
					srcIdx = cursor.index(sources[0])
				}
				if err := connect(sources[0], targets[i], srcIdx, cursor.index(targets[i])); err != nil {
					return err
				}
			}
		}
	case len(sources) > 1 && len(targets) == 1:
		for i := range sources {
			for j := 0; j < sources[i].Count; j++ {
				if err := connect(sources[i], targets[0], cursor.index(sources[i]), cursor.index(targets[0])); err != nil {
					return err
				}
			}
		}
	default:
		return wiringErrorf(conn.Src, "bad connection %d sources => %d targets", len(sources), len(targets))
	}
	return nil
}

// wireTieOffs binds the ports of a constant connection group to a literal
// value.
func (e *elaborator) wireTieOffs(block *design.Block, xmap map[string][]string, conn *schema.Connect) error {
	var constant *schema.Const
	var tiedPorts []*design.Port
	for _, end := range conn.Constants {
		switch point := end.(type) {
		case *schema.Const:
			if constant != nil {
				return wiringErrorf(conn.Src, "multiple constants for single connection")
			}
			constant = point
		case *schema.Point:
			ports, err := resolvePointToPorts(block, xmap, point)
			if err != nil {
				return err
			}
			tiedPorts = append(tiedPorts, ports...)
		default:
			return wiringErrorf(conn.Src, "unknown connection point type %T", end)
		}
	}
	if constant == nil {
		return wiringErrorf(conn.Src, "could not find a constant in the connection")
	}
	value, _, err := e.scope.evalInt(constant.Value, nil, nil)
	if err != nil {
		return err
	}
	for _, port := range tiedPorts {
		tieIndex := len(port.InboundConnections())
		if _, err := block.AddTieOff(port, tieIndex, value); err != nil {
			return wiringErrorf(conn.Src, "%v", err)
		}
	}
	return nil
}

// elaborateModule expands a module hierarchy into a project: the block tree
// as a principal node plus every interconnect type the tree references.
func (e *elaborator) elaborateModule(top *schema.Mod) (*design.Project, error) {
	project := design.NewProject(top.Name)

	block, err := e.buildTree(top, top.Name, nil, 0)
	if err != nil {
		return nil, err
	}
	project.AddPrincipalNode(block)

	// Chase every interconnect type used by a port anywhere in the tree,
	// plus the types those types reference.
	var required []*schema.His
	seen := map[string]bool{}
	var chase func(name string, src schema.Source) error
	chase = func(name string, src schema.Source) error {
		key := schema.NormalizeName(name)
		if seen[key] {
			return nil
		}
		seen[key] = true
		decl := e.scope.Lookup(name, schema.KindHis)
		if decl == nil {
			return wiringErrorf(src, "could not locate interconnect type %s", name)
		}
		his := decl.(*schema.His)
		required = append(required, his)
		for _, component := range his.Ports {
			if ref, ok := component.(*schema.HisRef); ok {
				if err := chase(ref.Ref, his.Src); err != nil {
					return err
				}
			}
		}
		return nil
	}
	var walk func(b *design.Block) error
	walk = func(b *design.Block) error {
		for _, port := range b.AllPorts() {
			if err := chase(port.Type, top.Src); err != nil {
				return err
			}
		}
		for _, child := range b.Children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(block); err != nil {
		return nil, err
	}

	for _, his := range required {
		intc, err := e.buildInterconnect(his)
		if err != nil {
			return nil, err
		}
		project.AddReferenceNode(intc)
	}
	log.Log("Identified %d interconnect types in the design\n", len(required))

	// Log the elaborated hierarchy.
	var hierarchy func(b *design.Block, depth int) []string
	hierarchy = func(b *design.Block, depth int) []string {
		intro := ""
		if depth > 0 {
			intro = strings.Repeat(" | ", depth-1) + " |-"
		}
		lines := []string{intro + b.Name}
		for _, child := range b.Children {
			lines = append(lines, hierarchy(child, depth+1)...)
		}
		return lines
	}
	lines := hierarchy(block, 0)
	log.Log("Design hierarchy contains %d nodes\n", len(lines))
	for _, line := range lines {
		log.Debug("%s\n", line)
	}

	return project, nil
}
