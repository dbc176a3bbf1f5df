package elaborate

import (
	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/schema"
)

// resolveMapPoint locates the port an address map entry names. The point's
// mod attribute carries the signal index expression, not a child instance.
func (e *elaborator) resolveMapPoint(block *design.Block, point *schema.Point) (*design.Port, int, error) {
	if point == nil {
		return nil, 0, mapErrorf(schema.Source{}, "address map entry on block %s names no port", block.Name)
	}
	port := block.FindPort(point.Port)
	if port == nil {
		return nil, 0, mapErrorf(point.Src, "could not find port %s on block %s", point.Port, block.Name)
	}
	index := int64(0)
	if point.Mod != "" {
		value, defined, err := e.scope.evalInt(schema.NewExpr(point.Mod), nil, nil)
		if err != nil {
			return nil, 0, err
		}
		if defined {
			index = value
		}
	}
	return port, int(index), nil
}

// elaborateAddressMap builds the block's address map from its !Initiator
// and !Target entries. The map is attached only after every entry and
// constraint resolved, so a failing entry never leaves a partial map.
func (e *elaborator) elaborateAddressMap(entries schema.MapEntryList, block *design.Block) error {
	var initiators, targets int
	for _, entry := range entries {
		switch entry.(type) {
		case *schema.Initiator:
			initiators++
		case *schema.Target:
			targets++
		}
	}
	if initiators == 0 {
		return mapErrorf(schema.Source{}, "address map of %s requires at least one !Initiator", block.Name)
	}
	if targets == 0 {
		return mapErrorf(schema.Source{}, "address map of %s requires at least one !Target", block.Name)
	}

	amap := design.NewAddressMap(block)

	for _, entry := range entries {
		switch item := entry.(type) {
		case *schema.Initiator:
			port, index, err := e.resolveMapPoint(block, item.Port)
			if err != nil {
				return err
			}
			mask, _, err := e.scope.evalInt(item.Mask, nil, nil)
			if err != nil {
				return err
			}
			offset, _, err := e.scope.evalInt(item.Offset, nil, nil)
			if err != nil {
				return err
			}
			if _, err := amap.AddInitiator(port, index, uint64(mask), uint64(offset)); err != nil {
				return mapErrorf(item.Src, "%v", err)
			}
		case *schema.Target:
			port, index, err := e.resolveMapPoint(block, item.Port)
			if err != nil {
				return err
			}
			offset, _, err := e.scope.evalInt(item.Offset, nil, nil)
			if err != nil {
				return err
			}
			aperture, _, err := e.scope.evalInt(item.Aperture, nil, nil)
			if err != nil {
				return err
			}
			if _, err := amap.AddTarget(port, index, uint64(offset), uint64(aperture)); err != nil {
				return mapErrorf(item.Src, "%v", err)
			}
		default:
			return mapErrorf(schema.Source{}, "unknown address map entry type %T on block %s", entry, block.Name)
		}
	}

	// Constraints resolve in a second pass so entries may constrain against
	// ports declared later in the map.
	for _, entry := range entries {
		switch item := entry.(type) {
		case *schema.Initiator:
			port, index, err := e.resolveMapPoint(block, item.Port)
			if err != nil {
				return err
			}
			init := amap.Initiator(port, index)
			for _, point := range item.Constrain {
				tgtPort, tgtIndex, err := e.resolveMapPoint(block, point)
				if err != nil {
					return err
				}
				target := amap.Target(tgtPort, tgtIndex)
				if target == nil {
					return mapErrorf(point.Src, "constraint of initiator %s names %s which is not a target",
						port.Name, tgtPort.Name)
				}
				if err := amap.AddConstraint(init, target); err != nil {
					return mapErrorf(point.Src, "%v", err)
				}
			}
		case *schema.Target:
			port, index, err := e.resolveMapPoint(block, item.Port)
			if err != nil {
				return err
			}
			target := amap.Target(port, index)
			for _, point := range item.Constrain {
				initPort, initIndex, err := e.resolveMapPoint(block, point)
				if err != nil {
					return err
				}
				init := amap.Initiator(initPort, initIndex)
				if init == nil {
					return mapErrorf(point.Src, "constraint of target %s names %s which is not an initiator",
						port.Name, initPort.Name)
				}
				if err := amap.AddConstraint(init, target); err != nil {
					return mapErrorf(point.Src, "%v", err)
				}
			}
		}
	}

	block.SetAddressMap(amap)
	return nil
}
