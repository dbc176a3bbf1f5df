package checker

import (
	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/log"
)

// ChaseDriver follows inbound connections from a port signal back to its
// original driver. A signal with more than one inbound edge has diverged
// and the chain cannot be trusted.
func ChaseDriver(port *design.Port, index int) (*design.Port, int, error) {
	inbound := port.InboundConnections()
	if len(inbound) == 0 {
		return port, index, nil
	}
	var filtered []*design.Connection
	for _, conn := range inbound {
		if conn.End == port && conn.EndIndex == index {
			filtered = append(filtered, conn)
		}
	}
	if len(filtered) == 0 {
		return port, index, nil
	}
	if len(filtered) > 1 {
		return nil, 0, criticalf(port.HierarchicalPath(),
			"detected diverging connection tree, ports cannot have more than one driver")
	}
	return ChaseDriver(filtered[0].Start, filtered[0].StartIndex)
}

// mapLink is one address map on the driving chain of an access port.
type mapLink struct {
	addr  *design.AddressMap
	port  *design.Port
	index int
}

func findRegBlocks(block *design.Block) []*design.Block {
	var found []*design.Block
	for _, child := range block.Children {
		found = append(found, findRegBlocks(child)...)
	}
	if len(block.Registers) != 0 {
		found = append(found, block)
	}
	return found
}

// CheckApertures verifies that every block carrying registers is reachable
// through the address maps driving it, and that its register layout fits
// within each target aperture and initiator window on the chain.
func CheckApertures(project *design.Project) ([]*Violation, error) {
	var violations []*Violation

	var regBlocks []*design.Block
	for _, node := range project.Principals {
		if block, ok := node.(*design.Block); ok {
			regBlocks = append(regBlocks, findRegBlocks(block)...)
		}
	}
	if len(regBlocks) == 0 {
		log.Debug("Project contains no register blocks, skipping check\n")
		return violations, nil
	}

	for _, block := range regBlocks {
		log.Debug("Examining block: %s\n", block.HierarchicalPath())
		before := len(violations)

		// Locate the input port whose driver sits on an address map.
		var accessPort *design.Port
		accessIndex := 0
		for _, port := range block.Ports.Input {
			for index := 0; index < port.Count && accessPort == nil; index++ {
				driver, driverIndex, err := ChaseDriver(port, index)
				if err != nil {
					return violations, err
				}
				if driver.Block == nil || driver.Block.AddressMap == nil {
					continue
				}
				if driver.Block.AddressMap.Target(driver, driverIndex) == nil {
					continue
				}
				accessPort, accessIndex = port, index
			}
			if accessPort != nil {
				break
			}
		}
		if accessPort == nil {
			violations = append(violations, violationf(block.HierarchicalPath(),
				"could not establish access port for block"))
			continue
		}

		// Collect every address map in a direct (single-initiator) chain
		// above the access port.
		var links []*mapLink
		var chase func(port *design.Port, index int) error
		chase = func(port *design.Port, index int) error {
			driver, driverIndex, err := ChaseDriver(port, index)
			if err != nil {
				return err
			}
			if driver.Block == nil || driver.Block.AddressMap == nil {
				return nil
			}
			amap := driver.Block.AddressMap
			target := amap.Target(driver, driverIndex)
			if target == nil {
				return nil
			}
			links = append(links, &mapLink{addr: amap, port: driver, index: driverIndex})
			inits := amap.InitiatorsForTarget(target)
			if len(inits) == 0 {
				violations = append(violations, violationf(driver.HierarchicalPath(),
					"no initiators can access port '%s' in address map of '%s'",
					driver.Name, driver.Block.HierarchicalPath()))
				return nil
			}
			// More than one initiator means the path diverged, stop here.
			if len(inits) > 1 {
				return nil
			}
			return chase(inits[0].Port, inits[0].Index)
		}
		if err := chase(accessPort, accessIndex); err != nil {
			return violations, err
		}
		if len(violations) > before {
			continue
		}
		log.Debug("Identified %d address maps in driving chain for port '%s' index %d\n",
			len(links), accessPort.HierarchicalPath(), accessIndex)

		// Highest absolute byte touched by the register layout.
		var maxReg *design.Register
		var maxOffset uint64
		for _, group := range block.Registers {
			for _, reg := range group.Registers {
				offset := group.Offset + reg.Offset
				if maxReg == nil || offset > maxOffset {
					maxReg, maxOffset = reg, offset
				}
			}
		}
		if maxReg == nil {
			log.Debug("No registers found in %s\n", block.HierarchicalPath())
			continue
		}
		maxAddress := maxOffset + maxReg.ByteWidth()
		log.Debug("Maximum register offset of %s is 0x%x with size %d\n",
			block.HierarchicalPath(), maxOffset, maxReg.ByteWidth())

		for _, link := range links {
			target := link.addr.Target(link.port, link.index)
			if maxAddress > target.Aperture {
				violations = append(violations, violationf(block.HierarchicalPath(),
					"register %s at offset 0x%x does not fit in the address map aperture of %d bytes",
					maxReg.Name, maxOffset, target.Aperture))
				break
			}
			for _, init := range link.addr.Initiators {
				if !link.addr.CanAccess(init, target) {
					log.Warning("Register block %s cannot be accessed from %s index %d\n",
						block.HierarchicalPath(), init.Port.HierarchicalPath(), init.Index)
					continue
				}
				initMin := init.Offset
				initMax := init.Offset + init.Mask + 1
				if target.Offset < initMin || target.Offset+maxAddress > initMax {
					violations = append(violations, violationf(block.HierarchicalPath(),
						"not all registers of %s can be accessed by %s index %d: "+
							"target window [0x%x, 0x%x], initiator window [0x%x, 0x%x]",
						block.Name, init.Port.Name, init.Index,
						target.Offset, target.Offset+maxAddress, initMin, initMax))
				}
			}
		}
	}

	return violations, nil
}
