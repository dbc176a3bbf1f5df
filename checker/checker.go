// Package checker runs post-elaboration sanity rules over a design project.
// Rules collect violations rather than failing outright, so a flawed design
// can still be written to disk with its faults reported alongside.
package checker

import (
	"fmt"

	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/log"
)

// Violation is one failed rule, attached to the path of the node it
// concerns.
type Violation struct {
	Message string
	Path    string
}

func (v *Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// CriticalViolation aborts the rest of the check that raised it. It still
// ends up in the violation list like any other.
type CriticalViolation struct {
	Violation
}

func (v *CriticalViolation) Error() string {
	return v.Violation.String()
}

func violationf(path string, format string, args ...interface{}) *Violation {
	return &Violation{Message: fmt.Sprintf(format, args...), Path: path}
}

func criticalf(path string, format string, args ...interface{}) *CriticalViolation {
	return &CriticalViolation{Violation{Message: fmt.Sprintf(format, args...), Path: path}}
}

// A check examines the whole project and returns its violations. A critical
// violation comes back as the error instead.
type check struct {
	name string
	fn   func(project *design.Project) ([]*Violation, error)
}

var checks = []check{
	{name: "apertures", fn: CheckApertures},
}

// Run executes every registered check and returns all collected violations.
func Run(project *design.Project) []*Violation {
	var violations []*Violation
	for _, c := range checks {
		log.Debug("Executing check '%s'\n", c.name)
		result, err := c.fn(project)
		violations = append(violations, result...)
		if err != nil {
			if critical, ok := err.(*CriticalViolation); ok {
				violations = append(violations, &critical.Violation)
			} else {
				violations = append(violations, &Violation{Message: err.Error()})
			}
			log.Error("Check '%s' aborted: %v\n", c.name, err)
			continue
		}
		if len(result) == 0 {
			log.Debug("Check '%s' succeeded\n", c.name)
		}
	}
	for _, v := range violations {
		log.Error("%s\n", v)
	}
	return violations
}
