package elaborate

import (
	"fmt"

	"github.com/bluwireless/blade/schema"
)

// ScopeError reports a duplicate, unnamed or ambiguous declaration.
type ScopeError struct {
	Message string
	Src     schema.Source
}

func (e *ScopeError) Error() string {
	if e.Src.Path != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Src)
	}
	return e.Message
}

func scopeErrorf(src schema.Source, format string, args ...interface{}) *ScopeError {
	return &ScopeError{Message: fmt.Sprintf(format, args...), Src: src}
}

// ExpressionError reports an expression that could not be resolved or
// evaluated.
type ExpressionError struct {
	Message    string
	Expression string
}

func (e *ExpressionError) Error() string {
	return e.Message
}

func exprErrorf(expression string, format string, args ...interface{}) *ExpressionError {
	return &ExpressionError{Message: fmt.Sprintf(format, args...), Expression: expression}
}

// WiringError reports an unresolvable connection point, a malformed fan
// shape or a diverging driver chain.
type WiringError struct {
	Message string
	Src     schema.Source
}

func (e *WiringError) Error() string {
	if e.Src.Path != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Src)
	}
	return e.Message
}

func wiringErrorf(src schema.Source, format string, args ...interface{}) *WiringError {
	return &WiringError{Message: fmt.Sprintf(format, args...), Src: src}
}

// LayoutError reports bit-exact layout failures: field overlap, backward
// addresses, LSB/MSB disagreement, bad decode fixation.
type LayoutError struct {
	Message string
	Src     schema.Source
}

func (e *LayoutError) Error() string {
	if e.Src.Path != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Src)
	}
	return e.Message
}

func layoutErrorf(src schema.Source, format string, args ...interface{}) *LayoutError {
	return &LayoutError{Message: fmt.Sprintf(format, args...), Src: src}
}

// MapError reports an unresolvable initiator, target or constraint in an
// address map.
type MapError struct {
	Message string
	Src     schema.Source
}

func (e *MapError) Error() string {
	if e.Src.Path != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Src)
	}
	return e.Message
}

func mapErrorf(src schema.Source, format string, args ...interface{}) *MapError {
	return &MapError{Message: fmt.Sprintf(format, args...), Src: src}
}
