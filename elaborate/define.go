package elaborate

import (
	"github.com/bluwireless/blade/design"
	"github.com/bluwireless/blade/schema"
)

// elaborateDefine evaluates a constant declaration to its integer value.
func (e *elaborator) elaborateDefine(top *schema.Def) (*design.Define, error) {
	value, err := e.scope.Evaluate(top.Val.Raw, nil, nil)
	if err != nil {
		return nil, err
	}
	number, err := asInt(value)
	if err != nil {
		return nil, exprErrorf(top.Val.Raw, "constant %s does not evaluate to an integer: %v", top.Name, err)
	}
	return &design.Define{
		Name:        top.Name,
		Value:       number,
		Description: top.Description(),
	}, nil
}
