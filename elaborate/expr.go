package elaborate

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bluwireless/blade/schema"
	"github.com/pkg/errors"
)

// RefRequest asks a RefCallback to resolve one reference found inside an
// expression. Exactly one of CrossRef and SelfRef is populated.
type RefRequest struct {
	// CrossRef holds the non-empty segments of an a/b/c reference.
	CrossRef []string
	// SelfRef holds the name of a $name reference.
	SelfRef string
	Scope   *Scope
	Context interface{}
}

// RefCallback resolves a reference to a value. It may return a new context
// under which nested references inside the returned value are resolved.
type RefCallback func(req RefRequest) (value interface{}, newCtx interface{}, err error)

var (
	// Multi-part references need at least two separators, e.g. group/reg/field.
	crossRefPattern = regexp.MustCompile(`(?:^|[^\w/])([\w]+(?:/[\w]*){2,})(?:$|[^\w/])`)
	selfRefPattern  = regexp.MustCompile(`(?:^|[^\w$])+\$([\w]+)\b`)
	constantPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_]+)`)
	numberPattern   = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// Evaluate resolves a string expression to a primitive value. Substitution
// runs in order: cross-references, self-references, registered constants,
// then arithmetic evaluation of the remaining text. Each textual match is
// replaced exactly once per occurrence.
func (s *Scope) Evaluate(expression string, cb RefCallback, ctx interface{}) (interface{}, error) {
	original := expression
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}
	if numberPattern.MatchString(expression) {
		if strings.Contains(expression, ".") {
			f, err := strconv.ParseFloat(expression, 64)
			if err != nil {
				return nil, exprErrorf(original, "malformed number %q", expression)
			}
			return f, nil
		}
		i, err := strconv.ParseInt(expression, 10, 64)
		if err != nil {
			return nil, exprErrorf(original, "malformed number %q", expression)
		}
		return i, nil
	}

	for _, match := range crossRefPattern.FindAllStringSubmatch(expression, -1) {
		crossref := match[1]
		if cb == nil {
			return nil, exprErrorf(original, "detected cross-reference but no callback provided: %s", expression)
		}
		key := fmt.Sprintf("cross:%p:%s", ctx, crossref)
		if s.resolving[key] {
			return nil, exprErrorf(original, "reference %s transitively references itself", crossref)
		}
		var parts []string
		for _, part := range strings.Split(crossref, "/") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		value, newCtx, err := cb(RefRequest{CrossRef: parts, Scope: s, Context: ctx})
		if err != nil {
			return nil, err
		}
		s.resolving[key] = true
		value, err = s.evaluateValue(value, cb, newCtx)
		delete(s.resolving, key)
		if err != nil {
			return nil, err
		}
		expression = strings.Replace(expression, crossref, valueString(value), 1)
	}

	for _, match := range selfRefPattern.FindAllStringSubmatch(expression, -1) {
		selfref := match[1]
		if cb == nil {
			return nil, exprErrorf(original, "detected self-reference but no callback provided: %s", expression)
		}
		key := fmt.Sprintf("self:%p:%s", ctx, selfref)
		if s.resolving[key] {
			return nil, exprErrorf(original, "reference $%s transitively references itself", selfref)
		}
		value, newCtx, err := cb(RefRequest{SelfRef: selfref, Scope: s, Context: ctx})
		if err != nil {
			return nil, err
		}
		s.resolving[key] = true
		value, err = s.evaluateValue(value, cb, newCtx)
		delete(s.resolving, key)
		if err != nil {
			return nil, err
		}
		expression = strings.Replace(expression, "$"+selfref, valueString(value), 1)
	}

	for _, match := range constantPattern.FindAllStringSubmatch(expression, -1) {
		name := match[1]
		def := s.LookupDef(name)
		if def == nil {
			continue
		}
		key := "def:" + strings.ToLower(name)
		if s.resolving[key] {
			return nil, exprErrorf(original, "constant %s transitively references itself", def.Name)
		}
		s.resolving[key] = true
		value, err := s.Evaluate(def.Val.Raw, nil, nil)
		delete(s.resolving, key)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving constant %s", def.Name)
		}
		expression = strings.Replace(expression, name, valueString(value), 1)
	}

	node, err := parser.ParseExpr(expression)
	if err != nil {
		return nil, exprErrorf(original, "expression could not be evaluated %q (%q)", expression, original)
	}
	value, err := foldExpr(node)
	if err != nil {
		return nil, exprErrorf(original, "expression could not be fully resolved %q: %v", original, err)
	}
	return nativeValue(value, original)
}

// evaluateValue recurses through a resolved reference value: strings are
// evaluated as nested expressions, primitives pass through unchanged.
func (s *Scope) evaluateValue(value interface{}, cb RefCallback, ctx interface{}) (interface{}, error) {
	if str, ok := value.(string); ok {
		return s.Evaluate(str, cb, ctx)
	}
	return value, nil
}

func valueString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return ""
	}
}

func foldExpr(node ast.Expr) (constant.Value, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		v := constant.MakeFromLiteral(n.Value, n.Kind, 0)
		if v.Kind() == constant.Unknown {
			return nil, errors.Errorf("bad literal %s", n.Value)
		}
		return v, nil
	case *ast.Ident:
		switch n.Name {
		case "true":
			return constant.MakeBool(true), nil
		case "false":
			return constant.MakeBool(false), nil
		}
		return nil, errors.Errorf("unresolved name %q", n.Name)
	case *ast.ParenExpr:
		return foldExpr(n.X)
	case *ast.UnaryExpr:
		x, err := foldExpr(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.ADD, token.SUB, token.XOR, token.NOT:
			return constant.UnaryOp(n.Op, x, 0), nil
		}
		return nil, errors.Errorf("unsupported unary operator %s", n.Op)
	case *ast.BinaryExpr:
		x, err := foldExpr(n.X)
		if err != nil {
			return nil, err
		}
		y, err := foldExpr(n.Y)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.SHL, token.SHR:
			count, ok := constant.Uint64Val(y)
			if !ok {
				return nil, errors.Errorf("invalid shift count %s", y)
			}
			return constant.Shift(x, n.Op, uint(count)), nil
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
			return constant.MakeBool(constant.Compare(x, n.Op, y)), nil
		case token.ADD, token.SUB, token.MUL, token.QUO, token.REM,
			token.AND, token.OR, token.XOR, token.AND_NOT,
			token.LAND, token.LOR:
			return constant.BinaryOp(x, n.Op, y), nil
		}
		return nil, errors.Errorf("unsupported operator %s", n.Op)
	}
	return nil, errors.Errorf("unsupported expression node %T", node)
}

// nativeValue converts a folded constant to an int64, float64, bool or
// string. Exact rationals that are not whole numbers come out as floats.
func nativeValue(v constant.Value, original string) (interface{}, error) {
	switch v.Kind() {
	case constant.Bool:
		return constant.BoolVal(v), nil
	case constant.String:
		return constant.StringVal(v), nil
	case constant.Int:
		i, exact := constant.Int64Val(v)
		if !exact {
			return nil, exprErrorf(original, "integer result of %q does not fit 64 bits", original)
		}
		return i, nil
	case constant.Float:
		f, _ := constant.Float64Val(v)
		return f, nil
	}
	return nil, exprErrorf(original, "expression %q did not evaluate to a primitive", original)
}

// asInt coerces an evaluated value to an integer. Floats must be whole.
func asInt(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.Errorf("value %v is not an integer", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("value %v is not numeric", value)
}

// evalInt evaluates an optional expression to an integer. The second return
// reports whether the expression was present at all.
func (s *Scope) evalInt(expr schema.Expr, cb RefCallback, ctx interface{}) (int64, bool, error) {
	if !expr.Defined {
		return 0, false, nil
	}
	value, err := s.Evaluate(expr.Raw, cb, ctx)
	if err != nil {
		return 0, false, err
	}
	if value == nil {
		return 0, false, nil
	}
	i, err := asInt(value)
	if err != nil {
		return 0, false, exprErrorf(expr.Raw, "expression %q: %v", expr.Raw, err)
	}
	return i, true, nil
}
