// Package filter provides AIP-160 filter parsing for listing queries, with an
// in-memory matcher and a SQL translation over the same parsed form.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// ErrInvalid wraps every parse or type-check failure.
var ErrInvalid = errors.New("invalid filter")

type kind int

const (
	kindString kind = iota
	kindInt
	kindBool
)

type fieldSpec struct {
	kind kind
	// scale converts filter units to stored units (dollars to cents).
	scale int64
}

var fields = map[string]fieldSpec{
	"category":    {kind: kindString},
	"condition":   {kind: kindString},
	"location":    {kind: kindString},
	"seller_id":   {kind: kindString},
	"status":      {kind: kindString},
	"price":       {kind: kindInt, scale: 100},
	"highest_bid": {kind: kindInt, scale: 100},
	"is_biddable": {kind: kindBool},
}

// Fields returns the filterable field names.
func Fields() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}

// Declarations returns the field declarations for listing filtering.
func Declarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("true", filtering.TypeBool),
		filtering.DeclareIdent("false", filtering.TypeBool),
	}
	for name, spec := range fields {
		switch spec.kind {
		case kindString:
			opts = append(opts, filtering.DeclareIdent(name, filtering.TypeString))
		case kindInt:
			opts = append(opts, filtering.DeclareIdent(name, filtering.TypeInt))
		case kindBool:
			opts = append(opts, filtering.DeclareIdent(name, filtering.TypeBool))
		}
	}
	return filtering.NewDeclarations(opts...)
}

// Record exposes stored field values to the matcher. Strings, int64 and
// bool are the supported value types.
type Record interface {
	FilterValue(field string) (any, bool)
}

// Filter is a parsed filter expression. The zero value matches everything.
type Filter struct {
	raw  string
	root node
}

// Parse parses and type-checks an AIP-160 expression. Blank input yields
// the zero Filter.
func Parse(raw string) (Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Filter{}, nil
	}
	decls, err := Declarations()
	if err != nil {
		return Filter{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(raw, decls)
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	root, err := translateExpr(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Filter{raw: raw, root: root}, nil
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.root == nil
}

// String returns the source expression.
func (f Filter) String() string {
	return f.raw
}

// Match evaluates the filter against r.
func (f Filter) Match(r Record) bool {
	if f.root == nil {
		return true
	}
	return f.root.match(r)
}

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// SQL renders the filter as a WHERE fragment. columns maps every field name
// to its SQL column; the zero Filter renders an empty condition.
func (f Filter) SQL(columns map[string]string) (SQLCondition, error) {
	if f.root == nil {
		return SQLCondition{}, nil
	}
	return f.root.sql(columns)
}

type node interface {
	match(Record) bool
	sql(columns map[string]string) (SQLCondition, error)
}

type op string

const (
	opEq  op = "="
	opNe  op = "!="
	opLt  op = "<"
	opLe  op = "<="
	opGt  op = ">"
	opGe  op = ">="
	opHas op = ":"
)

func translateExpr(e *expr.Expr) (node, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	case *expr.Expr_IdentExpr:
		return translateBareIdent(kind.IdentExpr.GetName())
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call) (node, error) {
	args := call.GetArgs()
	switch call.GetFunction() {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd, "_&&_":
		left, right, err := translatePair(args)
		if err != nil {
			return nil, err
		}
		return andNode{left: left, right: right}, nil
	case filtering.FunctionOr, "_||_":
		left, right, err := translatePair(args)
		if err != nil {
			return nil, err
		}
		return orNode{left: left, right: right}, nil
	case filtering.FunctionNot, "!_":
		if len(args) != 1 {
			return nil, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translateExpr(args[0])
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	case filtering.FunctionEquals, "_==_":
		return translateComparison(args, opEq)
	case filtering.FunctionNotEquals, "_!=_":
		return translateComparison(args, opNe)
	case filtering.FunctionLessThan, "_<_":
		return translateComparison(args, opLt)
	case filtering.FunctionLessEquals, "_<=_":
		return translateComparison(args, opLe)
	case filtering.FunctionGreaterThan, "_>_":
		return translateComparison(args, opGt)
	case filtering.FunctionGreaterEquals, "_>=_":
		return translateComparison(args, opGe)
	case filtering.FunctionHas:
		return translateComparison(args, opHas)
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.GetFunction())
	}
}

func translatePair(args []*expr.Expr) (node, node, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("logical operator requires 2 arguments")
	}
	left, err := translateExpr(args[0])
	if err != nil {
		return nil, nil, err
	}
	right, err := translateExpr(args[1])
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func translateBareIdent(name string) (node, error) {
	switch name {
	case "true":
		return constNode(true), nil
	case "false":
		return constNode(false), nil
	}
	spec, ok := fields[name]
	if !ok || spec.kind != kindBool {
		return nil, fmt.Errorf("field %s is not a boolean", name)
	}
	return cmpNode{field: name, spec: spec, op: opEq, value: true}, nil
}

func translateComparison(args []*expr.Expr, operator op) (node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}
	ident := args[0].GetIdentExpr()
	if ident == nil {
		return nil, fmt.Errorf("expected field on the left of %s", operator)
	}
	field := ident.GetName()
	spec, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field: %s", field)
	}
	value, err := extractValue(args[1], spec)
	if err != nil {
		return nil, err
	}
	if operator == opHas && spec.kind != kindString {
		return nil, fmt.Errorf("has operator requires a string field")
	}
	if spec.kind == kindBool && operator != opEq && operator != opNe {
		return nil, fmt.Errorf("boolean field %s only supports = and !=", field)
	}
	return cmpNode{field: field, spec: spec, op: operator, value: value}, nil
}

func extractValue(e *expr.Expr, spec fieldSpec) (any, error) {
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_ConstExpr:
		switch c := kind.ConstExpr.GetConstantKind().(type) {
		case *expr.Constant_StringValue:
			if spec.kind != kindString {
				return nil, fmt.Errorf("expected number or boolean")
			}
			return c.StringValue, nil
		case *expr.Constant_Int64Value:
			if spec.kind != kindInt {
				return nil, fmt.Errorf("unexpected number")
			}
			scale := spec.scale
			if scale == 0 {
				scale = 1
			}
			return c.Int64Value * scale, nil
		default:
			return nil, fmt.Errorf("unsupported constant type: %T", c)
		}
	case *expr.Expr_IdentExpr:
		if spec.kind == kindBool {
			switch kind.IdentExpr.GetName() {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return nil, fmt.Errorf("comparison value must be a literal")
	default:
		return nil, fmt.Errorf("comparison value must be a literal")
	}
}

type andNode struct{ left, right node }

func (n andNode) match(r Record) bool { return n.left.match(r) && n.right.match(r) }

func (n andNode) sql(columns map[string]string) (SQLCondition, error) {
	return joinSQL(n.left, n.right, "AND", columns)
}

type orNode struct{ left, right node }

func (n orNode) match(r Record) bool { return n.left.match(r) || n.right.match(r) }

func (n orNode) sql(columns map[string]string) (SQLCondition, error) {
	return joinSQL(n.left, n.right, "OR", columns)
}

type notNode struct{ inner node }

func (n notNode) match(r Record) bool { return !n.inner.match(r) }

func (n notNode) sql(columns map[string]string) (SQLCondition, error) {
	inner, err := n.inner.sql(columns)
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{Clause: "(NOT " + inner.Clause + ")", Params: inner.Params}, nil
}

type constNode bool

func (n constNode) match(Record) bool { return bool(n) }

func (n constNode) sql(map[string]string) (SQLCondition, error) {
	if n {
		return SQLCondition{Clause: "1 = 1"}, nil
	}
	return SQLCondition{Clause: "1 = 0"}, nil
}

func joinSQL(left, right node, keyword string, columns map[string]string) (SQLCondition, error) {
	l, err := left.sql(columns)
	if err != nil {
		return SQLCondition{}, err
	}
	r, err := right.sql(columns)
	if err != nil {
		return SQLCondition{}, err
	}
	params := append(append([]any(nil), l.Params...), r.Params...)
	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", l.Clause, keyword, r.Clause),
		Params: params,
	}, nil
}

type cmpNode struct {
	field string
	spec  fieldSpec
	op    op
	value any
}

func (n cmpNode) match(r Record) bool {
	if r == nil {
		return false
	}
	raw, ok := r.FilterValue(n.field)
	if !ok {
		return false
	}
	switch n.spec.kind {
	case kindString:
		got, ok := raw.(string)
		if !ok {
			return false
		}
		return compareStrings(got, n.value.(string), n.op)
	case kindInt:
		got, ok := raw.(int64)
		if !ok {
			return false
		}
		return compareInts(got, n.value.(int64), n.op)
	case kindBool:
		got, ok := raw.(bool)
		if !ok {
			return false
		}
		want := n.value.(bool)
		if n.op == opNe {
			return got != want
		}
		return got == want
	default:
		return false
	}
}

func compareStrings(got, want string, operator op) bool {
	switch operator {
	case opEq:
		return strings.EqualFold(got, want)
	case opNe:
		return !strings.EqualFold(got, want)
	case opHas:
		return strings.Contains(strings.ToLower(got), strings.ToLower(want))
	case opLt:
		return got < want
	case opLe:
		return got <= want
	case opGt:
		return got > want
	case opGe:
		return got >= want
	default:
		return false
	}
}

func compareInts(got, want int64, operator op) bool {
	switch operator {
	case opEq:
		return got == want
	case opNe:
		return got != want
	case opLt:
		return got < want
	case opLe:
		return got <= want
	case opGt:
		return got > want
	case opGe:
		return got >= want
	default:
		return false
	}
}

func (n cmpNode) sql(columns map[string]string) (SQLCondition, error) {
	column, ok := columns[n.field]
	if !ok || column == "" {
		return SQLCondition{}, fmt.Errorf("no column mapped for field %s", n.field)
	}
	value := n.value
	if b, ok := value.(bool); ok {
		value = int64(0)
		if b {
			value = int64(1)
		}
	}
	switch {
	case n.spec.kind == kindString && n.op == opHas:
		return SQLCondition{Clause: fmt.Sprintf("instr(lower(%s), lower(?)) > 0", column), Params: []any{value}}, nil
	case n.spec.kind == kindString && (n.op == opEq || n.op == opNe):
		return SQLCondition{Clause: fmt.Sprintf("%s %s ? COLLATE NOCASE", column, n.op), Params: []any{value}}, nil
	default:
		return SQLCondition{Clause: fmt.Sprintf("%s %s ?", column, n.op), Params: []any{value}}, nil
	}
}
