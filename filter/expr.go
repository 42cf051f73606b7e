package filter

import (
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// compiledExpr is a where expression ready to run.
type compiledExpr struct {
	program *vm.Program
	keys    KeySet
}

// whereSpec builds the "where" filter: a boolean expr-lang expression over
// the item keys. Hyphens in key names are written as underscores.
func whereSpec() *Spec {
	return &Spec{
		Name:        "where",
		Aliases:     []string{"expr"},
		Description: `Match items for which an expression is true, e.g. where="size > 1e9 and ratio < 1"`,
		ValueType:   TypeExpression,
		Operators:   []Operator{OpEqual},
	}
}

// matchExpr runs a where expression against item. The expression was
// validated when the filter was parsed.
func (r *Registry) matchExpr(item Item, expression string) bool {
	ce, err := r.program(expression)
	if err != nil {
		return false
	}
	return runExpr(ce, item)
}

// exprKeys returns the keys referenced by a where expression.
func (r *Registry) exprKeys(expression string) KeySet {
	ce, err := r.program(expression)
	if err != nil {
		return KeySet{}
	}
	return ce.keys.Clone()
}

// program compiles expression or returns the cached compilation.
func (r *Registry) program(expression string) (*compiledExpr, error) {
	if cached, ok := r.programs.Get(expression); ok {
		return cached.(*compiledExpr), nil
	}

	program, err := expr.Compile(expression,
		expr.Env(helperFunctions()),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}
	keys, err := expressionKeys(expression)
	if err != nil {
		return nil, err
	}

	ce := &compiledExpr{program: program, keys: keys}
	r.programs.Put(expression, ce)
	return ce, nil
}

type identVisitor struct {
	idents []string
}

func (v *identVisitor) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.IdentifierNode); ok {
		v.idents = append(v.idents, n.Value)
	}
}

// expressionKeys collects the item keys an expression refers to.
func expressionKeys(expression string) (KeySet, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, err
	}
	v := &identVisitor{}
	ast.Walk(&tree.Node, v)

	helpers := helperFunctions()
	keys := KeySet{}
	for _, id := range v.idents {
		if _, ok := helpers[id]; ok {
			continue
		}
		keys.Add(identToKey(id))
	}
	return keys, nil
}

func identToKey(id string) string {
	return strings.ReplaceAll(id, "_", "-")
}

func keyToIdent(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

func runExpr(ce *compiledExpr, item Item) bool {
	env := helperFunctions()
	for k := range ce.keys {
		if v, ok := item.Get(k); ok {
			env[keyToIdent(k)] = v
		}
	}
	result, err := expr.Run(ce.program, env)
	if err != nil {
		return false
	}
	b, _ := result.(bool)
	return b
}

// helperFunctions returns the functions available inside where expressions.
// Names avoid expr-lang operators and builtins such as contains or lower.
func helperFunctions() map[string]any {
	env := make(map[string]any, 8)
	env["icontains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["iprefix"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["isuffix"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	env["hasTag"] = func(tags []string, tag string) bool {
		for _, t := range tags {
			if strings.EqualFold(t, tag) {
				return true
			}
		}
		return false
	}
	env["daysSince"] = func(t time.Time) int {
		if t.IsZero() {
			return -1
		}
		return int(time.Since(t).Hours() / 24)
	}
	env["hours"] = func(d time.Duration) float64 {
		return d.Hours()
	}
	env["GiB"] = func(n float64) float64 {
		return n * (1 << 30)
	}
	return env
}
