package vectordb

import (
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// compileFilter translates a parsed Expr into Qdrant's native filter
// representation for remote query/delete calls. HybridSearch applies
// filterExpr client-side via Eval after fusion (spec.md §4.8 step 4), so
// this compiler only needs to serve Query and DeleteByFilter; a nil expr
// compiles to a nil Filter (match everything).
func compileFilter(expr Expr) (*qdrant.Filter, error) {
	if expr == nil {
		return nil, nil
	}
	cond, err := compileCondition(expr)
	if err != nil {
		return nil, err
	}
	return &qdrant.Filter{Must: []*qdrant.Condition{cond}}, nil
}

func compileCondition(expr Expr) (*qdrant.Condition, error) {
	switch e := expr.(type) {
	case *andExpr:
		left, err := compileCondition(e.left)
		if err != nil {
			return nil, err
		}
		right, err := compileCondition(e.right)
		if err != nil {
			return nil, err
		}
		return nestedFilterCondition(&qdrant.Filter{Must: []*qdrant.Condition{left, right}}), nil

	case *orExpr:
		left, err := compileCondition(e.left)
		if err != nil {
			return nil, err
		}
		right, err := compileCondition(e.right)
		if err != nil {
			return nil, err
		}
		return nestedFilterCondition(&qdrant.Filter{Should: []*qdrant.Condition{left, right}}), nil

	case *notExpr:
		inner, err := compileCondition(e.inner)
		if err != nil {
			return nil, err
		}
		return nestedFilterCondition(&qdrant.Filter{MustNot: []*qdrant.Condition{inner}}), nil

	case *compareExpr:
		return compileCompare(e)

	case *inExpr:
		conds := make([]*qdrant.Condition, len(e.values))
		for i, v := range e.values {
			conds[i] = fieldCondition(e.field, v)
		}
		return nestedFilterCondition(&qdrant.Filter{Should: conds}), nil

	case *likeExpr:
		// Approximate: remote side matches full-text containment; exact
		// "%"-wildcard semantics are guaranteed by the client-side Eval
		// path HybridSearch's post-filter uses.
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   payloadKey(e.field),
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Text{Text: stripWildcards(e.pattern)}},
				},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported filter expression %T", expr)
	}
}

func compileCompare(e *compareExpr) (*qdrant.Condition, error) {
	if e.op == "==" {
		return fieldCondition(e.field, e.value), nil
	}
	if e.op == "!=" {
		return nestedFilterCondition(&qdrant.Filter{MustNot: []*qdrant.Condition{fieldCondition(e.field, e.value)}}), nil
	}

	n, err := strconv.ParseFloat(e.value, 64)
	if err != nil {
		return nil, fmt.Errorf("operator %q requires a numeric literal, got %q", e.op, e.value)
	}

	r := &qdrant.Range{}
	switch e.op {
	case "<":
		r.Lt = &n
	case "<=":
		r.Lte = &n
	case ">":
		r.Gt = &n
	case ">=":
		r.Gte = &n
	default:
		return nil, fmt.Errorf("unsupported operator %q", e.op)
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: payloadKey(e.field), Range: r},
		},
	}, nil
}

func fieldCondition(field, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   payloadKey(field),
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

// payloadKeys maps filter field names to the payload keys rowPayload
// writes; fields not listed use the same name in both.
var payloadKeys = map[string]string{
	"relativePath":  "relative_path",
	"fileExtension": "file_extension",
	"startLine":     "start_line",
	"endLine":       "end_line",
}

func payloadKey(field string) string {
	if key, ok := payloadKeys[field]; ok {
		return key
	}
	return field
}

func nestedFilterCondition(f *qdrant.Filter) *qdrant.Condition {
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Filter{Filter: f}}
}

func stripWildcards(pattern string) string {
	out := make([]byte, 0, len(pattern))
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' {
			out = append(out, pattern[i])
		}
	}
	return string(out)
}
