package relation

import (
	"fmt"
)

// TransformFunc returns a replacement for item and true, or false when item
// is unchanged.
type TransformFunc[T any] func(item T) (T, bool, error)

// TransformList applies fn to each item. When nothing changed it returns
// (nil, false, nil) without allocating and the caller keeps items. Otherwise
// it returns a new slice holding the replacements and the untouched items.
func TransformList[T any](items []T, fn TransformFunc[T]) ([]T, bool, error) {
	var out []T
	for i, item := range items {
		repl, changed, err := fn(item)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			if out != nil {
				out = append(out, item)
			}
			continue
		}
		if out == nil {
			out = make([]T, i, len(items))
			copy(out, items[:i])
		}
		out = append(out, repl)
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// TransformInputs rewrites the direct inputs of rel with fn. When no input
// changes rel itself is returned with false. Otherwise the node is rebuilt over
// the new inputs, re-deriving its record type.
func TransformInputs(rel Relation, fn TransformFunc[Relation]) (Relation, bool, error) {
	inputs, changed, err := TransformList(rel.Inputs(), fn)
	if err != nil || !changed {
		return rel, false, err
	}
	out, err := rel.withInputs(inputs)
	if err != nil {
		return nil, false, fmt.Errorf("rebuild %T: %w", rel, err)
	}
	return out, true, nil
}

// TransformBottomUp applies fn to every node of the tree rooted at rel,
// children first. Unchanged subtrees are shared with the original tree.
func TransformBottomUp(rel Relation, fn TransformFunc[Relation]) (Relation, bool, error) {
	cur, inputsChanged, err := TransformInputs(rel, func(in Relation) (Relation, bool, error) {
		return TransformBottomUp(in, fn)
	})
	if err != nil {
		return nil, false, err
	}
	repl, changed, err := fn(cur)
	if err != nil {
		return nil, false, err
	}
	if changed {
		return repl, true, nil
	}
	return cur, inputsChanged, nil
}
