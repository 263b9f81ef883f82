package relation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/types"
)

// Explain renders rel as an indented tree, one node per line, each followed
// by its visible record type.
func Explain(rel Relation) string {
	var sb strings.Builder
	explain(&sb, rel, 0)
	return sb.String()
}

func explain(sb *strings.Builder, rel Relation, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(Describe(rel))
	sb.WriteString(" -> ")
	sb.WriteString(FormatRecord(rel.RecordType()))
	if r := rel.Remap(); r != nil {
		fmt.Fprintf(sb, " remap%v", r.Indices)
	}
	if ext := rel.AdvancedExtension(); !ext.IsEmpty() {
		if ext.Optimization != nil {
			sb.WriteString(" +optimization")
		}
		if ext.Enhancement != nil {
			sb.WriteString(" +enhancement")
		}
	}
	sb.WriteByte('\n')
	for _, in := range rel.Inputs() {
		explain(sb, in, depth+1)
	}
}

// FormatRecord renders a record type as "(i32, string?)".
func FormatRecord(fields []types.Type) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Describe renders the node itself without its inputs.
func Describe(rel Relation) string {
	switch r := rel.(type) {
	case *NamedScan:
		return "NamedScan[" + strings.Join(r.Names, ".") + "]"
	case *EmptyScan:
		return "EmptyScan"
	case *VirtualTableScan:
		return "VirtualTableScan[" + strconv.Itoa(len(r.Rows)) + " rows]"
	case *ExtensionTable:
		return "ExtensionTable[" + detailURL(r.Detail) + "]"
	case *Filter:
		return "Filter[" + expr.Format(r.Condition) + "]"
	case *Project:
		parts := make([]string, len(r.Expressions))
		for i, e := range r.Expressions {
			parts[i] = expr.Format(e)
		}
		return "Project[" + strings.Join(parts, ", ") + "]"
	case *Sort:
		return "Sort[" + expr.FormatSorts(r.Sorts) + "]"
	case *Fetch:
		count := "ALL"
		if r.Count != nil {
			count = strconv.FormatInt(*r.Count, 10)
		}
		return fmt.Sprintf("Fetch[offset=%d, count=%s]", r.Offset, count)
	case *Aggregate:
		var parts []string
		for _, g := range r.Groupings {
			keys := make([]string, len(g.Expressions))
			for i, e := range g.Expressions {
				keys[i] = expr.Format(e)
			}
			parts = append(parts, "group("+strings.Join(keys, ", ")+")")
		}
		for _, m := range r.Measures {
			s := expr.FormatAggregate(m.Function)
			if m.Filter != nil {
				s += " FILTER " + expr.Format(m.Filter)
			}
			parts = append(parts, s)
		}
		return "Aggregate[" + strings.Join(parts, ", ") + "]"
	case *Expand:
		return "Expand[" + strconv.Itoa(len(r.Fields)) + " fields]"
	case *Join:
		s := "Join[" + r.Type.String()
		if r.Condition != nil {
			s += " ON " + expr.Format(r.Condition)
		}
		if r.PostJoinFilter != nil {
			s += " POST " + expr.Format(r.PostJoinFilter)
		}
		return s + "]"
	case *Cross:
		return "Cross"
	case *Set:
		return "Set[" + r.Op.String() + "]"
	case *ExtensionLeaf:
		return "ExtensionLeaf[" + detailURL(r.Detail) + "]"
	case *ExtensionSingle:
		return "ExtensionSingle[" + detailURL(r.Detail) + "]"
	case *ExtensionMulti:
		return "ExtensionMulti[" + detailURL(r.Detail) + "]"
	}
	return fmt.Sprintf("%T", rel)
}

func detailURL(p Payload) string {
	a, err := p.ToAny()
	if err != nil || a == nil {
		return "?"
	}
	return a.GetTypeUrl()
}
