package symex

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteDot writes the control flow graph of fn to w in GraphViz format.
// Edges are labeled with their execution count if cov is non-nil, and join
// points of forward gotos are drawn as dashed edges.
func WriteDot(w io.Writer, fn *Function, cov *Coverage) error {
	var buf strings.Builder
	fmt.Fprintf(&buf, "digraph %s {\n", strconv.Quote(fn.Name))
	buf.WriteString("\tnode [shape=box];\n\n")

	for pc, instr := range fn.Body {
		label := fmt.Sprintf("%d: %s", pc, instr)
		attrs := ""
		if cov != nil && cov.Executed(fn.Name, pc) == 0 {
			attrs = `, style="dashed"`
		}
		fmt.Fprintf(&buf, "\t%q [label=%q%s];\n", nodeName(pc), label, attrs)
	}
	buf.WriteString("\n")

	for pc := range fn.Body {
		for _, succ := range fn.Successors(pc) {
			if cov == nil {
				fmt.Fprintf(&buf, "\t%q -> %q\n", nodeName(pc), nodeName(succ))
				continue
			}
			fmt.Fprintf(&buf, "\t%q -> %q [label=\"%d\"]\n", nodeName(pc), nodeName(succ), cov.Count(fn.Name, pc, succ))
		}
	}

	joins := fn.JoinPoints()
	for pc := range fn.Body {
		if jp, ok := joins[pc]; ok {
			fmt.Fprintf(&buf, "\t%q -> %q [style=\"dashed\", color=\"blue\", label=\"join\"]\n", nodeName(pc), nodeName(jp))
		}
	}
	buf.WriteString("}\n")

	_, err := io.WriteString(w, buf.String())
	return err
}

func nodeName(pc int) string { return "n" + strconv.Itoa(pc) }
