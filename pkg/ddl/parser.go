package ddl

import (
	"regexp"
	"strings"
)

var (
	headerRe = regexp.MustCompile(`^(?:flowchart|graph)(?:\s+(LR|RL|TB|TD|BT))?\s*$`)

	// nodeRe matches an identifier with an optional shape form:
	// A, A[Text], A(Text), A((Text)), A{Text}.
	nodeRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*)\s*(\(\(([^()]*)\)\)|\[([^\[\]]*)\]|\(([^()]*)\)|\{([^{}]*)\})?`)

	// Connector forms, tried in order. The "-- label -->" text form must be
	// tried before the plain arrow so its label is not swallowed.
	connTextRe  = regexp.MustCompile(`^\s*--\s+([^-<>|]+?)\s+(-->|---)\s*`)
	connPipeRe  = regexp.MustCompile(`^\s*(-->|---)\s*\|([^|]*)\|\s*`)
	connPlainRe = regexp.MustCompile(`^\s*(-->|---)\s*`)
)

// Parse converts DDL text into a Graph skeleton. Any unparseable statement
// fails the whole parse; no partial graph is returned.
func Parse(text string) (*Graph, error) {
	g := &Graph{Direction: "TB"}
	sawHeader := false
	seen := make(map[string]int) // ddl id -> index into g.Nodes

	for i, rawLine := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}

		if !sawHeader {
			m := headerRe.FindStringSubmatch(line)
			if m == nil {
				return nil, conversionErr(lineNo, "expected a flowchart header, got %q", line)
			}
			if m[1] != "" {
				dir := m[1]
				// TD is the legacy alias for TB.
				if dir == "TD" {
					dir = "TB"
				}
				g.Direction = dir
			}
			sawHeader = true
			continue
		}

		if err := g.parseStatement(line, lineNo, seen); err != nil {
			return nil, err
		}
	}

	if !sawHeader {
		return nil, conversionErr(0, "empty diagram text")
	}
	if len(g.Nodes) == 0 {
		return nil, conversionErr(0, "diagram declares no nodes")
	}

	return g, nil
}

// parseStatement consumes one node-or-chain statement, e.g.
// "A[Start] --> B --> C{Done?}".
func (g *Graph) parseStatement(line string, lineNo int, seen map[string]int) error {
	rest := line

	from, remainder, err := g.parseNode(rest, lineNo, seen)
	if err != nil {
		return err
	}
	rest = remainder

	for strings.TrimSpace(rest) != "" {
		label, remainder, ok := parseConnector(rest)
		if !ok {
			return conversionErr(lineNo, "expected a connector near %q", strings.TrimSpace(rest))
		}
		rest = remainder

		to, remainder, err := g.parseNode(rest, lineNo, seen)
		if err != nil {
			return err
		}
		rest = remainder

		g.Edges = append(g.Edges, EdgeDef{From: from, To: to, Label: label})
		from = to
	}

	return nil
}

// parseNode consumes a node token from the head of rest, registering the
// node on first sight. A later bracket form upgrades a bare reference's
// label and shape; it never downgrades an earlier declaration.
func (g *Graph) parseNode(rest string, lineNo int, seen map[string]int) (string, string, error) {
	rest = strings.TrimLeft(rest, " \t")
	m := nodeRe.FindStringSubmatch(rest)
	if m == nil {
		return "", "", conversionErr(lineNo, "expected a node near %q", strings.TrimSpace(rest))
	}

	id := m[1]
	label, shape := nodeForm(m)

	if idx, ok := seen[id]; ok {
		if shape != "" {
			g.Nodes[idx].Label = label
			g.Nodes[idx].Shape = shape
		}
	} else {
		if shape == "" {
			label = id
			shape = "rect"
		}
		seen[id] = len(g.Nodes)
		g.Nodes = append(g.Nodes, NodeDef{ID: id, Label: label, Shape: shape})
	}

	return id, rest[len(m[0]):], nil
}

// nodeForm extracts the label and shape from a node match.
// The shape is empty for a bare identifier reference.
func nodeForm(m []string) (label, shape string) {
	switch {
	case m[3] != "" || strings.HasPrefix(m[2], "(("):
		return strings.TrimSpace(m[3]), "circle"
	case m[4] != "" || strings.HasPrefix(m[2], "["):
		return strings.TrimSpace(m[4]), "rect"
	case m[5] != "" || strings.HasPrefix(m[2], "("):
		return strings.TrimSpace(m[5]), "round"
	case m[6] != "" || strings.HasPrefix(m[2], "{"):
		return strings.TrimSpace(m[6]), "diamond"
	default:
		return "", ""
	}
}

// parseConnector consumes an edge operator from the head of rest and
// returns its label, the remainder, and whether a connector was found.
func parseConnector(rest string) (label, remainder string, ok bool) {
	if m := connTextRe.FindStringSubmatch(rest); m != nil {
		return strings.TrimSpace(m[1]), rest[len(m[0]):], true
	}
	if m := connPipeRe.FindStringSubmatch(rest); m != nil {
		return strings.TrimSpace(m[2]), rest[len(m[0]):], true
	}
	if m := connPlainRe.FindStringSubmatch(rest); m != nil {
		return "", rest[len(m[0]):], true
	}
	return "", rest, false
}
