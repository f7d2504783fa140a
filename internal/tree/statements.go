package tree

import "strings"

// compoundClosers maps the compound-statement node types of the bash grammar
// to the keyword that closes them.
var compoundClosers = map[string]string{
	"if_statement":          "fi",
	"for_statement":         "done",
	"c_style_for_statement": "done",
	"while_statement":       "done",
	"case_statement":        "esac",
}

// statementKinds is the closed set of node types that appear as directly
// executable top-level statements.
var statementKinds = map[string]bool{
	"command":               true,
	"pipeline":              true,
	"list":                  true,
	"subshell":              true,
	"compound_statement":    true,
	"redirected_statement":  true,
	"negated_command":       true,
	"variable_assignment":   true,
	"declaration_command":   true,
	"unset_command":         true,
	"test_command":          true,
	"function_definition":   true,
	"if_statement":          true,
	"for_statement":         true,
	"c_style_for_statement": true,
	"while_statement":       true,
	"case_statement":        true,
}

// IsCompound reports whether kind is a compound-statement type with a paired
// closing keyword.
func IsCompound(kind string) bool {
	_, ok := compoundClosers[kind]
	return ok
}

// CloserFor returns the closing keyword implied by a compound node type.
func CloserFor(kind string) (string, bool) {
	closer, ok := compoundClosers[kind]
	return closer, ok
}

// IsStatement reports whether kind is a directly executable statement type.
func IsStatement(kind string) bool {
	return statementKinds[kind]
}

// Opener returns the opening keyword of a compound node. The grammar folds
// until loops into while_statement, so the node text decides between the two.
func Opener(n *Node) string {
	switch n.Type {
	case "if_statement":
		return "if"
	case "for_statement", "c_style_for_statement":
		return "for"
	case "case_statement":
		return "case"
	case "while_statement":
		if strings.HasPrefix(strings.TrimSpace(n.Text), "until") {
			return "until"
		}
		return "while"
	default:
		return ""
	}
}
