package pyparse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// The Python grammar accepts Python 2 statements and parses a missing indented
// block without an error node. invalidNode returns the first construct the
// Python 3 compiler rejects, with a short reason.
func invalidNode(n *sitter.Node, src []byte) (*sitter.Node, string) {
	if reason := rejected(n, src); reason != "" {
		return n, reason
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad, reason := invalidNode(n.Child(i), src); bad != nil {
			return bad, reason
		}
	}
	return nil, ""
}

func rejected(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "print_statement":
		return "print statement"
	case "exec_statement":
		return "exec statement"
	case "<>":
		return "'<>' operator"
	case "block":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() != "comment" {
				return ""
			}
		}
		return "expected an indented block"
	case "string_start":
		if strings.HasSuffix(n.Content(src), "`") {
			return "backtick expression"
		}
	case "integer":
		if legacyInteger(n.Content(src)) {
			return "legacy integer literal"
		}
	case "identifier":
		if t := n.Content(src); t == "async" || t == "await" {
			return "keyword '" + t + "' used as a name"
		}
	case "except_clause":
		for i := 0; i < int(n.ChildCount()); i++ {
			if n.Child(i).Type() == "," {
				return "'except X, e' syntax"
			}
		}
	case "argument_list":
		return argumentOrder(n)
	}
	return ""
}

// legacyInteger matches Python 2 octal literals (0777) and long suffixes (10L).
func legacyInteger(text string) bool {
	t := strings.ReplaceAll(text, "_", "")
	if strings.HasSuffix(t, "l") || strings.HasSuffix(t, "L") {
		return true
	}
	if len(t) < 2 || t[0] != '0' {
		return false
	}
	zeros := true
	for _, c := range t {
		if c < '0' || c > '9' {
			return false
		}
		if c != '0' {
			zeros = false
		}
	}
	return !zeros
}

// argumentOrder checks call arguments: no positional argument after a keyword
// argument or **kwargs, and no *args after **kwargs.
func argumentOrder(n *sitter.Node) string {
	keyword, doubleStar := false, false
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch n.NamedChild(i).Type() {
		case "comment":
		case "keyword_argument":
			keyword = true
		case "dictionary_splat":
			doubleStar = true
		case "list_splat":
			if doubleStar {
				return "iterable unpacking follows keyword argument unpacking"
			}
		default:
			if keyword || doubleStar {
				return "positional argument follows keyword argument"
			}
		}
	}
	return ""
}
