package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/vendz/NL2SQL/internal/schema"
)

// This file is a small matcher over the tree-sitter expression tree.
// All call-shape recognition goes through these helpers so the parsing
// logic never falls back to text regexes over nested call syntax.

// nodeText returns the source text of a node.
func nodeText(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

// stringLiteral returns the unquoted value of a string node.
// Template strings without substitutions are accepted too.
func stringLiteral(n *sitter.Node, src []byte) (string, bool) {
	switch n.Type() {
	case "string":
		text := nodeText(n, src)
		if len(text) >= 2 {
			return text[1 : len(text)-1], true
		}
		return "", false
	case "template_string":
		if n.NamedChildCount() == 1 && n.NamedChild(0).Type() == "string_fragment" {
			return nodeText(n.NamedChild(0), src), true
		}
		text := nodeText(n, src)
		if len(text) >= 2 && !strings.Contains(text, "${") {
			return text[1 : len(text)-1], true
		}
		return "", false
	}
	return "", false
}

// boolLiteral returns the value of a true/false node.
func boolLiteral(n *sitter.Node) (bool, bool) {
	switch n.Type() {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// literalValue converts a simple literal node to a tagged literal
// value. Anything else is captured verbatim as raw source text.
func literalValue(n *sitter.Node, src []byte) schema.Value {
	switch n.Type() {
	case "string", "template_string":
		if s, ok := stringLiteral(n, src); ok {
			return schema.Literal(s)
		}
	case "number", "true", "false", "null", "undefined", "identifier":
		return schema.Literal(nodeText(n, src))
	}
	return schema.Raw(nodeText(n, src))
}

// tailIdentifier resolves a bare identifier or a property-access chain
// to its final identifier (db.models.User -> "User"). This is what
// tolerates wrapper/container access patterns around entity references.
func tailIdentifier(n *sitter.Node, src []byte) (string, bool) {
	switch n.Type() {
	case "identifier":
		return nodeText(n, src), true
	case "member_expression":
		prop := n.ChildByFieldName("property")
		if prop == nil {
			return "", false
		}
		return nodeText(prop, src), true
	case "subscript_expression":
		index := n.ChildByFieldName("index")
		if index == nil {
			return "", false
		}
		return stringLiteral(index, src)
	}
	return "", false
}

// methodCall decomposes a call of the shape <receiver>.<method>(...),
// returning the receiver expression node and the method name.
func methodCall(call *sitter.Node, src []byte) (*sitter.Node, string, bool) {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Type() != "member_expression" {
		return nil, "", false
	}
	prop := callee.ChildByFieldName("property")
	if prop == nil {
		return nil, "", false
	}
	return callee.ChildByFieldName("object"), nodeText(prop, src), true
}

// callArgs returns the named argument nodes of a call expression.
func callArgs(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// eachPair iterates over the key/value pairs of an object literal.
// Spread elements, methods, and computed keys are skipped.
func eachPair(obj *sitter.Node, src []byte, fn func(key string, value *sitter.Node)) {
	if obj == nil || obj.Type() != "object" {
		return
	}
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		pair := obj.NamedChild(i)
		if pair.Type() != "pair" {
			continue
		}
		keyNode := pair.ChildByFieldName("key")
		valueNode := pair.ChildByFieldName("value")
		if keyNode == nil || valueNode == nil {
			continue
		}

		var key string
		switch keyNode.Type() {
		case "property_identifier", "identifier":
			key = nodeText(keyNode, src)
		case "string":
			if s, ok := stringLiteral(keyNode, src); ok {
				key = s
			}
		}
		if key == "" {
			continue
		}
		fn(key, valueNode)
	}
}

// objectValue looks up one key in an object literal.
func objectValue(obj *sitter.Node, src []byte, key string) *sitter.Node {
	var found *sitter.Node
	eachPair(obj, src, func(k string, v *sitter.Node) {
		if found == nil && k == key {
			found = v
		}
	})
	return found
}

// visitCalls walks the tree depth-first, invoking fn on every call
// expression in source order.
func visitCalls(root *sitter.Node, fn func(call *sitter.Node)) {
	if root == nil {
		return
	}
	if root.Type() == "call_expression" {
		fn(root)
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		visitCalls(root.NamedChild(i), fn)
	}
}

// visitPairs walks the tree depth-first, invoking fn on every object
// literal pair in source order.
func visitPairs(root *sitter.Node, src []byte, fn func(key string, value *sitter.Node)) {
	if root == nil {
		return
	}
	if root.Type() == "object" {
		eachPair(root, src, fn)
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		visitPairs(root.NamedChild(i), src, fn)
	}
}
