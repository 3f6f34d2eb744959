// Package expr parses and evaluates the read-only expression language used
// inside app definitions, and the ${expr} string templates built on it.
//
// Expressions are parsed once into an AST and evaluated many times against
// an Env that resolves root identifiers (agent, agents, params, shared,
// config, loop variables). Evaluation never mutates the Env.
//
// Grammar, lowest precedence first:
//
//	or     := and  { ("||" | "or") and }
//	and    := eq   { ("&&" | "and") eq }
//	eq     := cmp  { ("==" | "!=") cmp }
//	cmp    := add  { ("<" | "<=" | ">" | ">=") add }
//	add    := mul  { ("+" | "-") mul }
//	mul    := unary { ("*" | "/" | "%") unary }
//	unary  := ("!" | "not" | "-") unary | postfix
//	postfix:= primary { "." name | "[" or "]" }
//	primary:= number | string | true | false | null | name | name "(" args ")"
//	        | "(" or ")" | "[" args "]"
package expr
