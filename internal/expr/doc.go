// Package expr parses and evaluates arithmetic expressions.
//
// Grammar, lowest precedence first:
//
//	expr    := term (('+' | '-') term)*
//	term    := power (('*' | '/') power)*
//	power   := unary ('^' power)?
//	unary   := ('+' | '-') unary | primary
//	primary := NUMBER | '(' expr ')'
//
// '^' is right associative. Unary signs are parsed before '^', so "-2^2"
// evaluates as (-2)^2 = 4.
//
// Ownership boundary:
// - lexing of numeric literals
// - recursive-descent evaluation
// - positioned evaluation errors
//
// The package performs no I/O and keeps no state between calls.
package expr
