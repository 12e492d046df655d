package compiler

import "github.com/kristofer/cinder/pkg/scanner"

// Precedence orders binary operators from loosest- to tightest-binding,
// per spec.md §4.4's precedence table. parsePrecedence consumes any
// infix operator whose precedence is >= the level it was called with.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

// parseFn is a single Pratt handler. canAssign says whether the
// expression being parsed may be an assignment target: the variable
// prefix handler uses it to decide whether a following '=' compiles
// an assignment, and the other handlers ignore it.
type parseFn func(c *Compiler, canAssign bool)

// rule is one row of the Pratt table: the prefix handler to run when a
// token kind starts an expression, the infix handler to run when it
// appears after one, and the infix operator's precedence.
type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is indexed by scanner.TokenKind. Every token that can appear in
// expression position has an entry; tokens with no prefix and no infix
// meaning default to the zero rule (PrecNone, nil, nil).
var rules map[scanner.TokenKind]rule

func init() {
	rules = map[scanner.TokenKind]rule{
		scanner.TokenLeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: PrecCall},
		scanner.TokenMinus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		scanner.TokenPlus:         {infix: (*Compiler).binary, precedence: PrecTerm},
		scanner.TokenSlash:        {infix: (*Compiler).binary, precedence: PrecFactor},
		scanner.TokenStar:         {infix: (*Compiler).binary, precedence: PrecFactor},
		scanner.TokenBang:         {prefix: (*Compiler).unary},
		scanner.TokenNot:          {prefix: (*Compiler).unary},
		scanner.TokenBangEqual:    {infix: (*Compiler).binary, precedence: PrecEquality},
		scanner.TokenEqualEqual:   {infix: (*Compiler).binary, precedence: PrecEquality},
		scanner.TokenGreater:      {infix: (*Compiler).binary, precedence: PrecComparison},
		scanner.TokenGreaterEqual: {infix: (*Compiler).binary, precedence: PrecComparison},
		scanner.TokenLess:         {infix: (*Compiler).binary, precedence: PrecComparison},
		scanner.TokenLessEqual:    {infix: (*Compiler).binary, precedence: PrecComparison},
		scanner.TokenIdentifier:   {prefix: (*Compiler).variable},
		scanner.TokenString:       {prefix: (*Compiler).stringLiteral},
		scanner.TokenNumber:       {prefix: (*Compiler).number},
		scanner.TokenAnd:          {infix: (*Compiler).and_, precedence: PrecAnd},
		scanner.TokenOr:           {infix: (*Compiler).or_, precedence: PrecOr},
		scanner.TokenFalse:        {prefix: (*Compiler).literal},
		scanner.TokenTrue:         {prefix: (*Compiler).literal},
		scanner.TokenNil:          {prefix: (*Compiler).literal},
		scanner.TokenLeftBrace:    {prefix: (*Compiler).blockExpr},
		scanner.TokenIf:           {prefix: (*Compiler).ifExpr},
		scanner.TokenFun:          {prefix: (*Compiler).functionExpr},
	}
}

func (c *Compiler) getRule(kind scanner.TokenKind) rule {
	return rules[kind]
}
