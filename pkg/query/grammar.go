package query

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// AST for the WHERE grammar

type ASTExpression struct {
	Or []*ASTOrCondition `parser:"@@ ('OR' @@)*"`
}

type ASTOrCondition struct {
	And []*ASTCondition `parser:"@@ ('AND' @@)*"`
}

type ASTCondition struct {
	Not     *ASTCondition       `parser:"  'NOT' @@"`
	Grouped *ASTExpression      `parser:"| '(' @@ ')'"`
	Simple  *ASTSimpleCondition `parser:"| @@"`
}

type ASTSimpleCondition struct {
	Operand *ASTOperand `parser:"  @@"`
	Op      *string     `parser:"( @('=='|'='|'!='|'>='|'<='|'>'|'<'|'~='|'CONTAINS')"`
	Value   *ASTOperand `parser:"  @@ )?"`
}

type ASTOperand struct {
	Literal *ASTLiteral `parser:"  @@"`
	Value   *ASTValue   `parser:"| @@"`
}

// ASTValue is a column name; nested names are joined with dots.
type ASTValue struct {
	Parts []string `parser:"@Ident ('.' @Ident)*"`
}

func (v *ASTValue) String() string {
	return strings.Join(v.Parts, ".")
}

type ASTLiteral struct {
	Number *float64 `parser:"  @Number"`
	StrVal *string  `parser:"| @String"`
	Bool   *Boolean `parser:"| @('TRUE'|'FALSE')"`
}

// Boolean captures TRUE and FALSE. A plain bool field would be set by the
// match alone.
type Boolean bool

func (b *Boolean) Capture(values []string) error {
	*b = Boolean(strings.EqualFold(values[0], "TRUE"))
	return nil
}

var (
	whereLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|TRUE|FALSE|CONTAINS)\b`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
		{Name: "String", Pattern: `'[^']*'|"[^"]*"`},
		{Name: "Operator", Pattern: `==|>=|<=|!=|~=|[=<>]`},
		{Name: "Punct", Pattern: `[.()]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	whereParser = participle.MustBuild[ASTExpression](
		participle.Lexer(whereLexer),
		participle.Unquote("String"),
		participle.CaseInsensitive("Keyword"),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// ParseFilter parses a WHERE expression such as
// "x > 10 AND (tag = 'a' OR NOT good)".
func ParseFilter(input string) (Expression, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty filter")
	}

	ast, err := whereParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return ast.ToExpression(), nil
}

func (e *ASTExpression) String() string {
	var parts []string
	for _, or := range e.Or {
		parts = append(parts, or.String())
	}
	return strings.Join(parts, " OR ")
}

func (o *ASTOrCondition) String() string {
	var parts []string
	for _, and := range o.And {
		parts = append(parts, and.String())
	}
	return strings.Join(parts, " AND ")
}

func (c *ASTCondition) String() string {
	switch {
	case c.Not != nil:
		return "NOT " + c.Not.String()
	case c.Grouped != nil:
		return "(" + c.Grouped.String() + ")"
	case c.Simple != nil:
		s := c.Simple.Operand.String()
		if c.Simple.Op != nil && c.Simple.Value != nil {
			s += " " + *c.Simple.Op + " " + c.Simple.Value.String()
		}
		return s
	}
	return ""
}

func (o *ASTOperand) String() string {
	if o.Literal != nil {
		return o.Literal.String()
	}
	if o.Value != nil {
		return o.Value.String()
	}
	return ""
}

func (l *ASTLiteral) String() string {
	if l.Number != nil {
		return fmt.Sprintf("%v", *l.Number)
	}
	if l.StrVal != nil {
		return fmt.Sprintf("'%s'", *l.StrVal)
	}
	if l.Bool != nil {
		return strings.ToUpper(fmt.Sprintf("%v", bool(*l.Bool)))
	}
	return ""
}

func (l *ASTLiteral) ToValue() interface{} {
	if l.Number != nil {
		return *l.Number
	}
	if l.StrVal != nil {
		return *l.StrVal
	}
	if l.Bool != nil {
		return bool(*l.Bool)
	}
	return nil
}

// Map AST to Expression interface

func (e *ASTExpression) ToExpression() Expression {
	if len(e.Or) == 0 {
		return nil
	}
	var expr Expression = e.Or[0].ToExpression()
	for i := 1; i < len(e.Or); i++ {
		expr = &OrExpression{
			Left:  expr,
			Right: e.Or[i].ToExpression(),
		}
	}
	return expr
}

func (o *ASTOrCondition) ToExpression() Expression {
	if len(o.And) == 0 {
		return nil
	}
	var expr Expression = o.And[0].ToExpression()
	for i := 1; i < len(o.And); i++ {
		expr = &AndExpression{
			Left:  expr,
			Right: o.And[i].ToExpression(),
		}
	}
	return expr
}

func (c *ASTCondition) ToExpression() Expression {
	switch {
	case c.Not != nil:
		return &NotExpression{Inner: c.Not.ToExpression()}
	case c.Grouped != nil:
		return c.Grouped.ToExpression()
	case c.Simple != nil:
		return c.Simple.ToExpression()
	}
	return nil
}

// ToExpression turns "a op b" into a Condition. A bare operand tests
// truthiness.
func (s *ASTSimpleCondition) ToExpression() Expression {
	f := &Filter{Left: s.Operand.ToOperand()}
	if s.Op != nil && s.Value != nil {
		f.Operator = strings.ToLower(*s.Op)
		right := s.Value.ToOperand()
		f.Right = &right
	}
	return &Condition{Filter: f}
}

func (o *ASTOperand) ToOperand() Operand {
	if o.Value != nil {
		return Operand{Field: o.Value.String()}
	}
	return Operand{Value: o.Literal.ToValue()}
}
