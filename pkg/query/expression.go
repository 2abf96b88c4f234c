package query

// Row is what an expression is evaluated against: named column values.
type Row interface {
	Get(field string) (interface{}, bool)
}

// Expression is a boolean expression that can be evaluated against a row
type Expression interface {
	Evaluate(row Row) bool
	// Fields lists the column names the expression reads.
	Fields() []string
}

// Condition is a simple filter (leaf node)
type Condition struct {
	Filter *Filter
}

func (c *Condition) Evaluate(row Row) bool {
	return c.Filter.Match(row)
}

func (c *Condition) Fields() []string {
	var fields []string
	if c.Filter.Left.Field != "" {
		fields = append(fields, c.Filter.Left.Field)
	}
	if c.Filter.Right != nil && c.Filter.Right.Field != "" {
		fields = append(fields, c.Filter.Right.Field)
	}
	return fields
}

// AndExpression represents Logical AND
type AndExpression struct {
	Left  Expression
	Right Expression
}

func (a *AndExpression) Evaluate(row Row) bool {
	return a.Left.Evaluate(row) && a.Right.Evaluate(row)
}

func (a *AndExpression) Fields() []string {
	return append(a.Left.Fields(), a.Right.Fields()...)
}

// OrExpression represents Logical OR
type OrExpression struct {
	Left  Expression
	Right Expression
}

func (o *OrExpression) Evaluate(row Row) bool {
	return o.Left.Evaluate(row) || o.Right.Evaluate(row)
}

func (o *OrExpression) Fields() []string {
	return append(o.Left.Fields(), o.Right.Fields()...)
}

// NotExpression represents Logical NOT
type NotExpression struct {
	Inner Expression
}

func (n *NotExpression) Evaluate(row Row) bool {
	return !n.Inner.Evaluate(row)
}

func (n *NotExpression) Fields() []string {
	return n.Inner.Fields()
}
