package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bisegni/jchain/pkg/chain"
)

// columnTypes maps the type names accepted by --column to declarations.
var columnTypes = map[string]func(name string) chain.Decl{
	"bool":       chain.Column[bool],
	"int":        chain.Column[int],
	"int32":      chain.Column[int32],
	"int64":      chain.Column[int64],
	"uint32":     chain.Column[uint32],
	"uint64":     chain.Column[uint64],
	"float32":    chain.Column[float32],
	"float64":    chain.Column[float64],
	"string":     chain.Column[string],
	"bytes":      chain.Column[[]byte],
	"[]int64":    chain.Column[[]int64],
	"[]float64":  chain.Column[[]float64],
	"[]string":   chain.Column[[]string],
	"float64[2]": chain.Column[[2]float64],
	"float64[3]": chain.Column[[3]float64],
	"float64[4]": chain.Column[[4]float64],
	"any":        chain.Column[any],
}

// Column is a parsed --column flag.
type Column struct {
	Name string
	Type string
}

func (c Column) Decl() chain.Decl {
	return columnTypes[c.Type](c.Name)
}

func (c Column) String() string {
	return c.Name + ":" + c.Type
}

// ParseColumn parses name:type. The type defaults to any.
func ParseColumn(spec string) (Column, error) {
	name, typ := spec, "any"
	if i := strings.LastIndex(spec, ":"); i >= 0 {
		name, typ = spec[:i], spec[i+1:]
	}
	name = strings.TrimSpace(name)
	typ = strings.TrimSpace(typ)
	if name == "" {
		return Column{}, fmt.Errorf("column %q has no name", spec)
	}
	if _, ok := columnTypes[typ]; !ok {
		return Column{}, fmt.Errorf("column %q: unknown type %q (known: %s)", spec, typ, strings.Join(ColumnTypes(), ", "))
	}
	return Column{Name: name, Type: typ}, nil
}

// ColumnTypes returns the accepted type names, sorted.
func ColumnTypes() []string {
	names := make([]string, 0, len(columnTypes))
	for name := range columnTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// columnList is the repeatable --column flag. Specs are checked as they
// are parsed so a bad type fails before any file is opened.
type columnList struct {
	columns *[]Column
}

var _ pflag.Value = (*columnList)(nil)

func (l *columnList) Set(spec string) error {
	c, err := ParseColumn(spec)
	if err != nil {
		return err
	}
	*l.columns = append(*l.columns, c)
	return nil
}

func (l *columnList) String() string {
	if l.columns == nil {
		return ""
	}
	specs := make([]string, len(*l.columns))
	for i, c := range *l.columns {
		specs[i] = c.String()
	}
	return strings.Join(specs, ",")
}

func (l *columnList) Type() string {
	return "name:type"
}
