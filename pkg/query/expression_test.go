package query

import (
	"reflect"
	"testing"
)

type testRow map[string]interface{}

func (r testRow) Get(field string) (interface{}, bool) {
	v, ok := r[field]
	return v, ok
}

func TestBooleanLogic(t *testing.T) {
	row := testRow{
		"val":    int64(15),
		"status": "active",
		"type":   "normal",
		"good":   true,
	}

	tests := []struct {
		name     string
		where    string
		expected bool
	}{
		{
			name:     "Simple AND - True",
			where:    "val > 10 AND status = 'active'",
			expected: true,
		},
		{
			name:     "Simple AND - False",
			where:    "val > 20 AND status = 'active'",
			expected: false,
		},
		{
			name:     "Simple OR - True",
			where:    "val > 20 OR status = 'active'",
			expected: true,
		},
		{
			name:     "Simple OR - False",
			where:    "val > 20 OR status = 'inactive'",
			expected: false,
		},
		{
			name: "AND binds tighter than OR",
			// (True AND False) OR True
			where:    "val > 10 AND status = 'inactive' OR type = 'normal'",
			expected: true,
		},
		{
			name: "AND binds tighter than OR (Case 2)",
			// True OR (False AND True)
			where:    "val > 10 OR status = 'inactive' AND type = 'error'",
			expected: true,
		},
		{
			name:     "Grouping",
			where:    "(val > 10 OR type = 'critical') AND status = 'gone'",
			expected: false,
		},
		{
			name:     "NOT",
			where:    "NOT status = 'inactive'",
			expected: true,
		},
		{
			name:     "Lowercase keywords",
			where:    "not good or val >= 15",
			expected: true,
		},
		{
			name:     "Bare column is truthy",
			where:    "good AND val",
			expected: true,
		},
		{
			name:     "FALSE literal",
			where:    "good = FALSE",
			expected: false,
		},
		{
			name:     "Missing column never matches",
			where:    "nope = 1",
			expected: false,
		},
		{
			name:     "NOT of missing column",
			where:    "NOT nope = 1",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseFilter(tt.where)
			if err != nil {
				t.Fatalf("ParseFilter failed: %v", err)
			}

			result := expr.Evaluate(row)
			if result != tt.expected {
				t.Errorf("Evaluate() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParseFilterErrors(t *testing.T) {
	for _, where := range []string{"", "   ", "x >", "AND x = 1", "(x = 1", "x = 1 y"} {
		if _, err := ParseFilter(where); err == nil {
			t.Errorf("ParseFilter(%q) succeeded, want error", where)
		}
	}
}

func TestExpressionFields(t *testing.T) {
	expr, err := ParseFilter("pos.x > 1 AND (tag = other OR NOT good)")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	want := []string{"pos.x", "tag", "other", "good"}
	if got := expr.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
}

func TestASTString(t *testing.T) {
	ast, err := whereParser.ParseString("", "x>=1 AND NOT (tag CONTAINS 'ab' OR ok = true)")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := "x >= 1 AND NOT (tag CONTAINS 'ab' OR ok = TRUE)"
	if got := ast.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
