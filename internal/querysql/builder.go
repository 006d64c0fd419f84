package querysql

import "strings"

// Statement is a compiled, parameterized SQL statement.
type Statement struct {
	SQL  string `json:"sql" yaml:"sql"`
	Args []any  `json:"args" yaml:"args"`
}

// fragment is a piece of SQL with its parameters in placeholder order.
type fragment struct {
	sql  string
	args []any
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// inList renders "expr IN (?, ...)" over values.
func inList[T any](expr string, values []T) fragment {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return fragment{sql: expr + " IN (" + placeholders(len(values)) + ")", args: args}
}

// joinFragments concatenates fragments with sep, keeping argument order.
func joinFragments(parts []fragment, sep string) fragment {
	var sqls []string
	var args []any
	for _, p := range parts {
		sqls = append(sqls, p.sql)
		args = append(args, p.args...)
	}
	return fragment{sql: strings.Join(sqls, sep), args: args}
}

// builder accumulates a statement clause by clause.
type builder struct {
	parts []string
	args  []any
}

func (b *builder) add(sql string, args ...any) {
	b.parts = append(b.parts, sql)
	b.args = append(b.args, args...)
}

func (b *builder) addFragment(f fragment) {
	b.add(f.sql, f.args...)
}

func (b *builder) statement() Statement {
	return Statement{SQL: strings.Join(b.parts, " "), Args: b.args}
}
