package types

// Operator is a comparison operator used in predicates.
type Operator string

// Supported operators.
const (
	OpEq     Operator = "="
	OpNe     Operator = "<>"
	OpLt     Operator = "<"
	OpLe     Operator = "<="
	OpGt     Operator = ">"
	OpGe     Operator = ">="
	OpLike   Operator = "LIKE"
	OpIsNull Operator = "IS NULL"
)

// Predicate compares a column with a value. Predicates passed together are
// combined with AND.
type Predicate struct {
	Column   string
	Operator Operator
	Value    any
}

// Eq returns a column = value predicate.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Operator: OpEq, Value: value}
}

// Ne returns a column <> value predicate.
func Ne(column string, value any) Predicate {
	return Predicate{Column: column, Operator: OpNe, Value: value}
}

// Gt returns a column > value predicate.
func Gt(column string, value any) Predicate {
	return Predicate{Column: column, Operator: OpGt, Value: value}
}

// Lt returns a column < value predicate.
func Lt(column string, value any) Predicate {
	return Predicate{Column: column, Operator: OpLt, Value: value}
}

// Like returns a column LIKE pattern predicate.
func Like(column, pattern string) Predicate {
	return Predicate{Column: column, Operator: OpLike, Value: pattern}
}

// IsNull returns a column IS NULL predicate.
func IsNull(column string) Predicate {
	return Predicate{Column: column, Operator: OpIsNull}
}
