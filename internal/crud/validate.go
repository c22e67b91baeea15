package crud

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// ValidationError reports input rejected before any SQL is sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "insert": true, "update": true,
	"delete": true, "create": true, "drop": true, "alter": true, "table": true,
	"view": true, "index": true, "schema": true, "database": true,
}

var columnTypes = map[string]bool{
	"SMALLINT": true, "INTEGER": true, "BIGINT": true, "DECIMAL": true, "NUMERIC": true,
	"REAL": true, "DOUBLE PRECISION": true, "SERIAL": true, "BIGSERIAL": true,
	"CHARACTER": true, "CHAR": true, "VARCHAR": true, "TEXT": true,
	"DATE": true, "TIME": true, "TIMESTAMP": true, "INTERVAL": true,
	"BOOLEAN": true, "BYTEA": true, "JSON": true, "JSONB": true, "UUID": true, "ARRAY": true,
}

var referentialActions = map[string]bool{
	"RESTRICT": true, "CASCADE": true, "SET NULL": true, "SET DEFAULT": true, "NO ACTION": true,
}

var dangerousWhere = []*regexp.Regexp{
	regexp.MustCompile(`(?i);\s*DROP`),
	regexp.MustCompile(`(?i);\s*DELETE`),
	regexp.MustCompile(`(?i);\s*TRUNCATE`),
	regexp.MustCompile(`(?i);\s*CREATE`),
	regexp.MustCompile(`--\s*$`),
	regexp.MustCompile(`/\*`),
}

// ValidateTableName accepts plain identifiers that are not reserved words.
// It is also used for view and index names.
func ValidateTableName(name string) error {
	if name == "" {
		return invalid("Table name must be a non-empty string")
	}
	if !identifierPattern.MatchString(name) {
		return invalid("Invalid table name '%s'. Must start with letter or underscore, contain only alphanumeric characters and underscores.", name)
	}
	if reservedWords[strings.ToLower(name)] {
		return invalid("'%s' is a PostgreSQL reserved keyword", name)
	}
	return nil
}

// ValidateColumnName accepts plain identifiers.
func ValidateColumnName(name string) error {
	if name == "" {
		return invalid("Column name must be a non-empty string")
	}
	if !identifierPattern.MatchString(name) {
		return invalid("Invalid column name '%s'. Must start with letter or underscore, contain only alphanumeric characters and underscores.", name)
	}
	return nil
}

// ValidateColumnType checks the base type, the part before any '(', against
// a whitelist.
func ValidateColumnType(dataType string) error {
	if strings.TrimSpace(dataType) == "" {
		return invalid("Data type must be a non-empty string")
	}
	base, _, _ := strings.Cut(dataType, "(")
	base = strings.ToUpper(strings.TrimSpace(base))
	if !columnTypes[base] {
		valid := make([]string, 0, len(columnTypes))
		for t := range columnTypes {
			valid = append(valid, t)
		}
		sort.Strings(valid)
		return invalid("Unknown data type '%s'. Valid types: %s", dataType, strings.Join(valid, ", "))
	}
	return nil
}

// ValidateWhereClause rejects stacked destructive statements, comments and
// mixed placeholder styles.
// An empty clause is valid.
func ValidateWhereClause(clause string) error {
	for _, p := range dangerousWhere {
		if p.MatchString(clause) {
			return invalid("WHERE clause contains potentially dangerous SQL. Only use simple filtering conditions.")
		}
	}
	return ValidatePlaceholders(clause)
}

// ValidateOrderBy rejects statement separators and comments.
func ValidateOrderBy(orderBy string) error {
	if strings.Contains(orderBy, ";") || strings.Contains(orderBy, "--") || strings.Contains(orderBy, "/*") {
		return invalid("ORDER BY clause contains forbidden characters")
	}
	return nil
}

// ValidateLimitOffset requires non-negative values when set.
func ValidateLimitOffset(limit, offset *int) error {
	if limit != nil && *limit < 0 {
		return invalid("LIMIT must be a non-negative integer")
	}
	if offset != nil && *offset < 0 {
		return invalid("OFFSET must be a non-negative integer")
	}
	return nil
}

// ValidateValues requires a non-empty column map with valid column names.
func ValidateValues(values map[string]any) error {
	if len(values) == 0 {
		return invalid("Values dictionary must not be empty")
	}
	for col := range values {
		if err := ValidateColumnName(col); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRecords requires every record to carry exactly the columns of the
// first one.
func ValidateRecords(records []map[string]any) error {
	if len(records) == 0 {
		return invalid("Records list must not be empty")
	}
	first := sortedKeys(records[0])
	if err := ValidateValues(records[0]); err != nil {
		return err
	}
	for i, record := range records[1:] {
		if !slices.Equal(first, sortedKeys(record)) {
			return invalid("Record %d has different columns than first record. All records must have identical column structure.", i+1)
		}
	}
	return nil
}

// ValidatePrimaryKey requires a non-empty list of valid column names.
func ValidatePrimaryKey(columns []string) error {
	if len(columns) == 0 {
		return invalid("Primary key must be a non-empty list of column names")
	}
	for _, col := range columns {
		if err := ValidateColumnName(col); err != nil {
			return err
		}
	}
	return nil
}

// ValidateReference checks a foreign key target and its referential actions.
// Empty actions default to RESTRICT.
func ValidateReference(ref Reference) error {
	if err := ValidateTableName(ref.Table); err != nil {
		return err
	}
	if err := ValidateColumnName(ref.Column); err != nil {
		return err
	}
	if ref.OnDelete != "" && !referentialActions[strings.ToUpper(ref.OnDelete)] {
		return invalid("Invalid ON DELETE action: %s", ref.OnDelete)
	}
	if ref.OnUpdate != "" && !referentialActions[strings.ToUpper(ref.OnUpdate)] {
		return invalid("Invalid ON UPDATE action: %s", ref.OnUpdate)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
