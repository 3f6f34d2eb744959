// Package queryir defines a small, backend-neutral query language over
// stored tables.
//
// Queries are values: a Select names a table, the columns to return, an
// optional filter and an ordering. Backends (see querysql) compile them to
// their own dialect. Keeping filters as data lets callers such as the
// journal command and the result_count assertion describe what they want
// without writing SQL, and lets Validate reject unknown columns before
// any statement reaches the database.
//
// Predicates are limited to equality, strict greater-than and
// conjunction. Comparisons against null, arrays or objects are invalid.
package queryir
