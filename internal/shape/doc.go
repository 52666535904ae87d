// Package shape computes the result shape of a query at build time.
//
// Build runs three pure phases over a queryir.Query:
//
//	Propagate  join graph             → NullabilityMap (table → not-null | nullable | null)
//	Resolve    selection + graph      → Selection (mode, SelectFieldsOrdered, resolved tree)
//	Compose    Selection + nullability → ResultSchema
//
// The resulting Plan is immutable and safe to share across goroutines; the
// materialize package reuses its ResultSchema for every row.
//
// All errors are returned here, at build time, as *BuildError. Nothing in a
// Plan can fail later except a driver handing back a row of the wrong width.
package shape
