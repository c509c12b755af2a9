// Package fleet aggregates job history across every discovered printer.
//
// Aggregate reads each printer concurrently: lifetime totals first, then the
// outcome breakdown and, optionally, the job records behind the longest job
// and longest print. Reduce folds the per-printer reports into fleet totals.
// A printer whose totals cannot be read stays in the report with ok=false.
package fleet
