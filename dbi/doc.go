// Package dbi runs parameterized queries through pluggable drivers and exposes
// their output as cursor-based result sets.
//
// A Database wraps one Driver and hands out Statements. Statement.Execute
// calls the driver's Executor exactly once and captures the rows into a
// ResultSet. Rows are then read through the result set's active FetchDriver,
// which formats them as row slices (Array), CSV text (CSV) or named records
// (Struct):
//
//	stmt, err := db.Prepare(ctx, "SELECT id, name FROM users WHERE active = ?")
//	if err != nil {
//		return err
//	}
//	defer stmt.Finish()
//
//	rs, err := stmt.Execute(ctx, true)
//	if err != nil {
//		return err
//	}
//	for row, err := range rs.Each() {
//		if err != nil {
//			return err
//		}
//		fmt.Println(row.(dbi.Row))
//	}
//
// Statements serialize their own executions and may be shared between
// goroutines. Result sets are single-reader values.
package dbi
