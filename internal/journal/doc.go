// Package journal records every upstream push the bridge sends to the vendor
// cloud, in SQLite.
//
// The journal is an audit trail only. Device state is never restored from it:
// after a restart the bridge rebuilds state from the first vendor poll.
//
//	repo := journal.NewSQLiteRepository(db.DB)
//	err := repo.Record(ctx, journal.Entry{DeviceID: "14253", Outcome: journal.OutcomeOK})
package journal
