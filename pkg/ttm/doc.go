// Package ttm provides the library API for integrity markers and the
// tamper-evident variable log.
//
// # Concurrency Safety
//
//   - CreateMarker never overwrites: each marker is created exclusively and
//     carries fresh entropy, so concurrent calls into the same directory
//     produce distinct files.
//
//   - Record and Verify on the same log directory are serialised, within a
//     process by a mutex keyed by the log path and across processes by an
//     advisory lock on "<log>.lock". No entry is lost under concurrent Record.
//
//   - Watched files are hashed without locking. A file being rewritten while
//     it is recorded may be observed partially.
//
// # Recommended Usage Pattern
//
//	client, err := ttm.New(ttm.Options{Config: cfg})
//	defer client.Close()
//
//	// Before the migration: drop a marker next to the backup.
//	path, rec, err := client.CreateMarker(ctx, "alice", model.MarkerContext{
//	    Path:  "/mnt/tank/backups/app",
//	    Flags: model.MarkerFlags{MigratePVs: true},
//	}, backupDir)
//
//	// Record the backup file, later check it was not replaced.
//	entry, err := client.Record(ctx, backupFile, logDir, map[string]string{"variable_name": "backup"})
//	tampered, err := client.Verify(ctx, backupFile, logDir)
package ttm
