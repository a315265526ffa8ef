// Package entries is the local persistence adapter for journal entries.
//
// Rows live in the on-device SQLite database created by localdb. Timestamps
// are stored as ISO-8601 text, the AI analysis is split into an opaque JSON
// payload plus its own created_at, and dispute history is a JSON array. The
// pending column carries models.Entry.Dirty.
//
// GetAll hides soft-deleted rows; GetAllIncludingDeleted and GetByID do not,
// because the sync pass has to push tombstones.
//
//	repo := entries.NewSQLiteRepository(db)
//	_ = repo.Add(ctx, e)
//	e, _ = repo.Update(ctx, e.ID, models.Patch{Belief: models.Ptr("...")})
//	_ = repo.MarkClean(ctx, e.ID, e.UpdatedAt)
package entries
