package jobs

import (
	"log"
	"time"

	"github.com/rohan/securevault-backend/vault"
)

// StartCleanupJob reaps expired shareable links and abandoned chunk
// sessions once an hour.
func StartCleanupJob(records vault.RecordStore, chunks *vault.ChunkStore) {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for range ticker.C {
			cleanup(records, chunks)
		}
	}()
}

func cleanup(records vault.RecordStore, chunks *vault.ChunkStore) {
	now := time.Now()

	removed, err := records.DeleteExpiredLinks(now)
	if err != nil {
		log.Printf("cleanup: deleting expired links: %v", err)
	} else if removed > 0 {
		log.Printf("cleanup: removed %d expired links", removed)
	}

	if reaped := chunks.ReapStale(24*time.Hour, now); reaped > 0 {
		log.Printf("cleanup: reaped %d stale upload sessions", reaped)
	}
}
