package vault

import (
	"log"

	"github.com/rohan/securevault-backend/models"
)

// Recorder appends audit entries best-effort. A failing sink is logged
// locally and otherwise ignored: an audit outage must never block or
// roll back the operation being audited.
type Recorder struct {
	sink AuditSink
}

func NewRecorder(sink AuditSink) *Recorder {
	return &Recorder{sink: sink}
}

func (r *Recorder) Record(event *models.AuditLog) {
	if r == nil || r.sink == nil {
		return
	}
	if err := r.sink.Append(event); err != nil {
		log.Printf("audit: dropping %s event: %v", event.Action, err)
	}
}
