package daemon

import (
	"github.com/google/uuid"

	"github.com/shshalom/voicesmith-mcp/pkg/session"
)

// SetCorrelation records which logical agent conversation this process
// belongs to. An empty id gets a generated one. When a sibling session
// already carries the id, the registry hands back its name and voice and
// this daemon adopts them. Returns nil when this process has no registry
// entry (it was pruned out from under us).
func (d *Daemon) SetCorrelation(id string) (*session.Record, error) {
	d.touchTool()
	if id == "" {
		id = uuid.NewString()
	}
	rec, err := d.reg.UpdateCorrelation(id)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		d.setSelf(*rec)
		d.log.Info("correlation updated",
			"session_id", id, "name", rec.Name, "voice", rec.Voice)
	}
	return rec, nil
}

// Self returns this daemon's registry entry.
func (d *Daemon) Self() session.Record {
	d.selfMu.RLock()
	defer d.selfMu.RUnlock()
	return d.self
}

func (d *Daemon) setSelf(rec session.Record) {
	d.selfMu.Lock()
	d.self = rec
	d.selfMu.Unlock()
}
