package mongo

import (
	"time"

	"github.com/xecure-ai/alex-sub000/internal/job"
)

// jobDoc is the BSON document shape for one job row. Slots are nested under
// a single sub-document so each slot maps to a stable dotted path
// (slots.report, slots.charts.<key>, ...) for targeted $set updates.
type jobDoc struct {
	JobID   string             `bson:"job_id"`
	UserRef string             `bson:"user_ref"`
	Kind    string             `bson:"kind"`
	Status  string             `bson:"status"`
	Request job.RequestPayload `bson:"request"`

	Slots slotsDoc `bson:"slots"`

	Error string `bson:"error,omitempty"`

	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	StartedAt   *time.Time `bson:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
}

type slotsDoc struct {
	Report     *string               `bson:"report,omitempty"`
	Charts     map[string]job.Chart  `bson:"charts,omitempty"`
	Retirement *job.Retirement       `bson:"retirement,omitempty"`
	Summary    *job.Summary          `bson:"summary,omitempty"`
}

func fromRecord(id string, userRef string, kind job.Kind, req job.RequestPayload, now time.Time) jobDoc {
	return jobDoc{
		JobID:     id,
		UserRef:   userRef,
		Kind:      string(kind),
		Status:    string(job.StatusPending),
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (d jobDoc) toRecord() job.Record {
	return job.Record{
		ID:          d.JobID,
		UserRef:     d.UserRef,
		Kind:        job.Kind(d.Kind),
		Status:      job.Status(d.Status),
		Request:     d.Request,
		Report:      d.Slots.Report,
		Charts:      d.Slots.Charts,
		Retirement:  d.Slots.Retirement,
		Summary:     d.Slots.Summary,
		Error:       d.Error,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
	}
}
