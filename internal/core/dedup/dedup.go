// Package dedup computes content hashes and applies the duplicate-submission
// policy.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/resumelens/resumelens/internal/models"
	"github.com/resumelens/resumelens/internal/store"
)

// Policy decides what happens when an owner re-uploads byte-identical content.
type Policy string

const (
	// PolicyReuse copies the prior completed extraction into the new job and
	// completes it immediately. This is the default.
	PolicyReuse Policy = "reuse"
	// PolicyReject fails the new job as a duplicate.
	PolicyReject Policy = "reject"
	// PolicyReprocess ignores prior uploads and always runs full extraction.
	PolicyReprocess Policy = "reprocess"
)

// ParsePolicy maps a config string onto a Policy, defaulting to reuse.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case PolicyReject:
		return PolicyReject
	case PolicyReprocess:
		return PolicyReprocess
	default:
		return PolicyReuse
	}
}

// HashBytes returns the hex-encoded SHA-256 digest of data. The hash is
// content-addressing, so collision resistance matters; a checksum would not do.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Deduper looks up prior submissions by content hash, scoped to one owner.
// Cross-owner hash matches are expected (two people uploading the same
// template) and never considered duplicates.
type Deduper struct {
	store  store.JobStore
	policy Policy
	log    *slog.Logger
}

func New(s store.JobStore, policy Policy, log *slog.Logger) *Deduper {
	if log == nil {
		log = slog.Default()
	}
	return &Deduper{store: s, policy: policy, log: log}
}

func (d *Deduper) Policy() Policy { return d.policy }

// FindExisting returns the owner's most recent completed job with the given
// hash, or nil. Non-terminal and errored prior jobs are never returned:
// referencing an incomplete result would propagate its gaps.
func (d *Deduper) FindExisting(ctx context.Context, ownerID, hash string) (*models.UploadJob, error) {
	if d.policy == PolicyReprocess {
		return nil, nil
	}
	job, err := d.store.FindCompletedByHash(ctx, ownerID, hash)
	if err != nil {
		return nil, err
	}
	if job != nil {
		d.log.Info("duplicate content detected", "owner_id", ownerID, "prior_job_id", job.ID, "policy", d.policy)
	}
	return job, nil
}
