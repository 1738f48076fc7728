package lostfound

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// ClaimRequest is a student's claim on a found item. ReportID optionally
// names the student's lost report for the item.
type ClaimRequest struct {
	ItemID   int64  `json:"item_id"`
	ReportID *int64 `json:"report_id,omitempty"`
	Student  string `json:"-"`
	Message  string `json:"message"`
}

// FileClaim records a pending claim and asks the administrative recipient to
// decide it.
func (r *Registry) FileClaim(ctx context.Context, req ClaimRequest) (*model.Claim, error) {
	if req.ItemID <= 0 {
		return nil, apperr.Validation("item_id is required")
	}
	if strings.TrimSpace(req.Student) == "" {
		return nil, apperr.Validation("student is required")
	}

	var claim *model.Claim
	err := store.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		item, err := store.GetItem(ctx, tx, req.ItemID)
		if err != nil {
			return err
		}
		switch {
		case item == nil:
			return apperr.NotFound("item %d not found", req.ItemID)
		case item.Kind() == model.KindReport:
			return apperr.InvalidState("item %d is a lost report and cannot be claimed", req.ItemID)
		case item.State() == model.StateClaimed:
			return apperr.InvalidState("item %d has already been claimed", req.ItemID)
		}

		if req.ReportID != nil {
			if err := checkReport(ctx, tx, *req.ReportID, req.Student); err != nil {
				return err
			}
		}

		claim, err = store.CreateClaim(ctx, tx, req.ItemID, req.ReportID, req.Student, req.Message, r.now())
		if err != nil {
			return err
		}

		return store.EnqueueNotification(ctx, tx, model.Notification{
			Username: r.AdminRecipient,
			Message:  fmt.Sprintf("%s claims %q", req.Student, item.Name),
			Type:     model.NotificationClaimRequest,
			Payload:  model.Payload(map[string]any{"claim_id": claim.ID, "item_id": req.ItemID}),
		})
	})
	if err != nil {
		return nil, err
	}
	r.flush(ctx)

	slog.Info("claim filed", "claim_id", claim.ID, "item_id", req.ItemID, "student", req.Student)
	return claim, nil
}

func checkReport(ctx context.Context, q store.DBTX, reportID int64, student string) error {
	report, err := store.GetItem(ctx, q, reportID)
	if err != nil {
		return err
	}
	switch {
	case report == nil:
		return apperr.NotFound("report %d not found", reportID)
	case report.Kind() != model.KindReport:
		return apperr.Validation("item %d is not a lost report", reportID)
	case report.ReportedBy != student:
		return apperr.Validation("report %d was filed by another user", reportID)
	}
	return nil
}

// DecideClaim accepts or rejects a pending claim. On accept the item is
// handed to the claimant and any linked report is resolved. Everything,
// including the claimant's notification, commits together or not at all.
// A claim that is missing or already decided is reported as such before the
// arguments are checked.
func (r *Registry) DecideClaim(ctx context.Context, id int64, action, admin, note string) (*model.Claim, error) {
	now := r.now()
	var claim *model.Claim
	var status string
	err := store.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		current, err := store.GetClaim(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return apperr.NotFound("claim %d not found", id)
		}
		if current.Status != model.ClaimStatusPending {
			return apperr.InvalidState("claim %d is already %s", id, current.Status)
		}

		var ok bool
		if status, ok = model.DecisionStatus(action); !ok {
			return apperr.Validation("action must be %q or %q", model.ActionAccept, model.ActionReject)
		}
		if strings.TrimSpace(admin) == "" {
			return apperr.Validation("admin is required")
		}

		claim, err = store.DecideClaim(ctx, tx, id, status, admin, note, now)
		if err != nil {
			return err
		}

		n := model.Notification{
			Username: claim.Student,
			Payload:  model.Payload(map[string]any{"claim_id": claim.ID, "item_id": claim.ItemID}),
		}

		if status == model.ClaimStatusAccepted {
			if claim.ItemID == nil {
				return apperr.NotFound("item for claim %d no longer exists", id)
			}
			if err := store.MarkClaimed(ctx, tx, *claim.ItemID, claim.Student, now); err != nil {
				return err
			}
			if claim.ReportID != nil {
				if err := store.ResolveReport(ctx, tx, *claim.ReportID, claim.Student, now); err != nil {
					return err
				}
			}
			n.Type = model.NotificationClaimAccepted
			n.Message = fmt.Sprintf("Your claim for %q was accepted. Please collect it from %s.", claim.ItemName, r.CollectionPoint)
		} else {
			n.Type = model.NotificationClaimRejected
			n.Message = fmt.Sprintf("Your claim for %q was rejected.", claim.ItemName)
			if note != "" {
				n.Message += " " + note
			}
		}

		return store.EnqueueNotification(ctx, tx, n)
	})
	if err != nil {
		return nil, err
	}
	r.flush(ctx)

	slog.Info("claim decided", "claim_id", id, "status", status, "admin", admin)
	return claim, nil
}

// GetClaim returns a claim by ID.
func (r *Registry) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	claim, err := store.GetClaim(ctx, r.DB, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, apperr.NotFound("claim %d not found", id)
	}
	return claim, nil
}

// ListClaims returns claims newest first. An empty status lists all.
func (r *Registry) ListClaims(ctx context.Context, status string) ([]model.Claim, error) {
	if status != "" && !model.ValidClaimStatus(status) {
		return nil, apperr.Validation("unknown claim status %q", status)
	}

	claims, err := store.ListClaims(ctx, r.DB, status)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	return claims, nil
}
