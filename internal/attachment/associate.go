package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"github.com/welldanyogia/webrana-cms-backend/internal/observability"
	"github.com/welldanyogia/webrana-cms-backend/internal/repository"
	"go.opentelemetry.io/otel/trace"
)

// claimAttempts bounds how often a single id is re-read after losing a
// compare-and-swap to a concurrent writer.
const claimAttempts = 3

// outcome describes what associateOne did with an id
type outcome int

const (
	outcomeMoved outcome = iota
	outcomeUnchanged
	outcomeInFlight
)

// AssociateAttachments promotes each id into owner's area.
//
// Every move follows temporary|associated -> moving -> associated through
// conditional updates, so a concurrent call for the same id observes the
// in-flight state and leaves the file alone.
func (s *service) AssociateAttachments(ctx context.Context, ids []uint, owner models.Owner, opts AssociateOptions) (bool, error) {
	ctx, span := observability.StartSpan(ctx, "associate", observability.OwnerAttributes(owner)...)
	defer span.End()

	if err := validateOwner(owner); err != nil {
		observability.RecordError(span, err)
		return false, err
	}

	var resolved []*models.Attachment
	for _, id := range uniqueIDs(ids) {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		att, result, err := s.associateOne(ctx, span, id, owner, opts)
		if err != nil {
			if apperrors.IsNotFound(err) {
				s.logger.Warn("attachment not found, skipping",
					slog.Uint64("attachment_id", uint64(id)),
					slog.String("owner", owner.Key()))
				observability.AddSkipEvent(span, id, "not found")
				continue
			}
			observability.RecordError(span, err)
			return false, err
		}

		resolved = append(resolved, att)
		if result == outcomeMoved {
			s.notifier.Publish(Event{
				Type:         EventAssociated,
				Owner:        owner,
				AttachmentID: att.ID,
				FilePath:     att.FilePath,
				URL:          att.URL,
				Timestamp:    s.now(),
			})
		}
	}

	if len(resolved) == 0 {
		return false, nil
	}

	if opts.IsFeatured {
		if err := s.setFeatured(ctx, owner, resolved); err != nil {
			observability.RecordError(span, err)
			return false, err
		}
	}
	return true, nil
}

// associateOne resolves and moves a single id
func (s *service) associateOne(ctx context.Context, span trace.Span, id uint, owner models.Owner, opts AssociateOptions) (*models.Attachment, outcome, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		att, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}

		switch {
		case att.State == models.StateMoving:
			s.logger.Info("attachment is being moved by another request",
				slog.Uint64("attachment_id", uint64(id)),
				slog.String("owner", owner.Key()))
			return att, outcomeInFlight, nil

		case att.IsOwnedBy(owner):
			if err := s.applyFlags(ctx, att, owner, opts); err != nil {
				return nil, 0, err
			}
			return att, outcomeUnchanged, nil
		}

		guard := repository.Guard{State: att.State}
		if att.State == models.StateTemporary {
			guard.Temporary = repository.Bool(true)
		} else if current, ok := att.Owner(); ok {
			guard.Owner = &current
		}

		dst := s.layout.OwnerPath(owner, path.Base(att.FilePath))
		claimed, err := s.repo.CompareAndSwap(ctx, id, guard, map[string]any{
			"state":        models.StateMoving,
			"pending_path": dst,
		})
		if err != nil {
			return nil, 0, err
		}
		if !claimed {
			// Lost to a concurrent writer; re-read and decide again
			continue
		}
		observability.AddStatusTransition(span, id, att.State, models.StateMoving)

		moved, err := s.move(ctx, att, dst, owner, opts)
		if err != nil {
			return nil, 0, err
		}
		observability.AddStatusTransition(span, id, models.StateMoving, models.StateAssociated)
		return moved, outcomeMoved, nil
	}
	return nil, 0, apperrors.NewConflictError("attachment %d is contended, retry later", id)
}

// move performs the physical move of a claimed row and commits the association
func (s *service) move(ctx context.Context, att *models.Attachment, dst string, owner models.Owner, opts AssociateOptions) (*models.Attachment, error) {
	if err := s.storage.Move(ctx, att.FilePath, dst); err != nil {
		s.rollbackClaim(ctx, att)
		return nil, apperrors.NewIOError("failed to move attachment file", err)
	}

	count, err := s.repo.CountByOwner(ctx, owner)
	if err != nil {
		s.logger.Warn("failed to count owner attachments",
			slog.String("owner", owner.Key()),
			slog.String("error", err.Error()))
		count = 0
	}

	updates := map[string]any{
		"state":            models.StateAssociated,
		"file_path":        dst,
		"url":              s.layout.URL(dst),
		"object_type":      string(owner.Type),
		"object_id":        owner.ID,
		"is_temporary":     false,
		"is_primary":       false,
		"is_content_image": opts.IsContentImage,
		"pending_path":     "",
		"order_index":      int(count),
	}
	committed, err := s.repo.CompareAndSwap(context.WithoutCancel(ctx), att.ID,
		repository.Guard{State: models.StateMoving}, updates)
	if err != nil || !committed {
		// The file is at dst while the row still points at the source; the
		// stale-move recovery pass puts it back.
		if err == nil {
			err = fmt.Errorf("attachment %d left the moving state", att.ID)
		}
		s.logger.Error("failed to commit association",
			slog.Uint64("attachment_id", uint64(att.ID)),
			slog.String("file_path", att.FilePath),
			slog.String("pending_path", dst),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to commit association: %w", err)
	}

	s.logger.Info("attachment associated",
		slog.Uint64("attachment_id", uint64(att.ID)),
		slog.String("from", att.FilePath),
		slog.String("to", dst),
		slog.String("owner", owner.Key()))

	return s.GetByID(ctx, att.ID)
}

// rollbackClaim returns a claimed row to the state it was claimed from
func (s *service) rollbackClaim(ctx context.Context, att *models.Attachment) {
	_, err := s.repo.CompareAndSwap(context.WithoutCancel(ctx), att.ID,
		repository.Guard{State: models.StateMoving},
		map[string]any{"state": att.State, "pending_path": ""})
	if err != nil {
		s.logger.Error("failed to release moving claim",
			slog.Uint64("attachment_id", uint64(att.ID)),
			slog.String("error", err.Error()))
	}
}

// applyFlags sets requested flags on a row the owner already has. Flags
// are only ever raised here; featured handling is done by setFeatured.
func (s *service) applyFlags(ctx context.Context, att *models.Attachment, owner models.Owner, opts AssociateOptions) error {
	if !opts.IsContentImage || att.IsContentImage {
		return nil
	}
	ok, err := s.repo.CompareAndSwap(ctx, att.ID,
		repository.Guard{State: models.StateAssociated, Owner: &owner},
		map[string]any{"is_content_image": true})
	if err != nil {
		return err
	}
	if ok {
		att.IsContentImage = true
	}
	return nil
}

// setFeatured makes the first associated row of resolved the owner's
// primary. The clear-then-set runs under the owner lock and inside one
// row-locking transaction.
func (s *service) setFeatured(ctx context.Context, owner models.Owner, resolved []*models.Attachment) error {
	var target *models.Attachment
	for _, att := range resolved {
		if att.State == models.StateAssociated {
			target = att
			break
		}
	}
	if target == nil {
		s.logger.Warn("no associated attachment to feature", slog.String("owner", owner.Key()))
		return nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.config.LockTimeout)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, "attachments:primary:"+owner.Key())
	if err != nil {
		return apperrors.NewConflictError("timed out waiting for primary lock of %s", owner.Key())
	}
	defer unlock()

	if err := s.repo.SetPrimary(ctx, owner, target.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("attachment %d is no longer associated to %s", target.ID, owner.Key())
		}
		return err
	}
	target.IsPrimary = true

	s.notifier.Publish(Event{
		Type:         EventPrimary,
		Owner:        owner,
		AttachmentID: target.ID,
		FilePath:     target.FilePath,
		URL:          target.URL,
		Timestamp:    s.now(),
	})
	s.logger.Info("primary attachment set",
		slog.Uint64("attachment_id", uint64(target.ID)),
		slog.String("owner", owner.Key()))
	return nil
}

// uniqueIDs drops zero and repeated ids, keeping order
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
