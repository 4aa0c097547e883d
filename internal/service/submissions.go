package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/blob"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/guard"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/otel"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/workflow"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// draftFor returns the assignee's submission for t, creating the draft when
// create is set. A lost creation race surfaces as store.ErrStale so the caller
// retries and re-reads the winner's row.
func (s *Service) draftFor(ctx context.Context, q store.Queries, t models.Task, create bool, now time.Time) (*models.Submission, error) {
	sub, err := q.GetSubmissionFor(ctx, t.TaskID, t.AssignedUserID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, store.ErrNotFound) || !create {
		return nil, err
	}
	draft := workflow.NewSubmission(s.newID(), t.TaskID, t.AssignedUserID, now)
	if err := q.InsertSubmission(ctx, &draft); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, store.ErrStale
		}
		return nil, err
	}
	return &draft, nil
}

// lockedDraft is draftFor followed by the submission row lock and a re-read
// under it.
func (s *Service) lockedDraft(ctx context.Context, q store.Queries, t models.Task, now time.Time) (*models.Submission, error) {
	sub, err := s.draftFor(ctx, q, t, true, now)
	if err != nil {
		return nil, err
	}
	if err := q.LockSubmission(ctx, sub.SubmissionID); err != nil {
		return nil, err
	}
	return q.GetSubmission(ctx, sub.SubmissionID)
}

// GetSubmission returns the assignee's submission with its files and the task.
// Submission is nil when nothing was saved yet.
func (s *Service) GetSubmission(ctx context.Context, actor guard.Actor, taskID string) (models.SubmissionView, error) {
	const op = workflow.OpViewTask
	t, err := s.loadVisible(ctx, s.st, actor, op, taskID)
	if err != nil {
		return models.SubmissionView{}, err
	}
	view := models.SubmissionView{Task: *t}
	sub, err := s.st.GetSubmissionFor(ctx, t.TaskID, t.AssignedUserID)
	if errors.Is(err, store.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return models.SubmissionView{}, translate(op, err, "submission")
	}
	if sub.Files, err = s.st.ListFiles(ctx, sub.SubmissionID); err != nil {
		return models.SubmissionView{}, translate(op, err, "files")
	}
	view.Submission = sub
	return view, nil
}

// SaveSubmissionText overwrites the draft's text, creating the draft if needed.
func (s *Service) SaveSubmissionText(ctx context.Context, actor guard.Actor, taskID, text string) (sub models.Submission, err error) {
	const op = workflow.OpSaveText
	defer s.observe(ctx, op, time.Now(), &err)
	_, err = s.mutate(ctx, actor, op, taskID, func(q store.Queries, cur models.Task, now time.Time) (change, error) {
		if err := workflow.CheckActive(op, cur); err != nil {
			return change{}, err
		}
		draft, err := s.lockedDraft(ctx, q, cur, now)
		if err != nil {
			return change{}, err
		}
		count, err := q.CountFiles(ctx, draft.SubmissionID)
		if err != nil {
			return change{}, err
		}
		next, err := workflow.SaveText(cur, *draft, text, count, s.policy, now)
		if err != nil {
			return change{}, err
		}
		return change{
			task:   cur,
			detail: fmt.Sprintf("%d bytes of text", len(text)),
			apply: func(q store.Queries) error {
				if err := q.UpdateSubmission(ctx, draft.Status, &next); err != nil {
					return err
				}
				sub = next
				return nil
			},
		}, nil
	})
	if err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

// AttachFileInput describes an upload. Size is the declared size; the content
// must match it.
type AttachFileInput struct {
	FileName string `validate:"required,max=255"`
	FileType string `validate:"required,max=255"`
	Size     int64  `validate:"gte=0"`
	Content  io.Reader
}

// AttachFile stores one file on the assignee's draft. The quota check, the
// storage put and the metadata insert happen under the submission row lock; a
// failed transaction removes the stored object.
func (s *Service) AttachFile(ctx context.Context, actor guard.Actor, taskID string, in AttachFileInput) (file models.SubmissionFile, err error) {
	const op = workflow.OpAttachFile
	defer s.observe(ctx, op, time.Now(), &err)

	if err := s.validate(op, in); err != nil {
		return models.SubmissionFile{}, err
	}
	if in.Content == nil {
		return models.SubmissionFile{}, workflow.Validation(string(op), "file content required")
	}
	// Authorize and check the declared metadata before reading the body.
	t, err := s.st.GetTask(ctx, taskID)
	if err != nil {
		return models.SubmissionFile{}, translate(op, err, "task %s", taskID)
	}
	if err := guard.Check(actor, op, t); err != nil {
		return models.SubmissionFile{}, err
	}
	if err := workflow.CheckActive(op, *t); err != nil {
		return models.SubmissionFile{}, err
	}
	meta := workflow.FileMeta{FileName: in.FileName, FileType: workflow.NormalizeType(in.FileType), FileSize: in.Size}
	if meta.FileSize == 0 {
		meta.FileSize = 1 // unknown; checked against the actual size below
	}
	if err := workflow.CheckFile(meta, s.policy); err != nil {
		return models.SubmissionFile{}, err
	}

	data, err := io.ReadAll(io.LimitReader(in.Content, s.policy.MaxFileSize+1))
	if err != nil {
		return models.SubmissionFile{}, fmt.Errorf("%s: read content: %w", op, err)
	}
	if in.Size > 0 && int64(len(data)) != in.Size {
		return models.SubmissionFile{}, workflow.FileConstraint(string(op), "declared size %d, got %d bytes", in.Size, len(data))
	}
	meta.FileSize = int64(len(data))
	if err := workflow.CheckFile(meta, s.policy); err != nil {
		return models.SubmissionFile{}, err
	}
	sniffed, _, err := blob.Sniff(bytes.NewReader(data))
	if err != nil {
		return models.SubmissionFile{}, fmt.Errorf("%s: %w", op, err)
	}
	if !blob.Consistent(meta.FileType, sniffed) {
		return models.SubmissionFile{}, workflow.FileConstraint(string(op), "content looks like %s, declared %s", sniffed, meta.FileType)
	}

	var stored string
	_, err = s.mutate(ctx, actor, op, taskID, func(q store.Queries, cur models.Task, now time.Time) (change, error) {
		if err := workflow.CheckActive(op, cur); err != nil {
			return change{}, err
		}
		draft, err := s.lockedDraft(ctx, q, cur, now)
		if err != nil {
			return change{}, err
		}
		count, err := q.CountFiles(ctx, draft.SubmissionID)
		if err != nil {
			return change{}, err
		}
		if err := workflow.CheckAttach(cur, *draft, meta, count, s.policy); err != nil {
			return change{}, err
		}
		f := models.SubmissionFile{
			FileID:       s.newID(),
			SubmissionID: draft.SubmissionID,
			FileName:     blob.SanitizeName(meta.FileName),
			FilePath:     blob.Key(draft.SubmissionID, meta.FileName),
			FileType:     meta.FileType,
			FileSize:     meta.FileSize,
			UploadedBy:   actor.ID,
			UploadedAt:   now,
		}
		return change{
			task:   cur,
			detail: fmt.Sprintf("attached %s (%d bytes)", f.FileName, f.FileSize),
			apply: func(q store.Queries) error {
				if _, err := s.blobs.Put(f.FilePath, bytes.NewReader(data)); err != nil {
					return fmt.Errorf("%s: store file: %w", op, err)
				}
				stored = f.FilePath
				if err := q.InsertFile(ctx, &f); err != nil {
					return err
				}
				file = f
				return nil
			},
		}, nil
	})
	if err != nil {
		if stored != "" {
			s.removeBlob(stored)
		}
		return models.SubmissionFile{}, err
	}
	otel.RecordFileBytes(ctx, file.FileSize)
	return file, nil
}

// removeBlob deletes an object left behind by a failed transaction.
func (s *Service) removeBlob(key string) {
	if err := s.blobs.Delete(key); err != nil {
		s.log.Warn("orphaned file not removed", "key", key, "err", err)
	}
}

// fileTask resolves a file to its submission and task ids.
func (s *Service) fileTask(ctx context.Context, op workflow.Op, fileID string) (*models.SubmissionFile, *models.Submission, error) {
	f, err := s.st.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, translate(op, err, "file %s", fileID)
	}
	sub, err := s.st.GetSubmission(ctx, f.SubmissionID)
	if err != nil {
		return nil, nil, translate(op, err, "submission %s", f.SubmissionID)
	}
	return f, sub, nil
}

// DetachFile removes a file from the assignee's editable submission. The
// stored object is deleted first; if that fails the row is kept.
func (s *Service) DetachFile(ctx context.Context, actor guard.Actor, fileID string) (err error) {
	const op = workflow.OpDetachFile
	defer s.observe(ctx, op, time.Now(), &err)

	_, sub, err := s.fileTask(ctx, op, fileID)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, actor, op, sub.TaskID, func(q store.Queries, cur models.Task, now time.Time) (change, error) {
		if err := q.LockSubmission(ctx, sub.SubmissionID); err != nil {
			return change{}, translate(op, err, "submission %s", sub.SubmissionID)
		}
		locked, err := q.GetSubmission(ctx, sub.SubmissionID)
		if err != nil {
			return change{}, translate(op, err, "submission %s", sub.SubmissionID)
		}
		if locked.UserID != cur.AssignedUserID {
			return change{}, workflow.Denied(string(op), "file belongs to a previous assignee")
		}
		f, err := q.GetFile(ctx, fileID)
		if err != nil {
			return change{}, translate(op, err, "file %s", fileID)
		}
		count, err := q.CountFiles(ctx, locked.SubmissionID)
		if err != nil {
			return change{}, err
		}
		if err := workflow.CheckDetach(cur, *locked, count); err != nil {
			return change{}, err
		}
		return change{
			task:   cur,
			detail: "detached " + f.FileName,
			apply: func(q store.Queries) error {
				if err := s.blobs.Delete(f.FilePath); err != nil {
					return fmt.Errorf("%s: delete stored file: %w", op, err)
				}
				return translate(op, q.DeleteFile(ctx, fileID), "file %s", fileID)
			},
		}, nil
	})
	return err
}

// OpenFile returns a file's metadata and a reader for its content. The caller
// closes the reader.
func (s *Service) OpenFile(ctx context.Context, actor guard.Actor, fileID string) (models.SubmissionFile, io.ReadCloser, error) {
	const op = workflow.OpViewTask
	f, sub, err := s.fileTask(ctx, op, fileID)
	if err != nil {
		return models.SubmissionFile{}, nil, err
	}
	if _, err := s.loadVisible(ctx, s.st, actor, op, sub.TaskID); err != nil {
		return models.SubmissionFile{}, nil, err
	}
	rc, err := s.blobs.GetStream(f.FilePath)
	if err != nil {
		return models.SubmissionFile{}, nil, fmt.Errorf("%s: open stored file: %w", op, err)
	}
	return *f, rc, nil
}

// FinalizeSubmission submits the draft and moves the task to submitted.
func (s *Service) FinalizeSubmission(ctx context.Context, actor guard.Actor, taskID string) (view models.SubmissionView, err error) {
	const op = workflow.OpFinalize
	defer s.observe(ctx, op, time.Now(), &err)
	var sub models.Submission
	t, err := s.mutate(ctx, actor, op, taskID, func(q store.Queries, cur models.Task, now time.Time) (change, error) {
		if err := workflow.CheckActive(op, cur); err != nil {
			return change{}, err
		}
		draft, err := s.lockedDraft(ctx, q, cur, now)
		if err != nil {
			return change{}, err
		}
		files, err := q.ListFiles(ctx, draft.SubmissionID)
		if err != nil {
			return change{}, err
		}
		nextTask, nextSub, err := workflow.Finalize(cur, *draft, len(files), now)
		if err != nil {
			return change{}, err
		}
		return change{
			task:   nextTask,
			detail: fmt.Sprintf("%d files", len(files)),
			apply: func(q store.Queries) error {
				if err := q.UpdateSubmission(ctx, draft.Status, &nextSub); err != nil {
					return err
				}
				nextSub.Files = files
				sub = nextSub
				return nil
			},
		}, nil
	})
	if err != nil {
		return models.SubmissionView{}, err
	}
	return models.SubmissionView{Task: t, Submission: &sub}, nil
}

// ReviewSubmission marks the submitted work reviewed, closing the task.
func (s *Service) ReviewSubmission(ctx context.Context, actor guard.Actor, taskID string) (view models.SubmissionView, err error) {
	const op = workflow.OpReview
	defer s.observe(ctx, op, time.Now(), &err)
	var sub models.Submission
	t, err := s.mutate(ctx, actor, op, taskID, func(q store.Queries, cur models.Task, now time.Time) (change, error) {
		current, err := s.draftFor(ctx, q, cur, false, now)
		if errors.Is(err, store.ErrNotFound) {
			return change{}, workflow.InvalidTransition(string(op), "nothing submitted")
		}
		if err != nil {
			return change{}, err
		}
		if err := q.LockSubmission(ctx, current.SubmissionID); err != nil {
			return change{}, err
		}
		if current, err = q.GetSubmission(ctx, current.SubmissionID); err != nil {
			return change{}, err
		}
		count, err := q.CountFiles(ctx, current.SubmissionID)
		if err != nil {
			return change{}, err
		}
		nextTask, nextSub, err := workflow.Review(cur, *current, count, actor.ID, now)
		if err != nil {
			return change{}, err
		}
		return change{
			task: nextTask,
			apply: func(q store.Queries) error {
				if err := q.UpdateSubmission(ctx, current.Status, &nextSub); err != nil {
					return err
				}
				files, err := q.ListFiles(ctx, nextSub.SubmissionID)
				if err != nil {
					return err
				}
				nextSub.Files = files
				sub = nextSub
				return nil
			},
		}, nil
	})
	if err != nil {
		return models.SubmissionView{}, err
	}
	return models.SubmissionView{Task: t, Submission: &sub}, nil
}
