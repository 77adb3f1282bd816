package upload

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/trungha/formgate/internal/core/domain"
)

// Config controls a Validator. All fields are optional.
type Config struct {
	MaxSize  int64  // bytes per file, default 10 MiB
	MaxFiles int    // default 10
	Accept   string // comma-separated MIME/extension patterns, empty accepts all

	OnError       func(err error)
	OnFilesChange func(files []domain.FileMeta)
}

// Validator owns the candidate file list of one upload control and
// enforces count, size, type and duplicate rules before admission.
// All operations are synchronous; callbacks fire on the calling
// goroutine after the state change they report.
type Validator struct {
	mu    sync.Mutex
	cfg   Config
	files []domain.FileMeta
	err   error
}

// New creates a Validator with defaults applied.
func New(cfg Config) *Validator {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 10 * 1024 * 1024
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 10
	}
	return &Validator{cfg: cfg}
}

// AddFiles validates candidates in order and appends the ones that pass.
//
// If admitting every candidate would exceed MaxFiles the whole call is
// rejected. Otherwise each candidate is checked independently against
// size, accept list, and duplicates; failures are collected into one
// space-joined error while the passing candidates are still admitted.
// Duplicates are checked against the list as it was before this call,
// so two identical candidates within one call are both admitted.
// Returns the composed error, or nil when every candidate passed.
func (v *Validator) AddFiles(candidates []domain.FileMeta) error {
	if len(candidates) == 0 {
		return nil
	}

	v.mu.Lock()

	if len(v.files)+len(candidates) > v.cfg.MaxFiles {
		err := fmt.Errorf(
			"Maximum %d files allowed (attempted to add %d, currently holding %d)",
			v.cfg.MaxFiles, len(candidates), len(v.files),
		)
		v.err = err
		onError := v.cfg.OnError
		v.mu.Unlock()

		if onError != nil {
			onError(err)
		}
		return err
	}

	existing := v.files
	var admitted []domain.FileMeta
	var rejections []string

	for _, candidate := range candidates {
		switch {
		case candidate.Size > v.cfg.MaxSize:
			rejections = append(rejections, fmt.Sprintf(
				"%s is too large (maximum size %s)",
				candidate.Name, FormatSize(v.cfg.MaxSize),
			))
		case !acceptMatches(v.cfg.Accept, candidate):
			rejections = append(rejections, fmt.Sprintf(
				"%s has an invalid type (accepted: %s)",
				candidate.Name, v.cfg.Accept,
			))
		case isDuplicate(existing, candidate):
			rejections = append(rejections, fmt.Sprintf(
				"%s is already added", candidate.Name,
			))
		default:
			admitted = append(admitted, candidate)
		}
	}

	var composed error
	if len(rejections) > 0 {
		composed = errors.New(strings.Join(rejections, " "))
	}
	v.err = composed

	var changed []domain.FileMeta
	if len(admitted) > 0 {
		v.files = append(v.files, admitted...)
		changed = snapshotFiles(v.files)
	}
	onError := v.cfg.OnError
	onChange := v.cfg.OnFilesChange
	v.mu.Unlock()

	if composed != nil && onError != nil {
		onError(composed)
	}
	if changed != nil && onChange != nil {
		onChange(changed)
	}
	return composed
}

// RemoveFile removes the file at index, preserving the order of the
// rest. An out-of-range index is a silent no-op. A pending error is
// cleared once the list is back under MaxFiles.
func (v *Validator) RemoveFile(index int) {
	v.mu.Lock()
	if index < 0 || index >= len(v.files) {
		v.mu.Unlock()
		return
	}

	v.files = append(v.files[:index], v.files[index+1:]...)
	if v.err != nil && len(v.files) < v.cfg.MaxFiles {
		v.err = nil
	}
	changed := snapshotFiles(v.files)
	onChange := v.cfg.OnFilesChange
	v.mu.Unlock()

	if onChange != nil {
		onChange(changed)
	}
}

// ClearFiles unconditionally resets the list and any pending error.
func (v *Validator) ClearFiles() {
	v.mu.Lock()
	v.files = nil
	v.err = nil
	onChange := v.cfg.OnFilesChange
	v.mu.Unlock()

	if onChange != nil {
		onChange([]domain.FileMeta{})
	}
}

// Files returns a copy of the current list in admission order.
func (v *Validator) Files() []domain.FileMeta {
	v.mu.Lock()
	defer v.mu.Unlock()
	return snapshotFiles(v.files)
}

// Err returns the error from the most recent operation, if any.
func (v *Validator) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// CanAddMoreFiles reports whether at least one slot is free.
func (v *Validator) CanAddMoreFiles() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.files) < v.cfg.MaxFiles
}

// RemainingSlots returns how many more files can be admitted.
func (v *Validator) RemainingSlots() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cfg.MaxFiles - len(v.files)
}

func isDuplicate(files []domain.FileMeta, candidate domain.FileMeta) bool {
	for _, f := range files {
		if f.SameFile(candidate) {
			return true
		}
	}
	return false
}

func snapshotFiles(files []domain.FileMeta) []domain.FileMeta {
	out := make([]domain.FileMeta, len(files))
	copy(out, files)
	return out
}
