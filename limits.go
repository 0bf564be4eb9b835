package decompress

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"math"
)

// maxPrealloc caps the buffer preallocated from a declared entry size.
const maxPrealloc = 64 * 1024 * 1024

// Limits bounds the resources a single plugin may consume while decoding an archive.
// A zero value for any field disables that limit.
type Limits struct {
	// MaxFiles is the maximum number of entries accepted from one archive.
	MaxFiles int

	// MaxSize is the maximum total uncompressed size of all entries in bytes.
	MaxSize int64

	// MaxFileSize is the maximum uncompressed size of a single entry in bytes.
	MaxFileSize int64
}

// DefaultLimits returns limits suitable for untrusted archives:
// 10000 entries, 1GB total, 100MB per entry. They are not applied unless
// passed to WithLimits.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:    10000,
		MaxSize:     1 * 1024 * 1024 * 1024,
		MaxFileSize: 100 * 1024 * 1024,
	}
}

// EntryInfo describes one archive entry for validation.
type EntryInfo struct {
	// Name is the entry path within the archive
	Name string

	// Size is the uncompressed size of the entry in bytes
	Size int64
}

// ArchiveStats holds running totals for an archive being decoded.
type ArchiveStats struct {
	// TotalFiles is the number of entries seen so far
	TotalFiles int

	// TotalSize is the uncompressed size of all entries seen so far
	TotalSize int64
}

// Validator checks entries and running archive totals while a plugin decodes.
type Validator interface {
	// ValidateEntry checks a single entry before its content is read.
	ValidateEntry(info EntryInfo) error

	// ValidateArchive checks the running totals after each entry.
	ValidateArchive(stats ArchiveStats) error
}

// SizeValidator enforces per-entry and total size limits.
type SizeValidator struct {
	MaxFileSize  int64
	MaxTotalSize int64
}

// NewSizeValidator creates a new SizeValidator with the specified limits.
func NewSizeValidator(maxFileSize, maxTotalSize int64) *SizeValidator {
	return &SizeValidator{
		MaxFileSize:  maxFileSize,
		MaxTotalSize: maxTotalSize,
	}
}

// ValidateEntry checks if an entry's size is within the per-entry limit.
func (v *SizeValidator) ValidateEntry(info EntryInfo) error {
	if v.MaxFileSize > 0 && info.Size > v.MaxFileSize {
		return fmt.Errorf("entry %s is %d bytes, limit is %d: %w", info.Name, info.Size, v.MaxFileSize, ErrSecurityViolation)
	}
	return nil
}

// ValidateArchive checks if the total size is within the archive limit.
func (v *SizeValidator) ValidateArchive(stats ArchiveStats) error {
	if v.MaxTotalSize > 0 && stats.TotalSize > v.MaxTotalSize {
		return fmt.Errorf("archive expands to more than %d bytes: %w", v.MaxTotalSize, ErrSecurityViolation)
	}
	return nil
}

// FileCountValidator limits the number of entries in an archive.
type FileCountValidator struct {
	MaxFiles int
}

// NewFileCountValidator creates a new FileCountValidator with the specified limit.
func NewFileCountValidator(maxFiles int) *FileCountValidator {
	return &FileCountValidator{MaxFiles: maxFiles}
}

// ValidateEntry is a no-op for FileCountValidator since it validates at archive level.
func (v *FileCountValidator) ValidateEntry(EntryInfo) error {
	return nil
}

// ValidateArchive checks if the entry count is within the limit.
func (v *FileCountValidator) ValidateArchive(stats ArchiveStats) error {
	if v.MaxFiles > 0 && stats.TotalFiles > v.MaxFiles {
		return fmt.Errorf("archive has more than %d entries: %w", v.MaxFiles, ErrSecurityViolation)
	}
	return nil
}

// ValidatorChain runs validators in sequence and fails fast on the first error.
type ValidatorChain struct {
	validators []Validator
}

// NewValidatorChain creates a new ValidatorChain with the specified validators.
func NewValidatorChain(validators ...Validator) *ValidatorChain {
	return &ValidatorChain{validators: validators}
}

// ValidateEntry runs all validators' ValidateEntry methods in sequence.
func (vc *ValidatorChain) ValidateEntry(info EntryInfo) error {
	for _, validator := range vc.validators {
		if err := validator.ValidateEntry(info); err != nil {
			return err
		}
	}
	return nil
}

// ValidateArchive runs all validators' ValidateArchive methods in sequence.
func (vc *ValidatorChain) ValidateArchive(stats ArchiveStats) error {
	for _, validator := range vc.validators {
		if err := validator.ValidateArchive(stats); err != nil {
			return err
		}
	}
	return nil
}

// entryReader tracks running totals for one archive and reads entry content
// without trusting the sizes declared in headers.
type entryReader struct {
	limits Limits
	chain  *ValidatorChain
	stats  ArchiveStats
}

func newEntryReader(limits Limits, extra ...Validator) *entryReader {
	validators := []Validator{
		NewSizeValidator(limits.MaxFileSize, limits.MaxSize),
		NewFileCountValidator(limits.MaxFiles),
	}

	return &entryReader{
		limits: limits,
		chain:  NewValidatorChain(append(validators, extra...)...),
	}
}

// add records an entry with its declared size and validates the new totals.
func (er *entryReader) add(name string, declared int64) error {
	if err := er.chain.ValidateEntry(EntryInfo{Name: name, Size: declared}); err != nil {
		return err
	}

	er.stats.TotalFiles++
	if declared > math.MaxInt64-er.stats.TotalSize {
		er.stats.TotalSize = math.MaxInt64
	} else {
		er.stats.TotalSize += max(declared, 0)
	}

	return er.chain.ValidateArchive(er.stats)
}

// read reads an entry's content, failing when it exceeds the per-entry limit
// or its declared size, whichever is reached first.
func (er *entryReader) read(name string, r io.Reader, declared int64) ([]byte, error) {
	limit := declared
	if er.limits.MaxFileSize > 0 && (limit < 0 || limit > er.limits.MaxFileSize) {
		limit = er.limits.MaxFileSize
	}

	var buf bytes.Buffer
	if declared > 0 && declared <= maxPrealloc {
		buf.Grow(int(declared))
	}

	bounded := limit >= 0 && limit < math.MaxInt64
	src := r
	if bounded {
		src = io.LimitReader(r, limit+1)
	}

	n, err := io.Copy(&buf, src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w: %w", name, ErrArchiveCorrupted, err)
	}

	if bounded && n > limit {
		return nil, fmt.Errorf("entry %s exceeds its declared or allowed size: %w", name, ErrSecurityViolation)
	}

	return buf.Bytes(), nil
}

// sanitizeMode removes setuid and setgid bits from a file mode.
func sanitizeMode(mode fs.FileMode) fs.FileMode {
	return mode &^ (fs.ModeSetuid | fs.ModeSetgid)
}
