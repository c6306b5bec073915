package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/logflow/caseline/internal/model"
	cerrors "github.com/logflow/caseline/pkg/errors"
	"github.com/logflow/caseline/pkg/storage/s3"
)

// Uploader puts an object into object storage.
type Uploader interface {
	Upload(ctx context.Context, loc s3.Location, body io.Reader, contentType string, metadata map[string]string) error
}

// Save writes results to a local path or an s3:// location.
// Local files are written to a temp file and renamed on success.
// up may be nil when location is local.
func Save(ctx context.Context, location string, format Format, results []*model.CaseResult, meta Metadata, opts Options, up Uploader) error {
	var buf bytes.Buffer
	if err := Write(ctx, &buf, format, results, meta, opts); err != nil {
		return cerrors.Wrap(err, cerrors.CodeWriteFailed, "failed to encode export").
			WithContext("format", format.String())
	}

	if s3.IsURI(location) {
		loc, err := s3.ParseURI(location)
		if err != nil {
			return cerrors.Wrap(err, cerrors.CodeWriteFailed, "invalid export location")
		}
		if up == nil {
			return cerrors.New(cerrors.CodeWriteFailed, "no uploader configured for s3 export")
		}
		if err := up.Upload(ctx, loc, &buf, format.ContentType(), meta.pairs()); err != nil {
			return cerrors.Wrap(err, cerrors.CodeWriteFailed, "failed to upload export").
				WithContext("location", location)
		}
		return nil
	}

	if err := writeFileAtomic(location, buf.Bytes()); err != nil {
		return cerrors.Wrap(err, cerrors.CodeWriteFailed, "failed to write export").
			WithContext("path", location)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := path + ".tmp." + fmt.Sprintf("%d", time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
