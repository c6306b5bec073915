package source

import (
	"context"
	"fmt"
	"io"
	"os"

	cerrors "github.com/logflow/caseline/pkg/errors"
	"github.com/logflow/caseline/pkg/parser"
	"github.com/logflow/caseline/pkg/storage/s3"
)

// Open opens a log at a local path or s3://bucket/key.
// Parquet logs are always served by DuckDB.
func Open(ctx context.Context, cfg Config, location string) (Source, error) {
	format := parser.DetectFormat(location, cfg.Format)
	if format == parser.FormatUnknown {
		return nil, cerrors.New(cerrors.CodeInvalidFormat, "cannot detect log format").
			WithContext("location", location)
	}

	engine := cfg.Engine
	if format == parser.FormatParquet {
		engine = EngineDuckDB
	}

	if s3.IsURI(location) {
		return openS3(ctx, cfg, location, format, engine)
	}

	if _, err := os.Stat(location); err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.FileNotFound(location)
		}
		return nil, cerrors.Wrap(err, cerrors.CodeFilePermission, "cannot stat log").
			WithContext("path", location)
	}
	return openLocal(ctx, cfg, location, format, engine)
}

func openLocal(ctx context.Context, cfg Config, path string, format parser.Format, engine Engine) (Source, error) {
	if engine == EngineDuckDB {
		return NewDuckDBSource(ctx, path, format, cfg.Parser)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeFilePermission, "cannot open log").
			WithContext("path", path)
	}
	defer f.Close()

	return openStream(ctx, cfg, f, format)
}

func openStream(ctx context.Context, cfg Config, r io.Reader, format parser.Format) (Source, error) {
	p, err := parser.NewParser(format, cfg.Parser)
	if err != nil {
		return nil, err
	}
	src, err := LoadMemory(ctx, p, r)
	if err != nil {
		return nil, fmt.Errorf("load %s log: %w", format, err)
	}
	return src, nil
}

func openS3(ctx context.Context, cfg Config, uri string, format parser.Format, engine Engine) (Source, error) {
	loc, err := s3.ParseURI(uri)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeInvalidFormat, "invalid s3 location")
	}
	client, err := s3.NewClient(ctx, cfg.S3)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to create s3 client")
	}

	if engine != EngineDuckDB && format != parser.FormatXLSX {
		body, _, err := client.Reader(ctx, loc)
		if err != nil {
			return nil, cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to read log").
				WithContext("location", uri)
		}
		defer body.Close()
		return openStream(ctx, cfg, body, format)
	}

	path, err := client.Download(ctx, loc)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to download log").
			WithContext("location", uri)
	}
	src, err := openLocal(ctx, cfg, path, format, engine)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return &tempFileSource{Source: src, path: path}, nil
}

// Version identifies the current content of the log at location: size and
// modification time for local files, ETag and last-modified time for S3.
func Version(ctx context.Context, cfg Config, location string) (string, error) {
	if s3.IsURI(location) {
		loc, err := s3.ParseURI(location)
		if err != nil {
			return "", cerrors.Wrap(err, cerrors.CodeInvalidFormat, "invalid s3 location")
		}
		client, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			return "", cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to create s3 client")
		}
		info, err := client.Stat(ctx, loc)
		if err != nil {
			return "", cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to stat log").
				WithContext("location", location)
		}
		return fmt.Sprintf("%s-%d-%d", info.ETag, info.Size, info.LastModified.UnixNano()), nil
	}

	stat, err := os.Stat(location)
	if err != nil {
		if os.IsNotExist(err) {
			return "", cerrors.FileNotFound(location)
		}
		return "", cerrors.Wrap(err, cerrors.CodeFilePermission, "cannot stat log").
			WithContext("path", location)
	}
	return fmt.Sprintf("%d-%d", stat.Size(), stat.ModTime().UnixNano()), nil
}

// tempFileSource removes a downloaded log when closed.
type tempFileSource struct {
	Source
	path string
}

func (s *tempFileSource) Close() error {
	err := s.Source.Close()
	if rmErr := os.Remove(s.path); err == nil {
		err = rmErr
	}
	return err
}
