// Package archive writes the final result of a run — rank 0's best genome
// and a manifest describing the run that produced it — to local disk (the
// mandatory sink) and, optionally, to a GCS bucket (the supplemented,
// configurable sink).
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/distcgp/distcgp/internal/genome"
	"github.com/distcgp/distcgp/internal/telemetry"
)

// Manifest records the parameters and outcome of a completed run,
// written alongside the genome artifact.
type Manifest struct {
	RunID          string    `json:"run_id"`
	CompletedAt    time.Time `json:"completed_at"`
	WorldSize      uint32    `json:"world_size"`
	SubPopCount    uint32    `json:"sub_pop_count"`
	GenomeCount    uint32    `json:"genome_count"`
	GenomeLength   uint32    `json:"genome_length"`
	TotalCycles    int       `json:"total_cycles"`
	BestFitness    uint32    `json:"best_fitness"`
	BestDomainIdx  uint32    `json:"best_domain_index"`
}

// GCSConfig configures the optional upload sink. A zero-value GCSConfig
// disables the sink.
type GCSConfig struct {
	// Bucket is the destination bucket name. Empty disables GCS upload.
	Bucket string

	// Prefix is prepended to every uploaded object name.
	Prefix string

	// CredentialsFile is a path to a service-account key. Empty uses the
	// environment's default application credentials.
	CredentialsFile string
}

// Writer writes the final genome artifact and manifest, mirroring
// spec's mandatory local write with an optional GCS mirror of the same
// pair of files.
type Writer struct {
	localDir string
	gcs      GCSConfig
}

// New builds a Writer that writes into localDir (created if needed) and,
// if gcs.Bucket is set, mirrors the same files to GCS.
func New(localDir string, gcs GCSConfig) *Writer {
	return &Writer{localDir: localDir, gcs: gcs}
}

// ArchiveLogFile copies the run log at logPath into the local archive
// directory as "run.log" and uploads it alongside the genome and
// manifest if GCS is configured. Intended for rank 0's pkg/logging file
// (see Logger.FilePath) once a run completes, so the output directory
// is self-contained rather than depending on wherever stderr landed.
func (w *Writer) ArchiveLogFile(ctx context.Context, logPath string) error {
	ctx, span := telemetry.StartSpan(ctx, "distcgp.archive", "Writer.ArchiveLogFile")
	defer span.End()

	if err := os.MkdirAll(w.localDir, 0o750); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("archive: create directory %s: %w", w.localDir, err)
	}

	dest := filepath.Join(w.localDir, "run.log")
	if err := copyFile(logPath, dest); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("archive: copy log file: %w", err)
	}

	if w.gcs.Bucket == "" {
		telemetry.SetSpanOK(span)
		return nil
	}

	var opts []option.ClientOption
	if w.gcs.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(w.gcs.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("archive: create GCS client: %w", err)
	}
	defer client.Close()

	objectName := filepath.Join(w.gcs.Prefix, "run.log")
	if err := uploadFile(ctx, client, w.gcs.Bucket, objectName, dest); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("archive: upload run.log: %w", err)
	}
	telemetry.SetSpanOK(span)
	return nil
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// WriteFinalResult writes best to "outputGenome.op" and manifest as JSON
// alongside it in the local directory, then uploads both to GCS if
// configured. The local write always happens and always succeeds or
// returns an error; the GCS upload, if configured, is attempted after.
func (w *Writer) WriteFinalResult(ctx context.Context, best *genome.Genome, manifest Manifest) error {
	ctx, span := telemetry.StartSpan(ctx, "distcgp.archive", "Writer.WriteFinalResult")
	defer span.End()

	if err := os.MkdirAll(w.localDir, 0o750); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("archive: create directory %s: %w", w.localDir, err)
	}

	genomePath := filepath.Join(w.localDir, "outputGenome.op")
	if err := best.WriteFile(genomePath); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("archive: write genome: %w", err)
	}

	manifestPath := filepath.Join(w.localDir, "manifest.json")
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("archive: marshal manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o640); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("archive: write manifest: %w", err)
	}

	if w.gcs.Bucket == "" {
		telemetry.SetSpanOK(span)
		return nil
	}

	if err := w.uploadToGCS(ctx, genomePath, manifestPath); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetSpanOK(span)
	return nil
}

func (w *Writer) uploadToGCS(ctx context.Context, genomePath, manifestPath string) error {
	var opts []option.ClientOption
	if w.gcs.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(w.gcs.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("archive: create GCS client: %w", err)
	}
	defer client.Close()

	for _, path := range []string{genomePath, manifestPath} {
		objectName := filepath.Join(w.gcs.Prefix, filepath.Base(path))
		if err := uploadFile(ctx, client, w.gcs.Bucket, objectName, path); err != nil {
			return fmt.Errorf("archive: upload %s: %w", path, err)
		}
	}
	return nil
}

func uploadFile(ctx context.Context, client *storage.Client, bucket, objectName, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	obj := client.Bucket(bucket).Object(objectName)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, f); err != nil {
		writer.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	return writer.Close()
}
