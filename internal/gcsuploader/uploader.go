package gcsuploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/spend-insights/internal/domain"
)

const (
	reportPrefix  = "reports"
	uploadTimeout = 2 * time.Minute
)

// UploadFile uploads a local file to a GCS bucket under the given object name.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// objectWriterFunc opens a writer for a new object. Closing the writer commits it.
type objectWriterFunc func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// ReportExporter archives insight reports as JSON objects in a bucket.
type ReportExporter struct {
	client    *storage.Client
	bucket    string
	newWriter objectWriterFunc
}

// NewReportExporter creates an exporter writing to bucket.
func NewReportExporter(ctx context.Context, bucket string) (*ReportExporter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewReportExporter: create storage client: %w", err)
	}

	return &ReportExporter{
		client: client,
		bucket: bucket,
		newWriter: func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
			w := client.Bucket(bucket).Object(object).NewWriter(ctx)
			w.ContentType = contentType
			return w
		},
	}, nil
}

// Close releases the storage client.
func (e *ReportExporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ReportObjectName is the object path of a report: reports/{user_id}/{report_id}.json.
func ReportObjectName(report *domain.InsightReport) string {
	return path.Join(reportPrefix, report.UserID, report.ReportID+".json")
}

// ExportReport writes the report and returns its gs:// URI.
func (e *ReportExporter) ExportReport(ctx context.Context, report *domain.InsightReport) (string, error) {
	if report == nil || report.UserID == "" || report.ReportID == "" {
		return "", fmt.Errorf("ExportReport: report ID and user ID are required")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	object := ReportObjectName(report)
	w := e.newWriter(ctx, e.bucket, object, "application/json")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ExportReport: encode report %s: %w", report.ReportID, err)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ExportReport: finalize upload of %s: %w", object, err)
	}

	return fmt.Sprintf("gs://%s/%s", e.bucket, object), nil
}
