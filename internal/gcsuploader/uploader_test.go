package gcsuploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferWriter struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (b *bufferWriter) Close() error {
	b.closed = true
	return b.closeErr
}

func TestExportReport(t *testing.T) {
	buf := &bufferWriter{}
	var gotBucket, gotObject, gotType string
	e := &ReportExporter{
		bucket: "insights-archive",
		newWriter: func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
			gotBucket, gotObject, gotType = bucket, object, contentType
			return buf
		},
	}

	uri, err := e.ExportReport(context.Background(), &domain.InsightReport{ReportID: "r1", UserID: "user-1", TransactionCount: 3})
	require.NoError(t, err)

	assert.Equal(t, "gs://insights-archive/reports/user-1/r1.json", uri)
	assert.Equal(t, "insights-archive", gotBucket)
	assert.Equal(t, "reports/user-1/r1.json", gotObject)
	assert.Equal(t, "application/json", gotType)
	assert.True(t, buf.closed)

	var decoded domain.InsightReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.TransactionCount)
}

func TestExportReportErrors(t *testing.T) {
	e := &ReportExporter{
		bucket: "b",
		newWriter: func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
			return &bufferWriter{closeErr: errors.New("precondition failed")}
		},
	}

	_, err := e.ExportReport(context.Background(), &domain.InsightReport{ReportID: "r1"})
	assert.ErrorContains(t, err, "required")

	_, err = e.ExportReport(context.Background(), &domain.InsightReport{ReportID: "r1", UserID: "u"})
	assert.ErrorContains(t, err, "precondition failed")
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://bucket/folder/file.json", wantBucket: "bucket", wantObject: "folder/file.json"},
		{uri: "gs://bucket/file.json", wantBucket: "bucket", wantObject: "file.json"},
		{uri: "gs://bucket", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "s3://bucket/file.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	assert.Equal(t, "file.json", ExtractFilenameFromGCSURI("gs://bucket/folder/file.json"))
	assert.Equal(t, "bucket", ExtractFilenameFromGCSURI("gs://bucket"))
}
