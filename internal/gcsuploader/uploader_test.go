package gcsuploader

import (
	"testing"
	"time"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://bucket/statements/2024/03/15/doc.pdf", wantBucket: "bucket", wantObject: "statements/2024/03/15/doc.pdf"},
		{uri: "gs://bucket/file.pdf", wantBucket: "bucket", wantObject: "file.pdf"},
		{uri: "s3://bucket/file.pdf", wantErr: true},
		{uri: "gs://bucket", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "gs:///file.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGCSURI failed: %v", err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("Got (%q, %q), want (%q, %q)", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestObjectName(t *testing.T) {
	ts := time.Date(2024, 3, 5, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))

	got := ObjectName("doc-123", ts)

	if want := "statements/2024/03/06/doc-123.pdf"; got != want {
		t.Errorf("ObjectName = %q, want %q", got, want)
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/file.pdf": "file.pdf",
		"gs://bucket/file.pdf":        "file.pdf",
		"gs://bucket":                 "bucket",
	}
	for uri, want := range tests {
		if got := ExtractFilenameFromGCSURI(uri); got != want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", uri, got, want)
		}
	}
}
