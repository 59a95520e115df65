package io_test

import (
	"bytes"
	goio "io"
	"strings"
	"testing"

	"github.com/paveg/gibbon/internal/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	payload := strings.Repeat("id,name,email\n1,Alice,alice@example.com\n", 200)

	for _, codec := range []io.Codec{io.CodecNone, io.CodecGzip, io.CodecZstd, io.CodecSnappy, io.CodecLZ4, io.CodecBrotli} {
		t.Run(string(codec), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := codec.NewWriter(&buf)
			require.NoError(t, err)
			_, err = goio.WriteString(w, payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if codec != io.CodecNone {
				assert.Less(t, buf.Len(), len(payload), "repetitive input compresses")
			}

			r, err := codec.NewReader(&buf)
			require.NoError(t, err)
			defer r.Close()
			got, err := goio.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestParseCodec(t *testing.T) {
	tests := []struct {
		name    string
		want    io.Codec
		wantErr bool
	}{
		{"", io.CodecNone, false},
		{"none", io.CodecNone, false},
		{"GZIP", io.CodecGzip, false},
		{"zstd", io.CodecZstd, false},
		{"lz4", io.CodecLZ4, false},
		{"rar", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ParseCodec(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAndCodecForPath(t *testing.T) {
	tests := []struct {
		path   string
		format io.Format
		codec  io.Codec
	}{
		{"people.csv", io.FormatCSV, io.CodecNone},
		{"people.csv.gz", io.FormatCSV, io.CodecGzip},
		{"/data/out.JSONL.zst", io.FormatJSON, io.CodecZstd},
		{"events.ndjson.br", io.FormatJSON, io.CodecBrotli},
		{"t.parquet", io.FormatParquet, io.CodecNone},
		{"dump.tsv.lz4", io.FormatCSV, io.CodecLZ4},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, err := io.FormatForPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.codec, io.CodecForPath(tt.path))
		})
	}

	_, err := io.FormatForPath("notes.txt")
	assert.Error(t, err)
}
