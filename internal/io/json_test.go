package io_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	dferrors "github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/io"
	"github.com/paveg/gibbon/internal/report"
	"github.com/paveg/gibbon/internal/series"
	"github.com/paveg/gibbon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSource(t *testing.T) {
	t.Run("json lines", func(t *testing.T) {
		data := `{"name": "Alice", "age": 25, "score": 1.5}

{"name": "Bob", "age": 30, "active": true}
{"name": null, "age": 35, "score": 2}
`
		df, err := io.NewJSONSource(strings.NewReader(data), io.JSONOptions{}, nil).Read(context.Background())
		require.NoError(t, err)
		defer df.Release()

		assert.Equal(t, series.Schema{
			{Name: "name", Dtype: series.Utf8},
			{Name: "age", Dtype: series.Int64},
			{Name: "score", Dtype: series.Float64},
			{Name: "active", Dtype: series.Bool},
		}, df.Schema(), "columns keep first appearance order")
		assert.Equal(t, []any{nil, int64(35), 2.0, nil}, df.Row(2))
	})

	t.Run("json array", func(t *testing.T) {
		data := `[{"id": 1}, {"id": 2}]`
		df, err := io.NewJSONSource(strings.NewReader(data), io.JSONOptions{Format: io.JSONArray}, nil).Read(context.Background())
		require.NoError(t, err)
		defer df.Release()
		assert.Equal(t, []any{int64(1), int64(2)}, testutil.ColumnValues(t, df, "id"))
	})

	t.Run("key order follows the first record that names it", func(t *testing.T) {
		data := `{"b": 1, "a": 2}` + "\n" + `{"c": 3, "a": 4, "b": 5}` + "\n"
		df, err := io.NewJSONSource(strings.NewReader(data), io.JSONOptions{}, nil).Read(context.Background())
		require.NoError(t, err)
		defer df.Release()
		assert.Equal(t, []string{"b", "a", "c"}, df.Columns())
		assert.Equal(t, []any{int64(5), int64(4), int64(3)}, df.Row(1))
	})

	t.Run("record must be an object", func(t *testing.T) {
		data := `[{"id": 1}, 2]`
		_, err := io.NewJSONSource(strings.NewReader(data), io.JSONOptions{Format: io.JSONArray}, nil).Read(context.Background())
		assert.ErrorIs(t, err, dferrors.ErrSource)
	})

	t.Run("bad line", func(t *testing.T) {
		data := "{\"id\": 1}\n{\"id\": \n"
		_, err := io.NewJSONSource(strings.NewReader(data), io.JSONOptions{}, nil).Read(context.Background())
		assert.ErrorIs(t, err, dferrors.ErrSource)
	})

	t.Run("nested values are rejected", func(t *testing.T) {
		data := `{"id": 1, "tags": ["a"]}`
		_, err := io.NewJSONSource(strings.NewReader(data), io.JSONOptions{}, nil).Read(context.Background())
		assert.ErrorIs(t, err, dferrors.ErrSource)
	})
}

func TestJSONSink_RoundTrip(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.CreateSimpleTestDataFrame(mem.Allocator)
	defer df.Release()

	for _, format := range []io.JSONFormat{io.JSONLines, io.JSONArray} {
		options := io.JSONOptions{Format: format, Codec: io.CodecGzip}
		var buf bytes.Buffer
		_, err := io.NewJSONSink(&buf, options).Write(context.Background(), df)
		require.NoError(t, err)

		back, err := io.NewJSONSource(&buf, options, mem.Allocator).Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "age"}, back.Columns())
		assert.Equal(t, []any{"Bob", int64(30)}, back.Row(1))
		back.Release()
	}

	var buf bytes.Buffer
	_, err := io.NewJSONSink(&buf, io.JSONOptions{}).Write(context.Background(), df)
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"Alice\",\"age\":25}\n{\"name\":\"Bob\",\"age\":30}\n", buf.String())
}

func TestEnvelopeSink(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.CreateSimpleTestDataFrame(mem.Allocator)
	defer df.Release()

	var buf bytes.Buffer
	result, err := io.NewEnvelopeSink(&buf, report.Options{}).Write(context.Background(), df)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)

	var decoded struct {
		Summary map[string]any `json:"summary"`
		Columns []string       `json:"columns"`
		Data    [][]any        `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(2), decoded.Summary["total_rows"])
	assert.Equal(t, float64(55), decoded.Summary["total_age"])
	assert.Equal(t, []string{"name", "age"}, decoded.Columns)
	assert.Len(t, decoded.Data, 2)
}
