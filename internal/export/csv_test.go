package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/leapstack-labs/clinsight/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVBasics(t *testing.T) {
	p := &core.Preview{
		Columns: []string{"name", "count"},
		Rows: [][]core.Cell{
			{"김철수", float64(3)},
			{nil, float64(0)},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, p))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\xEF\xBB\xBF"), "missing UTF-8 BOM")
	assert.Contains(t, out, "name,count\r\n")
	assert.Contains(t, out, "김철수,3\r\n")
	assert.Contains(t, out, ",0\r\n")
}

func TestWriteCSVEscaping(t *testing.T) {
	p := &core.Preview{
		Columns: []string{"c"},
		Rows:    [][]core.Cell{{"a,\"b\"\nc"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, p))

	// The tricky cell escapes to a quoted field with doubled quotes and
	// a literal newline inside the quotes.
	assert.Contains(t, buf.String(), "\"a,\"\"b\"\"\nc\"")
}

func TestWriteCSVRoundTrip(t *testing.T) {
	original := "a,\"b\"\nc"
	p := &core.Preview{
		Columns: []string{"c"},
		Rows:    [][]core.Cell{{original}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, p))

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), "\xEF\xBB\xBF")))
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, original, records[1][0])
}

func TestWriteCSVNilPreview(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteCSV(&buf, nil))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "월별_내원_환자_수.csv", Filename("월별 내원 환자 수?"))
	got := Filename("???")
	assert.True(t, strings.HasPrefix(got, "result_"))
	assert.True(t, strings.HasSuffix(got, ".csv"))
}
