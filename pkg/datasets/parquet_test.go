package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/parquet"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeQASuite writes a two-column question/answer parquet file.
func writeQASuite(t *testing.T, path string, questions, answers []string) {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "question", Type: arrow.BinaryTypes.String},
		{Name: "answer", Type: arrow.BinaryTypes.String},
	}, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for i := range questions {
		builder.Field(0).(*array.StringBuilder).Append(questions[i])
		builder.Field(1).(*array.StringBuilder).Append(answers[i])
	}

	record := builder.NewRecord()
	defer record.Release()

	table := array.NewTableFromRecords(schema, []arrow.Record{record})
	defer table.Release()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, pqarrow.WriteTable(table, f, 1024,
		parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.parquet")
	writeQASuite(t, path,
		[]string{
			"Tom has 3 apples and buys 4 more. How many does he have?",
			"What is the capital of France?",
		},
		[]string{
			"He starts with 3 and adds 4.\n#### 7",
			"Paris",
		})

	tasks, err := LoadParquet(path, DefaultParquetOptions())
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "task-0000", tasks[0].ID)
	assert.Contains(t, tasks[0].Input["question"], "3 apples")
	assert.Equal(t, []string{"7"}, tasks[0].Keywords)
	assert.Equal(t, []string{"Paris"}, tasks[1].Keywords)
}

func TestLoadParquetMaxTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.parquet")
	writeQASuite(t, path,
		[]string{"q1", "q2", "q3"},
		[]string{"#### 1", "#### 2", "#### 3"})

	opts := DefaultParquetOptions()
	opts.MaxTasks = 2

	tasks, err := LoadParquet(path, opts)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestLoadParquetMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.parquet")
	writeQASuite(t, path, []string{"q"}, []string{"a"})

	opts := DefaultParquetOptions()
	opts.AnswerColumn = "reference"

	_, err := LoadParquet(path, opts)
	assert.Error(t, err)
}

func TestLoadParquetMissingFile(t *testing.T) {
	_, err := LoadParquet(filepath.Join(t.TempDir(), "absent.parquet"), DefaultParquetOptions())
	assert.Error(t, err)
}

func TestFinalAnswer(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"gsm8k marker", "Work it out step by step.\n#### 42", "42"},
		{"marker with spaces", "reasoning #### 3.5 ", "3.5"},
		{"last line", "First line\nSecond line\nfinal", "final"},
		{"single line", "Paris", "Paris"},
		{"trailing blank lines", "answer\n\n\n", "answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, finalAnswer(tt.answer))
		})
	}
}
