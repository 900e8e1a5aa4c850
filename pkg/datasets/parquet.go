package datasets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/parquet/file"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/evaluation"
)

// ParquetOptions maps a question/answer Parquet dataset onto evaluation
// tasks.
type ParquetOptions struct {
	// QuestionColumn and AnswerColumn name the two string columns to read.
	QuestionColumn string
	AnswerColumn   string

	// InputKey is the task input key the question is stored under.
	InputKey string

	// MaxTasks caps the number of rows converted; zero takes every row.
	MaxTasks int

	// Timeout applied to every task; zero uses the evaluator's default.
	Timeout time.Duration
}

// DefaultParquetOptions reads the Hugging Face GSM8K column layout.
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		QuestionColumn: "question",
		AnswerColumn:   "answer",
		InputKey:       "question",
	}
}

// LoadParquet converts a question/answer Parquet dataset into a task suite.
// Each row becomes one task whose pass keyword is the reference answer's
// final line ("#### 42" rows reduce to "42").
func LoadParquet(path string, opts ParquetOptions) ([]evaluation.EvaluationTask, error) {
	if opts.QuestionColumn == "" || opts.AnswerColumn == "" {
		return nil, errors.New(errors.InvalidInput, "question and answer columns are required")
	}
	if opts.InputKey == "" {
		opts.InputKey = "question"
	}

	reader, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ResourceNotFound, "open parquet file "+path)
	}
	defer reader.Close()

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "read parquet file "+path)
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "read parquet schema")
	}

	questionIndices := schema.FieldIndices(opts.QuestionColumn)
	answerIndices := schema.FieldIndices(opts.AnswerColumn)
	if len(questionIndices) == 0 || len(answerIndices) == 0 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "required columns not found in parquet schema"),
			errors.Fields{
				"question_column": opts.QuestionColumn,
				"answer_column":   opts.AnswerColumn,
			})
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "read parquet table")
	}
	defer table.Release()

	questions, err := stringColumn(table.Column(questionIndices[0]).Data().Chunks())
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "column "+opts.QuestionColumn)
	}
	answers, err := stringColumn(table.Column(answerIndices[0]).Data().Chunks())
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "column "+opts.AnswerColumn)
	}

	total := len(questions)
	if opts.MaxTasks > 0 && opts.MaxTasks < total {
		total = opts.MaxTasks
	}

	tasks := make([]evaluation.EvaluationTask, 0, total)
	for i := 0; i < total; i++ {
		tasks = append(tasks, evaluation.EvaluationTask{
			ID:       fmt.Sprintf("task-%04d", i),
			Input:    map[string]interface{}{opts.InputKey: questions[i]},
			Keywords: []string{finalAnswer(answers[i])},
			Timeout:  opts.Timeout,
		})
	}
	return tasks, nil
}

// stringColumn flattens a chunked arrow column into a string slice.
func stringColumn(chunks []arrow.Array) ([]string, error) {
	var values []string
	for _, chunk := range chunks {
		strs, ok := chunk.(*array.String)
		if !ok {
			return nil, fmt.Errorf("expected string column, got %s", chunk.DataType())
		}
		for i := 0; i < strs.Len(); i++ {
			values = append(values, strs.Value(i))
		}
	}
	return values, nil
}

// finalAnswer reduces a reference answer to its decisive token: the text
// after a "####" marker when present (the GSM8K convention), otherwise the
// last non-empty line.
func finalAnswer(answer string) string {
	if idx := strings.LastIndex(answer, "####"); idx >= 0 {
		return strings.TrimSpace(answer[idx+len("####"):])
	}

	lines := strings.Split(strings.TrimSpace(answer), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return strings.TrimSpace(answer)
}
