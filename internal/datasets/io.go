package datasets

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/models"
)

// ReadCSV parses headerless CSV rows against the description. Rows are
// labelled with their line position.
func ReadCSV(r io.Reader, description *models.DataDescription, opts ...Option) (*Tabular, error) {
	if description == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidSchema, "data description cannot be nil")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = description.NumColumns()

	var rows []models.Row
	for line := 1; ; line++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat,
				fmt.Sprintf("failed to read CSV line %d", line))
		}

		values := make(models.Row, len(fields))
		for col, raw := range fields {
			v, err := description.ParseValue(col, raw)
			if err != nil {
				return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat,
					fmt.Sprintf("line %d", line))
			}
			values[col] = v
		}
		rows = append(rows, values)
	}

	return NewTabular(description, rows, opts...)
}

// ReadCSVString parses CSV text against the description
func ReadCSVString(data string, description *models.DataDescription, opts ...Option) (*Tabular, error) {
	return ReadCSV(strings.NewReader(data), description, opts...)
}

// WriteCSVString renders a dataset as CSV text
func WriteCSVString(t *Tabular) (string, error) {
	var sb strings.Builder
	if err := t.WriteCSV(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Load reads <path>.json and <path>.csv
func Load(path string, opts ...Option) (*Tabular, error) {
	schema, err := os.ReadFile(path + ".json")
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to read data description")
	}
	description, err := models.ParseDataDescription(schema)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path + ".csv")
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to open dataset")
	}
	defer f.Close()

	return ReadCSV(f, description, opts...)
}

// Save writes <path>.json and <path>.csv
func Save(t *Tabular, path string) error {
	schema, err := json.MarshalIndent(t.description, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to encode data description")
	}
	if err := os.WriteFile(path+".json", schema, 0644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to write data description")
	}

	f, err := os.Create(path + ".csv")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to create dataset file")
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(w io.Writer, t *Tabular) error {
	writer := csv.NewWriter(w)
	record := make([]string, t.description.NumColumns())
	for _, r := range t.rows {
		for col, v := range r.values {
			record[col] = t.description.FormatValue(col, v)
		}
		if len(record) == 1 && record[0] == "" {
			// a bare empty line would be skipped on read
			writer.Flush()
			if _, err := io.WriteString(w, `""`+"\n"); err != nil {
				return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to write CSV row")
			}
			continue
		}
		if err := writer.Write(record); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to write CSV row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to flush CSV")
	}
	return nil
}
