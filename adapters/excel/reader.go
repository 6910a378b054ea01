package excel

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gomvdist/internal"
	"gomvdist/internal/errors"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// DataReader handles reading Excel and CSV sample files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger}
}

// ReadSample reads a header row followed by numeric data rows
func (r *DataReader) ReadSample() (*Sample, error) {
	r.logger.Debug("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput(strings.ToUpper(r.fileType) + " file not found: " + r.filePath)
	}

	var (
		rows [][]string
		err  error
	)
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.InvalidInput("sample file must have a header row and at least one data row")
	}

	return r.processRows(rows)
}

// readExcelRows reads all rows of the first sheet
func (r *DataReader) readExcelRows() ([][]string, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "failed to open Excel file")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(errors.WithCode(errors.CodeInvalidInput, err), "failed to read sheet %q", sheet)
	}
	r.logger.Debug("[DataReader] %s read in %s (%d rows)", sheet, time.Since(startTime).Round(time.Microsecond), len(rows))
	return rows, nil
}

// readCSVRows reads all CSV records
func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "failed to read CSV file")
	}
	return rows, nil
}

// processRows parses every data cell as a float. Blank trailing rows are skipped.
func (r *DataReader) processRows(rows [][]string) (*Sample, error) {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}
	cols := len(headers)

	data := make([]float64, 0, (len(rows)-1)*cols)
	observations := 0
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		if len(row) > cols {
			return nil, errors.InvalidInput("row " + strconv.Itoa(i+1) + " has more cells than the header")
		}
		for j := 0; j < cols; j++ {
			cell := ""
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.InvalidInput("row " + strconv.Itoa(i+1) + ", column " + strconv.Quote(headers[j]) + ": " + strconv.Quote(cell) + " is not a number")
			}
			data = append(data, v)
		}
		observations++
	}
	if observations == 0 {
		return nil, errors.InvalidInput("sample file has no data rows")
	}

	r.logger.Debug("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), cols, observations)

	return &Sample{
		Headers: headers,
		Data:    mat.NewDense(observations, cols, data),
	}, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
