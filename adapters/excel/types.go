package excel

import "gonum.org/v1/gonum/mat"

// Sample is a numeric observation matrix read from a spreadsheet
type Sample struct {
	Headers []string   // Column headers
	Data    *mat.Dense // One observation per row
}

// Observations returns the number of data rows
func (s *Sample) Observations() int {
	r, _ := s.Data.Dims()
	return r
}
