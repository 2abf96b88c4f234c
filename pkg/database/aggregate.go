package database

import (
	"math"
	"reflect"
)

// Summary aggregates the values of one column over a scan. Array and
// slice values contribute each element.
type Summary struct {
	Column string
	// Rows counts rows where the column was present and not nil.
	Rows    int64
	Numeric bool

	count int64
	min   float64
	max   float64
	sum   float64
}

// Min returns the smallest numeric value, or NaN if none was seen.
func (s *Summary) Min() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.min
}

// Max returns the largest numeric value, or NaN if none was seen.
func (s *Summary) Max() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.max
}

// Mean returns the average numeric value, or NaN if none was seen.
func (s *Summary) Mean() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.sum / float64(s.count)
}

// Values returns how many numeric values were aggregated.
func (s *Summary) Values() int64 {
	return s.count
}

// Add folds one column value into the summary.
func (s *Summary) Add(v interface{}) {
	if v == nil {
		return
	}
	s.Rows++
	s.add(reflect.ValueOf(v))
}

func (s *Summary) add(v reflect.Value) {
	switch v.Kind() {
	case reflect.Array, reflect.Slice:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		for i := 0; i < v.Len(); i++ {
			s.add(v.Index(i))
		}
	case reflect.Interface, reflect.Pointer:
		if !v.IsNil() {
			s.add(v.Elem())
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s.observe(float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		s.observe(float64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		s.observe(v.Float())
	}
}

func (s *Summary) observe(f float64) {
	s.Numeric = true
	if s.count == 0 || f < s.min {
		s.min = f
	}
	if s.count == 0 || f > s.max {
		s.max = f
	}
	s.sum += f
	s.count++
}

// Summarize scans table once and returns one summary per column, in the
// order given.
func Summarize(table Table, columns []string) ([]*Summary, error) {
	iter, err := table.Iterate()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	summaries := make([]*Summary, len(columns))
	for i, c := range columns {
		summaries[i] = &Summary{Column: c}
	}

	for iter.Next() {
		row := iter.Row()
		for _, s := range summaries {
			if val, err := row.Get(s.Column); err == nil {
				s.Add(val)
			}
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return summaries, nil
}
