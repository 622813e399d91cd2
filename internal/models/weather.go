package models

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MissingValue is the source-file sentinel for an absent measurement
const MissingValue = -9999

// StationIDLength is the width of the weather_station CHAR column
const StationIDLength = 11

// DateLayout is the on-disk date format of weather files
const DateLayout = "20060102"

// APIDateLayout is the date format used by the read API
const APIDateLayout = "2006-01-02"

// Reading is one station's single-day observation as stored.
// Values are raw tenths; NULL (nil) marks a missing measurement.
type Reading struct {
	RecordDate     time.Time `db:"record_date"`
	WeatherStation string    `db:"weather_station"`
	MaxTemp        *int64    `db:"max_temp"`      // 0.1°C
	MinTemp        *int64    `db:"min_temp"`      // 0.1°C
	Precipitation  *int64    `db:"precipitation"` // 0.1mm
}

// StationYearStats holds the yearly averages of a station's raw readings
type StationYearStats struct {
	WeatherStation   string   `db:"weather_station"`
	RecordYear       int      `db:"record_year"`
	AvgMinTemp       *float64 `db:"avg_min_temp"`
	AvgMaxTemp       *float64 `db:"avg_max_temp"`
	AvgPrecipitation *float64 `db:"avg_precipitation"`
}

// IngestionLogEntry is one append-only audit row per ingested file
type IngestionLogEntry struct {
	StartTime        time.Time `db:"start_time"`
	EndTime          time.Time `db:"end_time"`
	RecordsProcessed int       `db:"records"`
	WeatherStation   string    `db:"weather_station"`
}

// YieldRecord is the total crop yield for a year
type YieldRecord struct {
	RecordYear int `db:"record_year" json:"record_year"`
	TotalYield int `db:"total_yield" json:"total_yield"`
}

// ReadingView is a reading in reported units: °C and cm
type ReadingView struct {
	RecordDate     string   `json:"record_date"`
	WeatherStation string   `json:"weather_station"`
	MaxTemp        *float64 `json:"max_temp"`
	MinTemp        *float64 `json:"min_temp"`
	Precipitation  *float64 `json:"precipitation"`
}

// StatsView is a yearly stats row in reported units: °C and cm
type StatsView struct {
	WeatherStation   string   `json:"weather_station"`
	RecordYear       int      `json:"record_year"`
	AvgMinTemp       *float64 `json:"avg_min_temp"`
	AvgMaxTemp       *float64 `json:"avg_max_temp"`
	AvgPrecipitation *float64 `json:"avg_precipitation"`
}

// View converts stored tenths into reported units
func (r Reading) View() ReadingView {
	return ReadingView{
		RecordDate:     r.RecordDate.Format(APIDateLayout),
		WeatherStation: strings.TrimSpace(r.WeatherStation),
		MaxTemp:        scaleInt(r.MaxTemp, 10),
		MinTemp:        scaleInt(r.MinTemp, 10),
		Precipitation:  scaleInt(r.Precipitation, 100), // 0.1mm to cm
	}
}

// View converts stored tenths into reported units
func (s StationYearStats) View() StatsView {
	return StatsView{
		WeatherStation:   strings.TrimSpace(s.WeatherStation),
		RecordYear:       s.RecordYear,
		AvgMinTemp:       scaleFloat(s.AvgMinTemp, 10),
		AvgMaxTemp:       scaleFloat(s.AvgMaxTemp, 10),
		AvgPrecipitation: scaleFloat(s.AvgPrecipitation, 100),
	}
}

func scaleInt(v *int64, div float64) *float64 {
	if v == nil {
		return nil
	}
	out := float64(*v) / div
	return &out
}

func scaleFloat(v *float64, div float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v / div
	return &out
}

// RawWeatherRecord represents a single line from input data files
type RawWeatherRecord struct {
	Date                 string
	MaxTemperatureTenths int64 // may be -9999
	MinTemperatureTenths int64 // may be -9999
	PrecipitationTenths  int64 // may be -9999
}

// ToReading converts a raw record into a Reading, mapping -9999 to NULL
func (r *RawWeatherRecord) ToReading(stationID string) (*Reading, error) {
	date, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return nil, &ValidationError{
			Field:   "date",
			Value:   r.Date,
			Message: "invalid date format, expected YYYYMMDD",
		}
	}

	return &Reading{
		RecordDate:     date,
		WeatherStation: stationID,
		MaxTemp:        nullable(r.MaxTemperatureTenths),
		MinTemp:        nullable(r.MinTemperatureTenths),
		Precipitation:  nullable(r.PrecipitationTenths),
	}, nil
}

func nullable(v int64) *int64 {
	if v == MissingValue {
		return nil
	}
	return &v
}

// ParseWeatherLine parses "YYYYMMDD max min precip" separated by tabs or spaces
func ParseWeatherLine(line string) (*RawWeatherRecord, error) {
	parts := strings.Fields(line)
	if len(parts) != 4 {
		return nil, &ValidationError{
			Field:   "line",
			Value:   line,
			Message: fmt.Sprintf("invalid line format: expected 4 fields, got %d", len(parts)),
		}
	}

	values := make([]int64, 3)
	names := [3]string{"max_temp", "min_temp", "precipitation"}
	for i := range values {
		v, err := strconv.ParseInt(parts[i+1], 10, 64)
		if err != nil {
			return nil, &ValidationError{
				Field:   names[i],
				Value:   parts[i+1],
				Message: fmt.Sprintf("invalid %s: not an integer", names[i]),
			}
		}
		values[i] = v
	}

	return &RawWeatherRecord{
		Date:                 parts[0],
		MaxTemperatureTenths: values[0],
		MinTemperatureTenths: values[1],
		PrecipitationTenths:  values[2],
	}, nil
}

// ParseYieldLine parses "year total_yield"
func ParseYieldLine(line string) (*YieldRecord, error) {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return nil, &ValidationError{
			Field:   "line",
			Value:   line,
			Message: fmt.Sprintf("invalid line format: expected 2 fields, got %d", len(parts)),
		}
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 || year > 32767 {
		return nil, &ValidationError{
			Field:   "record_year",
			Value:   parts[0],
			Message: "invalid year",
		}
	}

	total, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &ValidationError{
			Field:   "total_yield",
			Value:   parts[1],
			Message: "invalid total yield: not an integer",
		}
	}

	return &YieldRecord{RecordYear: year, TotalYield: total}, nil
}

// StationIDFromPath derives the station code from a data file name
func StationIDFromPath(path string) (string, error) {
	name := filepath.Base(path)
	id := strings.TrimSuffix(name, filepath.Ext(name))
	if id == "" || len(id) > StationIDLength {
		return "", &ValidationError{
			Field:   "weather_station",
			Value:   id,
			Message: fmt.Sprintf("station id must be 1-%d characters", StationIDLength),
		}
	}
	return id, nil
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
