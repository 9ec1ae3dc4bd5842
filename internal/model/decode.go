package model

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DecodeTimeSeries parses a JSON array of time-series records.
func DecodeTimeSeries(r io.Reader) ([]TimeSeriesRecord, error) {
	var out []TimeSeriesRecord
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "model: parse time series")
	}
	return out, nil
}

// DecodeFlows parses a JSON array of flow records.
func DecodeFlows(r io.Reader) ([]FlowRecord, error) {
	var out []FlowRecord
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "model: parse flows")
	}
	return out, nil
}

// DecodeClusters parses a JSON array of cluster records.
func DecodeClusters(r io.Reader) ([]ClusterRecord, error) {
	var out []ClusterRecord
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "model: parse clusters")
	}
	return out, nil
}

// DecodeFlowsCSV parses delimited flow rows. The first row must be a
// header; recognized columns are source, target, total_flow,
// flow_weight, avg_price_differential, flow_count, and period.
// Rows missing an endpoint are skipped with a warning.
func DecodeFlowsCSV(r io.Reader) ([]FlowRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "model: read flow header")
	}
	idx := headerIndex(header)

	var out []FlowRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "model: read flow row")
		}

		rec := FlowRecord{
			Source:               stringAt(row, idx, "source"),
			Target:               stringAt(row, idx, "target"),
			TotalFlow:            floatAt(row, idx, "total_flow"),
			AvgPriceDifferential: floatAt(row, idx, "avg_price_differential"),
			FlowCount:            intAt(row, idx, "flow_count"),
			Period:               stringAt(row, idx, "period"),
		}
		if w, ok := optionalFloatAt(row, idx, "flow_weight"); ok {
			rec.FlowWeight = &w
		}
		if rec.Source == "" || rec.Target == "" {
			zap.L().Warn("model: skipping flow row without endpoints", zap.Strings("row", row))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeTimeSeriesCSV parses delimited time-series rows. Recognized
// columns are region, month, commodity, avgUsdPrice, price, and
// conflict_intensity.
func DecodeTimeSeriesCSV(r io.Reader) ([]TimeSeriesRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "model: read time series header")
	}
	idx := headerIndex(header)

	var out []TimeSeriesRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "model: read time series row")
		}

		rec := TimeSeriesRecord{
			Region:    stringAt(row, idx, "region"),
			Month:     stringAt(row, idx, "month"),
			Commodity: stringAt(row, idx, "commodity"),
		}
		if v, ok := optionalFloatAt(row, idx, "avgusdprice"); ok {
			rec.AvgUSDPrice = &v
		}
		if v, ok := optionalFloatAt(row, idx, "price"); ok {
			rec.Price = &v
		}
		if v, ok := optionalFloatAt(row, idx, "conflict_intensity"); ok {
			rec.ConflictIntensity = &v
		}
		if rec.Region == "" {
			zap.L().Warn("model: skipping time series row without region", zap.Strings("row", row))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// headerIndex maps lowercased, trimmed column names to positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func stringAt(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func floatAt(row []string, idx map[string]int, col string) float64 {
	v, _ := optionalFloatAt(row, idx, col)
	return v
}

func optionalFloatAt(row []string, idx map[string]int, col string) (float64, bool) {
	s := stringAt(row, idx, col)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intAt(row []string, idx map[string]int, col string) int {
	s := stringAt(row, idx, col)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
