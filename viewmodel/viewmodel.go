// Package viewmodel turns the raw inference result into a stable,
// UI-ready aggregate view. The upstream payload comes in two known
// shapes with no version field, so the shape is sniffed once here by key
// presence and never leaks past this package untyped.
package viewmodel

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

type Shape string

const (
	ShapeLegacy Shape = "legacy"
	ShapeRich   Shape = "rich"
)

// ClassCount is one row of a label frequency table.
type ClassCount struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ClusterProfile describes one cluster from the rich result shape.
type ClusterProfile struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
	Label   string `json:"label"`
}

// PredictionRow is one scored window from the predictions preview.
type PredictionRow struct {
	WindowID   int     `json:"window_id"`
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	ClusterID  int     `json:"cluster_id"`
}

type Recommendation struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// ConfidenceBuckets partitions preview confidences into four fixed,
// non-overlapping ranges. Boundaries are lower-inclusive; 1.0 lands in
// High.
type ConfidenceBuckets struct {
	High    int `json:"high"`     // [0.8, 1.0]
	Medium  int `json:"medium"`   // [0.6, 0.8)
	Low     int `json:"low"`      // [0.4, 0.6)
	VeryLow int `json:"very_low"` // [0, 0.4)
}

// ViewModel is the derived representation. Every field defaults to its
// zero value when the source payload lacks it.
type ViewModel struct {
	Shape                Shape             `json:"shape"`
	TotalWindows         int               `json:"total_windows"`
	DominantWorkloadType string            `json:"dominant_workload_type"`
	Classes              []ClassCount      `json:"classes"`
	Clusters             []ClassCount      `json:"clusters"`
	ClusterProfiles      []ClusterProfile  `json:"cluster_profiles"`
	Preview              []PredictionRow   `json:"preview"`
	Recommendation       Recommendation    `json:"recommendation"`
	Message              string            `json:"message"`
	AvgConfidence        float64           `json:"avg_confidence"`
	Buckets              ConfidenceBuckets `json:"buckets"`
}

// Derive computes the view model from a raw result payload. It is pure
// and total: malformed or partial input yields zero-valued fields, never
// an error.
func Derive(raw json.RawMessage) ViewModel {
	raw = bytes.TrimSpace(raw)

	// An array result means "take the first element"
	if len(raw) > 0 && raw[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil || len(elems) == 0 {
			return ViewModel{Shape: ShapeLegacy}
		}
		raw = elems[0]
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ViewModel{Shape: ShapeLegacy}
	}

	if _, ok := probe["summary"]; ok {
		return deriveRich(probe)
	}
	return deriveLegacy(probe)
}

func deriveLegacy(probe map[string]json.RawMessage) ViewModel {
	classification := numberSlice(probe["classification"])
	clusters := numberSlice(probe["clusters"])

	return ViewModel{
		Shape:        ShapeLegacy,
		TotalWindows: len(classification),
		Classes:      BuildFrequencyTable(classification),
		Clusters:     BuildFrequencyTable(clusters),
	}
}

func deriveRich(probe map[string]json.RawMessage) ViewModel {
	vm := ViewModel{Shape: ShapeRich}

	var summary struct {
		TotalWindows         float64         `json:"total_windows"`
		DominantWorkloadType string          `json:"dominant_workload_type"`
		ClassDistribution    json.RawMessage `json:"class_distribution"`
	}
	if err := json.Unmarshal(probe["summary"], &summary); err == nil {
		vm.TotalWindows = int(summary.TotalWindows)
		vm.DominantWorkloadType = summary.DominantWorkloadType
		vm.Classes = parseDistribution(summary.ClassDistribution)
	}

	vm.ClusterProfiles = parseClusterProfiles(probe["cluster_profiles"])

	if raw, ok := probe["predictions_preview"]; ok {
		var preview []PredictionRow
		if err := json.Unmarshal(raw, &preview); err == nil {
			vm.Preview = preview
		}
	}

	if raw, ok := probe["recommendation"]; ok {
		_ = json.Unmarshal(raw, &vm.Recommendation)
	}
	if raw, ok := probe["message"]; ok {
		_ = json.Unmarshal(raw, &vm.Message)
	}

	confidences := make([]float64, 0, len(vm.Preview))
	for _, row := range vm.Preview {
		confidences = append(confidences, row.Confidence)
	}
	vm.AvgConfidence = AverageConfidence(confidences)
	vm.Buckets = CountConfidenceBuckets(confidences)

	return vm
}

// BuildFrequencyTable counts distinct values in the input and returns one
// row per value, sorted numerically ascending. Percentages are computed
// against the input length and rounded to one decimal; an empty input
// yields an empty table.
func BuildFrequencyTable(values []float64) []ClassCount {
	counts := make(map[float64]int)
	order := make([]float64, 0)
	for _, v := range values {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.Float64s(order)

	total := len(values)
	table := make([]ClassCount, 0, len(order))
	for _, v := range order {
		table = append(table, ClassCount{
			Label:   formatNumber(v),
			Count:   counts[v],
			Percent: percentage(counts[v], total),
		})
	}
	return table
}

// AverageConfidence is the arithmetic mean, 0 for an empty input.
func AverageConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return sum / float64(len(confidences))
}

// CountConfidenceBuckets assigns every confidence to exactly one bucket.
func CountConfidenceBuckets(confidences []float64) ConfidenceBuckets {
	var b ConfidenceBuckets
	for _, c := range confidences {
		switch {
		case c >= 0.8:
			b.High++
		case c >= 0.6:
			b.Medium++
		case c >= 0.4:
			b.Low++
		default:
			b.VeryLow++
		}
	}
	return b
}

// parseDistribution reads a label->count object preserving the object's
// key order, which encoding/json maps would scramble.
func parseDistribution(raw json.RawMessage) []ClassCount {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}

	var table []ClassCount
	var total int
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil
		}
		count := 0
		if n, ok := value.(float64); ok {
			count = int(n)
		}

		table = append(table, ClassCount{Label: key, Count: count})
		total += count
	}

	for i := range table {
		table[i].Percent = percentage(table[i].Count, total)
	}
	return table
}

func parseClusterProfiles(raw json.RawMessage) []ClusterProfile {
	var profiles map[string]struct {
		Members json.RawMessage `json:"members"`
		Label   string          `json:"label"`
	}
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil
	}

	result := make([]ClusterProfile, 0, len(profiles))
	for id, p := range profiles {
		result = append(result, ClusterProfile{
			ID:      id,
			Members: memberCount(p.Members),
			Label:   p.Label,
		})
	}

	// Map iteration order is random; sort for deterministic output
	sort.Slice(result, func(i, j int) bool {
		a, aErr := strconv.Atoi(result[i].ID)
		b, bErr := strconv.Atoi(result[j].ID)
		if aErr == nil && bErr == nil {
			return a < b
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// memberCount accepts either a member count or a member list.
func memberCount(raw json.RawMessage) int {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return len(list)
	}
	return 0
}

func numberSlice(raw json.RawMessage) []float64 {
	var values []float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
