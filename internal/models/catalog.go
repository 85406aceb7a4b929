// internal/models/catalog.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TreatmentGoalConfig groups selectable treatment questions under a category.
type TreatmentGoalConfig struct {
	CategoryName string                    `json:"category_name"`
	Questions    []TreatmentQuestionConfig `json:"questions"`
}

// TreatmentQuestionConfig is a read-only catalog entry describing one selectable priority set.
type TreatmentQuestionConfig struct {
	ShortQuestionText         string     `json:"short_question_text,omitempty"`
	LongQuestionText          string     `json:"long_question_text,omitempty"`
	ScenarioOutputFieldsPaths FieldPaths `json:"scenario_output_fields_paths,omitempty"`
	ScenarioPriorities        []string   `json:"scenario_priorities,omitempty"`
	GlobalThresholds          []string   `json:"global_thresholds,omitempty"`
	Weights                   []float64  `json:"weights,omitempty"`
}

// FieldPath maps a metric key reported in result feature properties to its
// location in the conditions catalog.
type FieldPath struct {
	Metric string
	Path   []string
}

// FieldPaths is an ordered metric key -> path mapping. Object key order is
// preserved because chart series follow it.
type FieldPaths []FieldPath

func (fp *FieldPaths) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*fp = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("scenario_output_fields_paths: expected object, got %v", tok)
	}

	out := FieldPaths{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("scenario_output_fields_paths: expected key, got %v", keyTok)
		}
		var path []string
		if err := dec.Decode(&path); err != nil {
			return fmt.Errorf("scenario_output_fields_paths[%s]: %w", key, err)
		}
		out = append(out, FieldPath{Metric: key, Path: path})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*fp = out
	return nil
}

func (fp FieldPaths) MarshalJSON() ([]byte, error) {
	if fp == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range fp {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Metric)
		if err != nil {
			return nil, err
		}
		path := entry.Path
		if path == nil {
			path = []string{}
		}
		val, err := json.Marshal(path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the metric keys in mapping order.
func (fp FieldPaths) Keys() []string {
	keys := make([]string, len(fp))
	for i, entry := range fp {
		keys[i] = entry.Metric
	}
	return keys
}

// MetricInfo is the display metadata for a metric key.
type MetricInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	DataUnits   string `json:"data_units"`
	RawLayer    string `json:"raw_layer"`
}

// ConditionsConfig is the condition catalog tree used to resolve metric metadata.
type ConditionsConfig struct {
	RegionName string         `json:"region_name,omitempty"`
	Pillars    []PillarConfig `json:"pillars"`
}

type PillarConfig struct {
	PillarName  string          `json:"pillar_name"`
	DisplayName string          `json:"display_name,omitempty"`
	Elements    []ElementConfig `json:"elements"`
}

type ElementConfig struct {
	ElementName string         `json:"element_name"`
	DisplayName string         `json:"display_name,omitempty"`
	Metrics     []MetricConfig `json:"metrics"`
}

type MetricConfig struct {
	MetricName  string `json:"metric_name"`
	DisplayName string `json:"display_name,omitempty"`
	DataUnits   string `json:"data_units,omitempty"`
	RawLayer    string `json:"raw_layer,omitempty"`
}

// LookupMetric resolves a [pillar, element, metric] path.
func (c *ConditionsConfig) LookupMetric(path []string) (*MetricConfig, bool) {
	if c == nil || len(path) != 3 {
		return nil, false
	}
	for _, pillar := range c.Pillars {
		if pillar.PillarName != path[0] {
			continue
		}
		for _, element := range pillar.Elements {
			if element.ElementName != path[1] {
				continue
			}
			for i := range element.Metrics {
				if element.Metrics[i].MetricName == path[2] {
					return &element.Metrics[i], true
				}
			}
		}
	}
	return nil, false
}
