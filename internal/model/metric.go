package model

import "time"

// Metric is a tracked quantity. When CollectionParams is set, the
// generator creates a "collect value" task each period.
type Metric struct {
	Entity

	WorkspaceRefID   string     `json:"workspace_ref_id"`
	Key              string     `json:"key"`
	Name             string     `json:"name"`
	CollectionParams *GenParams `json:"collection_params,omitempty"`
}

// NewMetric validates and builds a metric.
func NewMetric(workspaceRefID, key, name string, collection *GenParams, src EventSource, now time.Time) (Metric, error) {
	k, err := ValidateKey(key)
	if err != nil {
		return Metric{}, err
	}
	n, err := ValidateName(name)
	if err != nil {
		return Metric{}, err
	}
	if collection != nil {
		if err := collection.Validate(); err != nil {
			return Metric{}, err
		}
	}
	m := Metric{WorkspaceRefID: workspaceRefID, Key: k, Name: n, CollectionParams: collection}
	m.Entity = newEntity(EntityMetric, src, now, m)
	return m, nil
}

// ChangeCollectionParams replaces the collection schedule; nil stops it.
func (m Metric) ChangeCollectionParams(params *GenParams, src EventSource, now time.Time) (Metric, error) {
	if params != nil {
		if err := params.Validate(); err != nil {
			return m, err
		}
	}
	if (params == nil && m.CollectionParams == nil) ||
		(params != nil && m.CollectionParams != nil && genParamsEqual(*params, *m.CollectionParams)) {
		return m, nil
	}
	m.CollectionParams = params
	m.Entity = m.record(EventUpdated, src, now, map[string]any{"collection_params": params})
	return m, nil
}

// Archive marks the metric archived.
func (m Metric) Archive(src EventSource, now time.Time) Metric {
	m.Entity = m.archive(src, now)
	return m
}
