package collector

import (
	"strconv"
	"time"
)

// rangeResponse is a Prometheus range-query API response.
type rangeResponse struct {
	Status string    `json:"status"`
	Data   rangeData `json:"data"`
	Error  string    `json:"error,omitempty"`
}

type rangeData struct {
	ResultType string         `json:"resultType"`
	Result     []matrixSeries `json:"result"`
}

type matrixSeries struct {
	Metric map[string]string `json:"metric"`
	Values []samplePair      `json:"values"`
}

// samplePair is [timestamp, value] as Prometheus encodes it.
type samplePair [2]interface{}

func (sp samplePair) Timestamp() time.Time {
	if len(sp) < 1 {
		return time.Time{}
	}
	if ts, ok := sp[0].(float64); ok {
		return time.Unix(int64(ts), 0)
	}
	return time.Time{}
}

func (sp samplePair) Value() float64 {
	if len(sp) < 2 {
		return 0
	}
	switch v := sp[1].(type) {
	case string:
		val, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return val
	case float64:
		return v
	}
	return 0
}
