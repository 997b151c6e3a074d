package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
)

// Wire keys for GPU sample objects, matching nvidia-smi query field names.
const (
	keyIndex       = "index"
	keyUtilization = "utilization.gpu"
	keyMemoryUsed  = "memory.used"
	keyMemoryTotal = "memory.total"
	keyTemperature = "temperature.gpu"
	keyName        = "name"
	keyStatus      = "status"
	keyError       = "error"
	keyHelp        = "help"
	keyMessage     = "message"
)

// UnknownGPUName is used when a sample carries no name.
const UnknownGPUName = "Unknown GPU"

// StatusError is the Status value given to server error replies.
const StatusError = "error"

// MessageKind tags the variant held by a Message.
type MessageKind int

const (
	// KindBatch carries zero or more device samples.
	KindBatch MessageKind = iota
	// KindStatus carries a server status reply.
	KindStatus
)

// String returns a human-readable kind name.
func (k MessageKind) String() string {
	switch k {
	case KindBatch:
		return "batch"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// StatusEvent is a server status reply such as {"status":"live"}.
type StatusEvent struct {
	Status  string
	Help    string
	Message string
}

// Sample is one device reading with every optional field already defaulted.
type Sample struct {
	Index       int
	Utilization float64
	MemoryUsed  float64 // MiB
	MemoryTotal float64 // MiB, never below 1
	Temperature float64
	Name        string
}

// MemoryPercent returns used/total as a rounded percentage.
// MemoryTotal is floored at 1 by the decoder, so the result is always finite.
func (s Sample) MemoryPercent() float64 {
	total := s.MemoryTotal
	if total <= 0 {
		total = 1
	}
	return math.Round(s.MemoryUsed / total * 100)
}

// Message is the decoded form of one inbound frame.
type Message struct {
	Kind    MessageKind
	Status  StatusEvent // set when Kind == KindStatus
	Samples []Sample    // set when Kind == KindBatch
}

// Decode parses a raw frame. Arrays become a batch with one sample per object
// element; a single object is either a status reply or a batch of one.
// Any parse failure returns an ErrDecode error and no partial result.
func Decode(payload []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Message{}, errors.WrapWithCode(err, errors.ErrDecode,
			"Malformed telemetry frame",
			"Expected a JSON object or array from the metrics server")
	}
	if dec.More() {
		return Message{}, errors.New(errors.ErrDecode,
			"Malformed telemetry frame: trailing data after JSON value", "")
	}

	switch v := raw.(type) {
	case []any:
		samples := make([]Sample, 0, len(v))
		for _, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok || isStatusObject(obj) {
				continue
			}
			samples = append(samples, decodeSample(obj))
		}
		return Message{Kind: KindBatch, Samples: samples}, nil

	case map[string]any:
		if isStatusObject(v) {
			return Message{Kind: KindStatus, Status: decodeStatus(v)}, nil
		}
		return Message{Kind: KindBatch, Samples: []Sample{decodeSample(v)}}, nil

	default:
		return Message{}, errors.New(errors.ErrDecode,
			fmt.Sprintf("Unexpected telemetry frame of type %T", raw),
			"Expected a JSON object or array from the metrics server")
	}
}

func isStatusObject(obj map[string]any) bool {
	return stringField(obj, keyStatus) != "" || stringField(obj, keyError) != ""
}

func decodeStatus(obj map[string]any) StatusEvent {
	if errMsg := stringField(obj, keyError); errMsg != "" && stringField(obj, keyStatus) == "" {
		return StatusEvent{Status: StatusError, Message: errMsg}
	}
	return StatusEvent{
		Status:  stringField(obj, keyStatus),
		Help:    stringField(obj, keyHelp),
		Message: stringField(obj, keyMessage),
	}
}

func decodeSample(obj map[string]any) Sample {
	s := Sample{
		Index:       indexField(obj),
		Utilization: numberField(obj, keyUtilization, 0),
		MemoryUsed:  numberField(obj, keyMemoryUsed, 0),
		MemoryTotal: numberField(obj, keyMemoryTotal, 1),
		Temperature: numberField(obj, keyTemperature, 0),
		Name:        stringField(obj, keyName),
	}
	if s.MemoryTotal <= 0 {
		s.MemoryTotal = 1
	}
	if s.Name == "" {
		s.Name = UnknownGPUName
	}
	return s
}

// indexField reads the device index. The reference server sends it as a
// string ("0"), other sources as a number. Missing, negative, or fractional
// values route to device 0.
func indexField(obj map[string]any) int {
	f := numberField(obj, keyIndex, 0)
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// numberField accepts JSON numbers and numeric strings ("63", " 45 ").
// Anything else, including nvidia-smi's "[N/A]", yields def.
func numberField(obj map[string]any, key string, def float64) float64 {
	var (
		f   float64
		err error
	)
	switch v := obj[key].(type) {
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return def
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}
