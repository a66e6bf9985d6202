package dso

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	//decodedBlocks prometheus metric.
	decodedBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of successfully decoded code blocks",
			Name:      "decoded_blocks_total",
			Namespace: "dsovm",
		},
	)
	//decodeErrors prometheus metric.
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of code blocks rejected by the decoder",
			Name:      "decode_errors_total",
			Namespace: "dsovm",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		decodedBlocks,
		decodeErrors,
	)
}

func decodeFailed(err error) {
	decodeErrors.WithLabelValues(decodeErrorReason(err)).Inc()
}

func decodeErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownVersion):
		return "version"
	case errors.Is(err, ErrStringTableMismatch):
		return "string_table"
	case errors.Is(err, ErrUnknownInstruction):
		return "instruction"
	case errors.Is(err, ErrDuplicateFunction):
		return "function"
	case errors.Is(err, ErrOutOfBounds), errors.Is(err, ErrMissingTerminator):
		return "truncated"
	default:
		return "charset"
	}
}
