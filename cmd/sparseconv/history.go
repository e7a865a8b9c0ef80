package main

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// historyWriter records training progress as CSV rows.
type historyWriter struct {
	w     *csv.Writer
	start time.Time
}

func newHistoryWriter(out io.Writer) (*historyWriter, error) {
	h := &historyWriter{w: csv.NewWriter(out), start: time.Now()}
	if err := h.w.Write([]string{"step", "loss", "grad_norm", "lr", "time_seconds"}); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *historyWriter) record(step int, loss, gradNorm, lr float64) error {
	return h.w.Write([]string{
		strconv.Itoa(step),
		strconv.FormatFloat(loss, 'g', 8, 64),
		strconv.FormatFloat(gradNorm, 'g', 8, 64),
		strconv.FormatFloat(lr, 'g', 8, 64),
		strconv.FormatFloat(time.Since(h.start).Seconds(), 'f', 3, 64),
	})
}

func (h *historyWriter) flush() error {
	h.w.Flush()
	return h.w.Error()
}
