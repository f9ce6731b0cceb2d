package registry

import (
	"context"
	"time"

	"github.com/blobprobe/blobprobe/internal/metrics"
)

// Instrumented records Prometheus metrics for every call on the wrapped registry.
type Instrumented struct {
	next    Registry
	backend string
}

// Instrument wraps reg, labelling its metrics with backend.
func Instrument(reg Registry, backend string) *Instrumented {
	return &Instrumented{next: reg, backend: backend}
}

// Unwrap returns the wrapped registry.
func (r *Instrumented) Unwrap() Registry {
	return r.next
}

func (r *Instrumented) observe(op string, start time.Time, err error) {
	metrics.RegistryOperations.WithLabelValues(r.backend, op, metrics.Outcome(err)).Inc()
	metrics.RegistryLatency.WithLabelValues(r.backend, op).Observe(time.Since(start).Seconds())
}

func (r *Instrumented) Keys(ctx context.Context) ([]int, error) {
	start := time.Now()
	keys, err := r.next.Keys(ctx)
	r.observe("keys", start, err)
	return keys, err
}

func (r *Instrumented) Get(ctx context.Context, id int) ([]byte, error) {
	start := time.Now()
	data, err := r.next.Get(ctx, id)
	r.observe("get", start, err)
	return data, err
}

func (r *Instrumented) Set(ctx context.Context, id int, data []byte) error {
	start := time.Now()
	err := r.next.Set(ctx, id, data)
	r.observe("set", start, err)
	return err
}

func (r *Instrumented) Delete(ctx context.Context, id int) error {
	start := time.Now()
	err := r.next.Delete(ctx, id)
	r.observe("delete", start, err)
	return err
}

func (r *Instrumented) List(ctx context.Context) ([]BlobInfo, error) {
	start := time.Now()
	infos, err := r.next.List(ctx)
	r.observe("list", start, err)
	if err == nil {
		metrics.RegistryStoredBytes.WithLabelValues(r.backend).Set(float64(TotalSize(infos)))
	}
	return infos, err
}

func (r *Instrumented) Stat(ctx context.Context, id int) (BlobInfo, error) {
	start := time.Now()
	info, err := r.next.Stat(ctx, id)
	r.observe("stat", start, err)
	return info, err
}

func (r *Instrumented) Close() error {
	return r.next.Close()
}
