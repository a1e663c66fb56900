package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-ops/internal/core"
)

func TestObserve(t *testing.T) {
	r := New()
	r.Observe("putaway", nil, 3*time.Millisecond)
	r.Observe("putaway", nil, time.Millisecond)
	r.Observe("putaway", core.ErrCapacityExceeded, time.Millisecond)
	r.Observe("pickup", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ops.WithLabelValues("putaway", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ops.WithLabelValues("putaway", "CAPACITY_EXCEEDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ops.WithLabelValues("pickup", string(core.CodeInternal))))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Observe("putaway", nil, time.Second)
	r.AuditDropped()
}

func TestHandler(t *testing.T) {
	r := New()
	r.AuditDropped()
	r.Observe("assign", nil, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `warehouse_operations_total{operation="assign",outcome="ok"} 1`))
	assert.Contains(t, body, "warehouse_audit_dropped_total 1")
	assert.Contains(t, body, "go_goroutines")
}
