package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, ResultSuccess, Result(nil))
	assert.Equal(t, ResultFailure, Result(errors.New("boom")))
}

func TestObserveBackup(t *testing.T) {
	before := testutil.ToFloat64(BackupOperations.WithLabelValues("test-export", ResultFailure))

	ObserveBackup("test-export", time.Now().Add(-time.Second), errors.New("boom"))

	after := testutil.ToFloat64(BackupOperations.WithLabelValues("test-export", ResultFailure))
	assert.Equal(t, before+1, after)
}

func TestObserveStorage(t *testing.T) {
	ObserveStorage("local", "test-store", nil)
	ObserveStorage("local", "test-store", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(ArchiveStorageOperations.WithLabelValues("local", "test-store", ResultSuccess)))
}
