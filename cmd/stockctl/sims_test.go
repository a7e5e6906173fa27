package main

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitRunsReportsInFlight(t *testing.T) {
	release := make(chan struct{})
	var (
		mu      sync.Mutex
		reports [][]int
	)

	go func() {
		time.Sleep(60 * time.Millisecond)
		close(release)
	}()
	err := waitRuns(func() error {
		<-release
		return errors.New("run simulator 5: boom")
	}, func() []int {
		return []int{3, 5}
	}, 10*time.Millisecond, func(ids []int) {
		mu.Lock()
		reports = append(reports, ids)
		mu.Unlock()
	})

	assert.EqualError(t, err, "run simulator 5: boom")
	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, reports)
	assert.Equal(t, []int{3, 5}, reports[0])
}

func TestWaitRunsSkipsEmptyReports(t *testing.T) {
	called := false
	err := waitRuns(func() error {
		time.Sleep(30 * time.Millisecond)
		return nil
	}, func() []int { return nil }, 5*time.Millisecond, func([]int) { called = true })

	assert.NoError(t, err)
	assert.False(t, called)
}

func TestJoinIDs(t *testing.T) {
	assert.Equal(t, "3, 5, 8", joinIDs([]int{3, 5, 8}))
	assert.Equal(t, "", joinIDs(nil))
}
