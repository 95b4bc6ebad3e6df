package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductStatus_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		from     ProductStatus
		to       ProductStatus
		expected bool
	}{
		{StatusNotStarted, StatusWaiting, true},
		{StatusWaiting, StatusWaiting, true},
		{StatusWaiting, StatusInWork, true},
		{StatusNotStarted, StatusInWork, true},
		{StatusInWork, StatusReady, true},
		{StatusReady, StatusReceived, true},
		{StatusInWork, StatusWaiting, false},
		{StatusReady, StatusInWork, false},
		{StatusReceived, StatusReady, false},
		{StatusWaiting, StatusReady, false},
		{StatusNotStarted, StatusReceived, false},
		{StatusReceived, StatusWaiting, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestProductStatus_NeverBackward(t *testing.T) {
	all := []ProductStatus{StatusNotStarted, StatusWaiting, StatusInWork, StatusReady, StatusReceived}
	for _, from := range all {
		for _, to := range all {
			if from.CanTransitionTo(to) {
				assert.GreaterOrEqual(t, statusOrder[to], statusOrder[from], "%q -> %q moves backward", from, to)
			}
		}
	}
}

func TestProductStatus_Valid(t *testing.T) {
	assert.True(t, StatusReady.Valid())
	assert.True(t, StatusNotStarted.Valid())
	assert.False(t, ProductStatus("LOST").Valid())
}
