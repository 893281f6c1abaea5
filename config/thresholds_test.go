package config

import (
	"sync"
	"testing"

	"go.viam.com/test"

	"github.com/sodistec/sodistec/vision/proximity"
)

func TestLiveThresholds(t *testing.T) {
	_, err := NewLiveThresholds(proximity.Thresholds{MinDistance: -1})
	test.That(t, IsConfigError(err), test.ShouldBeTrue)

	lt, err := NewLiveThresholds(proximity.Thresholds{MinDistance: 50, MaxDistance: 80, MaxDepthDelta: 0.25})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lt.Snapshot(), test.ShouldResemble, proximity.Thresholds{MinDistance: 50, MaxDistance: 80, MaxDepthDelta: 0.25})

	test.That(t, lt.SetMinDistance(30), test.ShouldBeNil)
	test.That(t, lt.SetMaxDistance(60), test.ShouldBeNil)
	test.That(t, lt.Snapshot().MinDistance, test.ShouldEqual, 30)
	test.That(t, lt.Snapshot().MaxDistance, test.ShouldEqual, 60)

	err = lt.SetMinDistance(-5)
	test.That(t, IsConfigError(err), test.ShouldBeTrue)
	test.That(t, lt.Snapshot().MinDistance, test.ShouldEqual, 30)

	test.That(t, lt.Update(proximity.Thresholds{MinDistance: 10, MaxDistance: 20, MaxDepthDelta: 0.5}), test.ShouldBeNil)
	test.That(t, lt.Snapshot(), test.ShouldResemble, proximity.Thresholds{MinDistance: 10, MaxDistance: 20, MaxDepthDelta: 0.5})
	test.That(t, lt.Update(proximity.Thresholds{MaxDepthDelta: -1}), test.ShouldNotBeNil)

	for _, rejected := range []proximity.Thresholds{
		{MinDistance: 40, MaxDistance: -1, MaxDepthDelta: 0.3},
		{MinDistance: 40, MaxDistance: 70, MaxDepthDelta: -0.3},
	} {
		err := lt.Update(rejected)
		test.That(t, IsConfigError(err), test.ShouldBeTrue)
		test.That(t, lt.Snapshot(), test.ShouldResemble, proximity.Thresholds{MinDistance: 10, MaxDistance: 20, MaxDepthDelta: 0.5})
	}
}

func TestLiveThresholdsConcurrentWriters(t *testing.T) {
	lt, err := NewLiveThresholds(proximity.Thresholds{MinDistance: 50, MaxDistance: 80})
	test.That(t, err, test.ShouldBeNil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if err := lt.SetMinDistance(float64(i%2) * 100); err != nil {
				t.Error(err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			v := lt.Snapshot().MinDistance
			if v != 0 && v != 100 && v != 50 {
				t.Errorf("torn read: %v", v)
			}
		}
	}()
	wg.Wait()
}
