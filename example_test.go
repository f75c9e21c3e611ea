package multibar_test

import (
	"fmt"
	"sync"

	"github.com/JakeFAU/multibar"
)

// ExampleNewMulti runs three workers against a headless coordinator and
// reports the aggregate once the run completes.
func ExampleNewMulti() {
	done := make(chan multibar.Event, 1)
	lengths := []int64{2, 3, 4}
	_, handles, err := multibar.NewMulti(lengths, multibar.Config{
		Observers: []multibar.Observer{multibar.ObserverFunc(func(evt multibar.Event) {
			if evt.RunDone {
				done <- evt
			}
		})},
	})
	if err != nil {
		fmt.Println("build:", err)
		return
	}

	var wg sync.WaitGroup
	for i, n := range lengths {
		wg.Add(1)
		go func(h *multibar.Handle, n int64) {
			defer wg.Done()
			for j := int64(0); j < n; j++ {
				h.Next()
			}
		}(handles[i], n)
	}
	wg.Wait()

	final := <-done
	fmt.Printf("completed %d/%d steps\n", final.AggregateCount, final.AggregateTotal)
	// Output: completed 9/9 steps
}
