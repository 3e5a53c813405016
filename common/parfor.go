package common

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// GetGrainSize returns a reasonable value to use in Grain
func GetGrainSize(nSamples, minGrainSize, maxGrainSize int) int {
	procs := runtime.GOMAXPROCS(0)
	grainPerProc := nSamples / procs
	if grainPerProc < minGrainSize {
		return minGrainSize
	}
	if grainPerProc > maxGrainSize {
		return maxGrainSize
	}
	return grainPerProc
}

// ParallelFor computes the function f in parallel using chucks of the given size.
// Each call to f receives a half-open range [start, end) that no other call sees.
func ParallelFor(n, grain int, f func(start, end int)) {
	if grain < 1 {
		grain = 1
	}
	P := runtime.GOMAXPROCS(0)
	var idx uint64
	var wg sync.WaitGroup
	wg.Add(P)
	for p := 0; p < P; p++ {
		go func() {
			defer wg.Done()
			for {
				start := int(atomic.AddUint64(&idx, uint64(grain))) - grain
				if start >= n {
					return
				}
				end := start + grain
				if end > n {
					end = n
				}
				f(start, end)
			}
		}()
	}
	wg.Wait()
}

// Chunks splits [0, n) into at most k contiguous ranges of nearly equal size.
// Each range is returned as a pair {start, end}.
func Chunks(n, k int) [][2]int {
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	chunks := make([][2]int, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		size := n / k
		if i < n%k {
			size++
		}
		chunks = append(chunks, [2]int{start, start + size})
		start += size
	}
	return chunks
}
