// Package benchmark provides performance benchmarks for sessionguard.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run the identity store benchmarks under contention:
//
//	go test -bench=BenchmarkIdentity -benchmem -cpu=1,4,16 ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
