package cache

import (
	"testing"
)

func BenchmarkShardWrite(b *testing.B) {
	r, err := New(Options{})
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	s, err := r.CreateShard(4096)
	if err != nil {
		b.Fatal(err)
	}
	payload := make([]byte, 64)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Write((i*64)%4096, payload)
	}
}

func BenchmarkGetParallel(b *testing.B) {
	r, err := New(Options{})
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	ids := make([]uint64, 0, 64)
	for i := 0; i < 64; i++ {
		s, err := r.CreateShard(256)
		if err != nil {
			b.Fatal(err)
		}
		ids = append(ids, s.ID())
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = r.Get(ids[i%len(ids)])
			i++
		}
	})
}

func BenchmarkPreShatter(b *testing.B) {
	r, err := New(Options{})
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	for i := 0; i < 32; i++ {
		if _, err := r.CreateShard(256); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.PreShatter(Clustered)
	}
}
