package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/hyperjump/insightbot/internal/corpus"
	"github.com/hyperjump/insightbot/internal/embedding"
	"github.com/hyperjump/insightbot/internal/memory"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/vector"
	"github.com/hyperjump/insightbot/test/fixtures"
	"github.com/hyperjump/insightbot/test/testenv"
)

func randomStore(b *testing.B, n, dim int) *corpus.Store {
	b.Helper()
	r := rand.New(rand.NewSource(1))
	vecs := make([][]float32, n)
	meta := make([]models.Metadata, n)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		for j := range vecs[i] {
			vecs[i][j] = r.Float32()
		}
		meta[i] = models.Metadata{"product_name": fmt.Sprintf("p%d", i)}
	}
	s, err := corpus.New(vecs, meta)
	if err != nil {
		b.Fatal(err)
	}
	return s
}

func BenchmarkFlatIndexSearch(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			idx, err := vector.New("flat", randomStore(b, n, 384))
			if err != nil {
				b.Fatal(err)
			}
			query := make([]float32, 384)
			query[0] = 1.0
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = idx.Search(ctx, query, 10)
			}
		})
	}
}

func BenchmarkFlatIndexBuild(b *testing.B) {
	src := randomStore(b, 5000, 384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = vector.New("flat", src)
	}
}

func BenchmarkEngineRetrieve(b *testing.B) {
	env := testenv.New(b, "produk", fixtures.BuildCatalog(500, 64))
	ds, err := env.Engine.Dataset("produk")
	if err != nil {
		b.Fatal(err)
	}
	query := env.Catalog.Products[42].Vector
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = ds.Retrieve(ctx, query, 4)
		}
	})
}

func BenchmarkConversationMemoryAppend(b *testing.B) {
	m := memory.New(memory.DefaultCapacity)
	turn := models.Turn{UserQuery: "which serum sells best", BotResponse: "Serum Vitamin C"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Append(turn)
		_ = m.Window()
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}
