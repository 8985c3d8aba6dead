package fixtures

import (
	"fmt"
	"math/rand"
)

// Product is one catalog row with its embedding.
type Product struct {
	Name     string
	Category string
	Price    string
	Caption  string
	Vector   []float32
}

// Catalog is a synthetic product catalog. Every product has a distinct vector, so
// querying with a product's own vector retrieves that product first at distance 0.
type Catalog struct {
	Header   []string
	Products []Product
}

var categories = []string{"skincare", "makeup", "haircare", "fragrance", "bodycare"}

var items = []string{
	"Serum Vitamin C", "Matte Lipstick", "Sunscreen SPF 50", "Eau de Parfum", "Body Lotion",
	"Hair Mask", "Cushion Foundation", "Micellar Water", "Lip Tint", "Shampoo Anti Dandruff",
	"Night Cream", "Eyeliner Waterproof", "Hand Cream", "Toner Exfoliating", "Dry Shampoo",
}

// BuildCatalog returns n products with dim-dimensional vectors drawn from a fixed seed.
func BuildCatalog(n, dim int) *Catalog {
	r := rand.New(rand.NewSource(42))
	c := &Catalog{Header: []string{"product_name", "category", "price", "caption"}}
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = r.Float32()*2 - 1
		}
		item := items[i%len(items)]
		c.Products = append(c.Products, Product{
			Name:     fmt.Sprintf("%s #%d", item, i),
			Category: categories[i%len(categories)],
			Price:    fmt.Sprintf("%d", 50000+i*2500),
			Caption:  fmt.Sprintf("New %s launch with promo code SALE%d", item, i),
			Vector:   vec,
		})
	}
	return c
}

// Vectors returns the embedding matrix in row order.
func (c *Catalog) Vectors() [][]float32 {
	out := make([][]float32, len(c.Products))
	for i, p := range c.Products {
		out[i] = p.Vector
	}
	return out
}

// Rows returns the metadata table rows in header order.
func (c *Catalog) Rows() [][]string {
	out := make([][]string, len(c.Products))
	for i, p := range c.Products {
		out[i] = []string{p.Name, p.Category, p.Price, p.Caption}
	}
	return out
}
