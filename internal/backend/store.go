package backend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrProductNotFound is returned when a product id is unknown
var ErrProductNotFound = errors.New("product not found")

// Product is a catalogue entry as served by the backend
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Catalogue is an in-memory product table ordered by id
type Catalogue struct {
	mu       sync.RWMutex
	products map[int64]*Product
	nextID   int64
	now      func() time.Time
}

// NewCatalogue creates an empty catalogue
func NewCatalogue() *Catalogue {
	return &Catalogue{
		products: make(map[int64]*Product),
		nextID:   1,
		now:      time.Now,
	}
}

// Create stores a new product and returns it with its assigned id
func (c *Catalogue) Create(req ProductRequest) Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	p := &Product{
		ID:          c.nextID,
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.products[p.ID] = p
	c.nextID++
	return *p
}

// Get returns one product
func (c *Catalogue) Get(id int64) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return *p, nil
}

// Delete removes one product
func (c *Catalogue) Delete(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(c.products, id)
	return nil
}

// DeleteMany removes every listed product that exists and returns how many
// were removed
func (c *Catalogue) DeleteMany(ids []int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := c.products[id]; ok {
			delete(c.products, id)
			deleted++
		}
	}
	return deleted
}

// Page returns the one-based page of products and the total count
func (c *Catalogue) Page(page, pageSize int) ([]Product, int) {
	all := c.All()
	return paginate(all, page, pageSize), len(all)
}

// Search returns products whose name, category or description contains
// keyword, case-insensitively. A non-positive pageSize returns every match.
func (c *Catalogue) Search(keyword string, page, pageSize int) []Product {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	var matches []Product
	for _, p := range c.All() {
		if keyword == "" ||
			strings.Contains(strings.ToLower(p.Name), keyword) ||
			strings.Contains(strings.ToLower(p.Category), keyword) ||
			strings.Contains(strings.ToLower(p.Description), keyword) {
			matches = append(matches, p)
		}
	}
	if pageSize <= 0 {
		if matches == nil {
			return []Product{}
		}
		return matches
	}
	return paginate(matches, page, pageSize)
}

// All returns every product ordered by id
func (c *Catalogue) All() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of products
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Seed fills the catalogue with a few demo products
func (c *Catalogue) Seed() {
	for _, req := range []ProductRequest{
		{Name: "Oak Bookshelf", Category: "furniture", Price: 129.90, Stock: 12, Description: "Five shelves, solid oak"},
		{Name: "Desk Lamp", Category: "lighting", Price: 34.50, Stock: 40, Description: "Adjustable arm, warm white"},
		{Name: "Linen Cushion", Category: "textiles", Price: 19.00, Stock: 75},
		{Name: "Wall Clock", Category: "decor", Price: 42.00, Stock: 8, Description: "Silent sweep movement"},
		{Name: "Floor Lamp", Category: "lighting", Price: 89.00, Stock: 5},
	} {
		c.Create(req)
	}
}

func paginate(items []Product, page, pageSize int) []Product {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []Product{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
