// Command seed serves a seeded in-memory marketplace API for local
// development. Point UPSTREAM_BASE_URL at http://localhost:5000/api.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type store struct {
	mu            sync.Mutex
	manufacturers []map[string]any
	projects      []map[string]any
	products      map[string]map[string]any
	favorites     []string
}

func main() {
	addr := getenv("SEED_ADDR", ":5000")
	s := &store{products: map[string]map[string]any{}}

	fmt.Println("→ Seeding manufacturers...")
	s.seedManufacturers()
	fmt.Println("→ Seeding projects...")
	s.seedProjects()
	fmt.Println("→ Seeding products...")
	s.seedProducts()

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/manufacturers", s.listManufacturers)
		r.Get("/manufacturers/filter-options", s.filterOptions)
		r.Get("/manufacturers/{id}", s.getManufacturer)
		r.Get("/favorites", s.listFavorites)
		r.Get("/projects", s.listProjects)
		r.Post("/projects", s.createProject)
		r.Get("/projects/{id}/manufacturers", s.projectManufacturers)
		r.Get("/products", s.listProducts)
		r.Post("/products", s.saveProduct)
		r.Put("/products/{id}", s.saveProduct)
		r.Delete("/products/{id}", s.deleteProduct)
	})

	fmt.Println("✓ Seed API listening on", addr, "at", time.Now().Format(time.RFC3339))
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	log.Fatal(srv.ListenAndServe())
}

// =============================================================================
// SEED DATA
// =============================================================================

func (s *store) seedManufacturers() {
	rows := []struct {
		name, industry, country, capacity string
		year                              int
		certs                             []string
	}{
		{"Alpine Dairy Co", "Dairy", "Switzerland", "10K - 50K", 1962, []string{"ISO 22000", "Organic"}},
		{"Baltic Snacks", "Snacks", "Poland", "5K - 20K", 2004, []string{"BRC"}},
		{"Cerro Beverages", "Beverage", "Mexico", "50K - 200K", 1988, []string{"FSSC 22000"}},
		{"Delta Nutrition", "Supplements", "Germany", "1K - 10K", 2015, []string{"GMP", "Halal"}},
		{"Emerald Bakery", "Bakery", "Ireland", "10K - 30K", 1999, []string{"Organic"}},
		{"Fuji Naturals", "Beverage", "Japan", "20K - 80K", 1975, []string{"ISO 22000"}},
		{"Golden Grain Mills", "Bakery", "Canada", "100K - 500K", 1921, []string{"Kosher", "Non-GMO"}},
		{"Harbor Seafoods", "Seafood", "Norway", "5K - 25K", 2010, []string{"MSC"}},
	}
	for i, row := range rows {
		id := fmt.Sprintf("m%02d", i+1)
		s.manufacturers = append(s.manufacturers, map[string]any{
			"_id":                id,
			"companyName":        row.name,
			"industry":           row.industry,
			"address":            map[string]any{"country": row.country},
			"establishedYear":    row.year,
			"productionCapacity": row.capacity,
			"certifications":     row.certs,
			"createdAt":          time.Date(2023, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC),
		})
	}
	s.favorites = []string{"m02", "m05"}
}

func (s *store) seedProjects() {
	s.projects = append(s.projects, map[string]any{
		"_id":             "p01",
		"title":           "Plant-based protein bar",
		"productCategory": "Snacks",
		"status":          "active",
		"createdAt":       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
}

func (s *store) seedProducts() {
	for i, name := range []string{"Oat Crunch", "Sea Salt Crackers"} {
		id := fmt.Sprintf("sku-%d", i+1)
		s.products[id] = map[string]any{"_id": id, "name": name, "category": "Snacks", "status": "published"}
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *store) listManufacturers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"manufacturers": s.manufacturers, "total": len(s.manufacturers)})
}

func (s *store) getManufacturer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	for _, m := range s.manufacturers {
		if m["_id"] == id {
			respond(w, http.StatusOK, map[string]any{"manufacturer": m})
			return
		}
	}
	fail(w, http.StatusNotFound, "Manufacturer not found")
}

func (s *store) filterOptions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	industries, countries := map[string]bool{}, map[string]bool{}
	for _, m := range s.manufacturers {
		industries[m["industry"].(string)] = true
		countries[m["address"].(map[string]any)["country"].(string)] = true
	}
	respond(w, http.StatusOK, map[string]any{"filterOptions": map[string]any{
		"industries": keys(industries),
		"countries":  keys(countries),
	}})
}

func (s *store) listFavorites(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		fail(w, http.StatusUnauthorized, "Not authorized")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"favorites": s.favorites})
}

func (s *store) listProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"projects": s.projects})
}

func (s *store) createProject(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid project")
		return
	}
	body["_id"] = uuid.NewString()
	body["createdAt"] = time.Now().UTC()
	s.mu.Lock()
	s.projects = append(s.projects, body)
	s.mu.Unlock()
	respond(w, http.StatusCreated, map[string]any{"project": body})
}

func (s *store) projectManufacturers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := make([]map[string]any, 0, len(s.manufacturers))
	for i, m := range s.manufacturers {
		matches = append(matches, map[string]any{
			"manufacturerId": m["_id"],
			"matchScore":     95 - i*9,
			"manufacturer":   m,
			"matchDetails":   map[string]any{"category": i%2 == 0, "volume": i < 4},
		})
	}
	respond(w, http.StatusOK, map[string]any{"manufacturers": matches})
}

func (s *store) listProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]map[string]any, 0, len(s.products))
	for _, p := range s.products {
		items = append(items, p)
	}
	respond(w, http.StatusOK, map[string]any{"products": items})
}

func (s *store) saveProduct(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid product")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		id = uuid.NewString()
	}
	body["_id"] = id
	s.mu.Lock()
	s.products[id] = body
	s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"product": body})
}

func (s *store) deleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := s.products[id]; !ok {
		fail(w, http.StatusNotFound, "Product not found")
		return
	}
	delete(s.products, id)
	respond(w, http.StatusOK, map[string]any{})
}

func respond(w http.ResponseWriter, status int, body map[string]any) {
	body["success"] = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func fail(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
