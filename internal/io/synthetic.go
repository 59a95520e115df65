package io

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/series"
)

// DefaultSyntheticRows is the demo data size.
const DefaultSyntheticRows = 1000

var (
	firstNames = []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi", "Ivan", "Judy", "Mallory", "Niaj", "Olivia", "Peggy", "Rupert", "Sybil", "Trent", "Victor", "Walter", "Yasmin"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez", "Lopez", "Wilson"}
	streets    = []string{"Main St", "Oak Ave", "Pine Rd", "Maple Dr", "Cedar Ln", "Elm St", "Lakeview Blvd", "Hillcrest Way"}
	cities     = []string{"Springfield", "Riverside", "Franklin", "Greenville", "Bristol", "Clinton", "Fairview", "Salem"}
	domains    = []string{"example.com", "example.org", "example.net"}
)

// SyntheticSource generates fake customer records with personal data:
// id, name, email, phone, address, age, salary and ssn. The same seed always
// yields the same rows.
type SyntheticSource struct {
	rows int
	seed uint64
	mem  memory.Allocator
}

// NewSyntheticSource creates a generator. A non-positive rows means
// DefaultSyntheticRows.
func NewSyntheticSource(rows int, seed uint64, mem memory.Allocator) *SyntheticSource {
	if rows <= 0 {
		rows = DefaultSyntheticRows
	}
	return &SyntheticSource{rows: rows, seed: seed, mem: allocator(mem)}
}

// Read generates the rows.
func (s *SyntheticSource) Read(ctx context.Context) (*dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	n := s.rows
	ids := make([]int64, n)
	names := make([]string, n)
	emails := make([]string, n)
	phones := make([]string, n)
	addresses := make([]string, n)
	ages := make([]int64, n)
	salaries := make([]int64, n)
	ssns := make([]string, n)

	for i := range n {
		first := firstNames[rng.IntN(len(firstNames))]
		last := lastNames[rng.IntN(len(lastNames))]
		ids[i] = int64(i + 1)
		names[i] = first + " " + last
		emails[i] = fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), rng.IntN(100), domains[rng.IntN(len(domains))])
		phones[i] = fmt.Sprintf("%03d-%03d-%04d", 200+rng.IntN(800), rng.IntN(1000), rng.IntN(10000))
		addresses[i] = fmt.Sprintf("%d %s, %s", 1+rng.IntN(9999), streets[rng.IntN(len(streets))], cities[rng.IntN(len(cities))])
		ages[i] = int64(25 + rng.IntN(40))
		salaries[i] = int64(30000 + rng.IntN(120000))
		ssns[i] = fmt.Sprintf("%03d-%02d-%04d", 100+rng.IntN(899), 10+rng.IntN(89), 1000+rng.IntN(8999))
	}

	return dataframe.New(
		series.New("id", ids, s.mem),
		series.New("name", names, s.mem),
		series.New("email", emails, s.mem),
		series.New("phone", phones, s.mem),
		series.New("address", addresses, s.mem),
		series.New("age", ages, s.mem),
		series.New("salary", salaries, s.mem),
		series.New("ssn", ssns, s.mem),
	)
}
