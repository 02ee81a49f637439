package sandbox

import (
	"fmt"
	"time"

	"funnel-health/pkg/ledger"
	"funnel-health/pkg/models"
)

const (
	userCount       = 250
	companyCount    = 3
	snapshotDays    = 30
	leftProbability = 0.18
	convertRate     = 0.35
)

var (
	companyPrefixes = []string{"Nova", "Atlas", "Orbit", "Summit", "Pioneer", "Vertex", "Cobalt", "Cedar"}
	companyWords    = []string{"Studio", "Labs", "Group", "Works", "Collective", "Holdings", "Systems", "Network"}
	productMods     = []string{"Pro", "Elite", "Starter", "Advanced", "Ultimate", "Daily", "Weekly", "Prime"}
	productNouns    = []string{"Academy", "Signals", "Community", "Toolkit", "Blueprint", "Sprint", "Masterclass", "Vault"}
)

// Company is a generated company.
type Company struct {
	ID   string
	Name string
}

// Product is a generated product of a company.
type Product struct {
	ID        string
	CompanyID string
	Title     string
}

// Dataset is a deterministic set of funnels and ledger history for local testing.
type Dataset struct {
	Seed        string
	Now         time.Time
	Companies   []Company
	Products    []Product
	Funnels     []models.Funnel
	Memberships []models.MembershipRecord
	Snapshots   []models.SnapshotRecord
}

func id(prefix string, n int) string {
	return fmt.Sprintf("%s_%012d", prefix, n)
}

// Generate builds the dataset of seed relative to now. Equal inputs give equal datasets.
func Generate(seed string, now time.Time) *Dataset {
	r := newRng(seed)
	now = now.UTC()
	day := 24 * time.Hour
	d := &Dataset{Seed: seed, Now: now}

	users := make([]string, userCount)
	for i := range users {
		users[i] = id("usr", i+1)
	}

	prodCounter, expCounter := 1, 1
	for c := 1; c <= companyCount; c++ {
		company := Company{
			ID:   id("biz", c),
			Name: fmt.Sprintf("%s %s", pick(r, companyPrefixes), companyWords[c%len(companyWords)]),
		}
		d.Companies = append(d.Companies, company)

		var products []Product
		productCount := r.between(3, 5)
		for i := 0; i < productCount; i++ {
			p := Product{
				ID:        id("prod", prodCounter),
				CompanyID: company.ID,
				Title:     fmt.Sprintf("%s %s", pick(r, productMods), productNouns[(i+1)%len(productNouns)]),
			}
			prodCounter++
			products = append(products, p)
		}
		d.Products = append(d.Products, products...)

		var previous []models.MembershipRecord
		for _, p := range products {
			previous = d.generateMembers(r, p, users, previous, now, day)
		}

		experiences := r.between(1, 2)
		for e := 0; e < experiences; e++ {
			d.Funnels = append(d.Funnels, buildFunnel(r, id("exp", expCounter), company, products, now))
			expCounter++
		}
	}

	d.generateSnapshots(now, day)
	return d
}

// generateMembers draws members of p. A share of the previous product's members convert into p
// some hours after joining the previous product.
func (d *Dataset) generateMembers(r rng, p Product, users []string, previous []models.MembershipRecord, now time.Time, day time.Duration) []models.MembershipRecord {
	count := r.between(20, 120)
	used := make(map[string]struct{}, count)
	var out []models.MembershipRecord

	add := func(userID string, joined time.Time) {
		used[userID] = struct{}{}
		rec := models.MembershipRecord{
			CompanyID: p.CompanyID,
			ProductID: p.ID,
			UserID:    userID,
		}
		j := joined
		rec.JoinedAt = &j
		seen := now
		if r.chance(leftProbability) {
			span := now.Sub(joined)
			left := joined.Add(time.Duration(r.Float64() * float64(span))).Truncate(time.Second)
			rec.LeftAt = &left
			seen = left
		}
		rec.LastSeenAt = &seen
		out = append(out, rec)
	}

	for _, prev := range previous {
		if len(out) >= count || !r.chance(convertRate) {
			continue
		}
		joined := prev.JoinedAt.Add(time.Duration(r.between(1, 240)) * time.Hour)
		if joined.After(now) {
			continue
		}
		add(prev.UserID, joined)
	}

	for tries := 0; len(out) < count && tries < count*10; tries++ {
		u := pick(r, users)
		if _, ok := used[u]; ok {
			continue
		}
		joined := now.Add(-time.Duration(r.between(1, 240)) * day).Add(-time.Duration(r.IntN(24)) * time.Hour)
		add(u, joined)
	}

	d.Memberships = append(d.Memberships, out...)
	return out
}

func buildFunnel(r rng, experienceID string, company Company, products []Product, now time.Time) models.Funnel {
	steps := make([]models.Step, 0, len(products)+1)
	for i, p := range products {
		steps = append(steps, models.Step{
			Order:     i,
			ProductID: p.ID,
			Product:   &models.StepProduct{ID: p.ID, Title: p.Title},
		})
	}
	if r.chance(0.2) {
		steps = append(steps, models.Step{Order: len(products)})
	}
	return models.Funnel{
		ID:           "sandbox_" + experienceID,
		ExperienceID: experienceID,
		CompanyID:    company.ID,
		Steps:        steps,
		CountingMode: "A",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// generateSnapshots records one daily capture per product over the last snapshotDays days.
func (d *Dataset) generateSnapshots(now time.Time, day time.Duration) {
	lastCapture := now.Truncate(day)
	for _, p := range d.Products {
		for back := snapshotDays - 1; back >= 0; back-- {
			at := lastCapture.Add(-time.Duration(back) * day)
			count := 0
			for _, m := range d.Memberships {
				if m.ProductID != p.ID || m.JoinedAt.After(at) {
					continue
				}
				if m.LeftAt != nil && !m.LeftAt.After(at) {
					continue
				}
				count++
			}
			d.Snapshots = append(d.Snapshots, models.SnapshotRecord{
				CompanyID:   p.CompanyID,
				ProductID:   p.ID,
				SnapshotAt:  at,
				MemberCount: count,
			})
		}
	}
}

// Populate loads the dataset history into mem.
func (d *Dataset) Populate(mem *ledger.Memory) {
	for _, m := range d.Memberships {
		mem.AddMembership(m)
	}
	for _, s := range d.Snapshots {
		mem.AddSnapshot(s)
	}
}

// Ledger returns a fresh in-memory ledger holding the dataset.
func (d *Dataset) Ledger() *ledger.Memory {
	mem := ledger.NewMemory()
	d.Populate(mem)
	return mem
}
