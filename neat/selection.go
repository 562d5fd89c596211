package neat

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

// Scored is a living population slot and its fitness.
type Scored struct {
	Index   int
	Fitness float64
}

// Triple names two parents and the slot their child replaces.
type Triple struct {
	Father int
	Mother int
	Loser  int
}

// SelectionAlgorithm picks parents and losers. Select works on one pool;
// SelectSpecies works on per-species groups. Both return nil for empty input
// and never name the same loser twice.
type SelectionAlgorithm interface {
	Name() string
	Select(rng *rand.Rand, pool []Scored) []Triple
	SelectSpecies(rng *rand.Rand, groups [][]Scored) []Triple
}

var (
	_ SelectionAlgorithm = Tournament{}
	_ SelectionAlgorithm = Truncation{}
	_ SelectionAlgorithm = FPS{}
)

func quota(ratio float64, n int) int {
	if n < 2 || ratio <= 0 {
		return 0
	}
	return max(1, int(ratio*float64(n)))
}

// --------------------------- Tournament ---------------------------

// Tournament samples Rounds distinct members per tournament. The best of the
// sample becomes a parent and the runner-up becomes the loser.
type Tournament struct {
	Rounds int
	Ratio  float64
}

func (t Tournament) Name() string { return "tournament" }

func (t Tournament) rounds(n int) int {
	return min(max(2, t.Rounds), n)
}

// tournament returns the positions in pool of the champion and the runner-up.
func (t Tournament) tournament(rng *rand.Rand, pool []Scored) (champion, loser int) {
	sample := rng.Perm(len(pool))[:t.rounds(len(pool))]
	champion, loser = -1, -1
	for _, p := range sample {
		switch {
		case champion < 0 || pool[p].Fitness > pool[champion].Fitness:
			champion, loser = p, champion
		case loser < 0 || pool[p].Fitness > pool[loser].Fitness:
			loser = p
		}
	}
	return champion, loser
}

func (t Tournament) Select(rng *rand.Rand, pool []Scored) []Triple {
	want := quota(t.Ratio, len(pool))
	if want == 0 {
		return nil
	}
	used := make(map[int]bool)
	var out []Triple
	for attempt := 0; attempt < 2*want && len(out) < want; attempt++ {
		father, loser := t.tournament(rng, pool)
		mother, _ := t.tournament(rng, pool)
		if mother == father {
			mother, _ = t.tournament(rng, pool)
		}
		if loser < 0 || loser == mother || used[loser] {
			continue
		}
		used[loser] = true
		out = append(out, Triple{Father: pool[father].Index, Mother: pool[mother].Index, Loser: pool[loser].Index})
	}
	return out
}

func (t Tournament) SelectSpecies(rng *rand.Rand, groups [][]Scored) []Triple {
	var out []Triple
	for _, g := range groups {
		out = append(out, t.Select(rng, g)...)
	}
	return out
}

// --------------------------- Truncation ---------------------------

// Truncation pairs the top members of a pool with the bottom ones: each
// bottom member is replaced by a child of two top members.
type Truncation struct {
	Ratio float64
}

func (t Truncation) Name() string { return "truncation" }

func sortedByFitness(pool []Scored) []Scored {
	sorted := slices.Clone(pool)
	slices.SortStableFunc(sorted, func(a, b Scored) int { return cmp.Compare(b.Fitness, a.Fitness) })
	return sorted
}

func (t Truncation) truncate(rng *rand.Rand, pool []Scored, k int) []Triple {
	k = min(k, len(pool)/2)
	if k <= 0 {
		return nil
	}
	sorted := sortedByFitness(pool)
	out := make([]Triple, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, Triple{
			Father: sorted[i].Index,
			Mother: sorted[rng.Intn(k)].Index,
			Loser:  sorted[len(sorted)-1-i].Index,
		})
	}
	return out
}

func (t Truncation) Select(rng *rand.Rand, pool []Scored) []Triple {
	return t.truncate(rng, pool, quota(t.Ratio, len(pool)))
}

// SelectSpecies splits the overall quota between species in proportion to
// their size, using largest remainders for the rounding.
func (t Truncation) SelectSpecies(rng *rand.Rand, groups [][]Scored) []Triple {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	want := quota(t.Ratio, total)
	if want == 0 {
		return nil
	}

	shares := make([]int, len(groups))
	type rem struct {
		group int
		frac  float64
	}
	rems := make([]rem, len(groups))
	assigned := 0
	for i, g := range groups {
		exact := float64(want) * float64(len(g)) / float64(total)
		shares[i] = int(exact)
		assigned += shares[i]
		rems[i] = rem{i, exact - math.Floor(exact)}
	}
	slices.SortStableFunc(rems, func(a, b rem) int { return cmp.Compare(b.frac, a.frac) })
	for i := 0; assigned < want && i < len(rems); i++ {
		shares[rems[i].group]++
		assigned++
	}

	var out []Triple
	for i, g := range groups {
		out = append(out, t.truncate(rng, g, shares[i])...)
	}
	return out
}

// --------------------------- FPS ---------------------------

// FPS is fitness proportionate (roulette wheel) selection. Parents are drawn
// with probability proportional to fitness and losers with probability
// proportional to the distance from the best fitness.
type FPS struct {
	Ratio float64
}

func (f FPS) Name() string { return "fps" }

// roulette draws a threshold in [0, total) and walks the cumulative weights
// until it is exceeded. Excluded positions have zero weight.
func roulette(rng *rand.Rand, weights []float64, excluded map[int]bool) int {
	total := 0.0
	for i, w := range weights {
		if !excluded[i] {
			total += w
		}
	}
	if total <= 0 {
		var open []int
		for i := range weights {
			if !excluded[i] {
				open = append(open, i)
			}
		}
		if len(open) == 0 {
			return -1
		}
		return open[rng.Intn(len(open))]
	}
	threshold := rng.Float64() * total
	acc := 0.0
	last := -1
	for i, w := range weights {
		if excluded[i] {
			continue
		}
		acc += w
		last = i
		if acc > threshold {
			return i
		}
	}
	return last
}

func (f FPS) Select(rng *rand.Rand, pool []Scored) []Triple {
	want := quota(f.Ratio, len(pool))
	if want == 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range pool {
		lo = math.Min(lo, s.Fitness)
		hi = math.Max(hi, s.Fitness)
	}
	fit := make([]float64, len(pool))
	unfit := make([]float64, len(pool))
	for i, s := range pool {
		fit[i] = s.Fitness - lo
		unfit[i] = hi - s.Fitness
	}

	used := make(map[int]bool)
	out := make([]Triple, 0, want)
	for len(out) < want {
		father := roulette(rng, fit, nil)
		mother := roulette(rng, fit, nil)
		excluded := map[int]bool{father: true, mother: true}
		for k := range used {
			excluded[k] = true
		}
		loser := roulette(rng, unfit, excluded)
		if loser < 0 {
			break
		}
		used[loser] = true
		out = append(out, Triple{Father: pool[father].Index, Mother: pool[mother].Index, Loser: pool[loser].Index})
	}
	return out
}

func (f FPS) SelectSpecies(rng *rand.Rand, groups [][]Scored) []Triple {
	var out []Triple
	for _, g := range groups {
		out = append(out, f.Select(rng, g)...)
	}
	return out
}
