package de

import "math/rand/v2"

// chooseDonors draws count distinct indices from [0,n) excluding avoid,
// uniformly over all such sets. The caller guarantees n > count and
// 0 <= avoid < n.
func chooseDonors(rng *rand.Rand, count, n, avoid int) []int {
	pool := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != avoid {
			pool = append(pool, i)
		}
	}

	// Partial Fisher-Yates: the first count entries end up a uniform sample.
	for i := 0; i < count; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}
