package dedup

const (
	weightHash   = 0.1
	weightLength = 0.3
	weightMedia  = 0.2
	weightAuthor = 0.4
)

// similarity — взвешенная близость двух отпечатков в [0,1].
// Совпадение автора учитывается только если автор известен у обоих.
func similarity(a, b Fingerprint) float64 {
	total, weight := 0.0, 0.0
	add := func(w, v float64) {
		total += w * v
		weight += w
	}
	add(weightHash, boolScore(a.ContentHash == b.ContentHash))
	add(weightLength, closeness(a.Meta.TextLength, b.Meta.TextLength))
	add(weightMedia, closeness(a.Meta.MediaCount, b.Meta.MediaCount))
	if a.Meta.AuthorID != "" && b.Meta.AuthorID != "" {
		add(weightAuthor, boolScore(a.Meta.AuthorID == b.Meta.AuthorID))
	}
	if weight == 0 {
		return 0
	}
	return total / weight
}

func closeness(a, b int) float64 {
	if a == b {
		return 1
	}
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	if hi <= 0 {
		return 1
	}
	return 1 - float64(hi-lo)/float64(hi)
}

func boolScore(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
