package mask

// otsuThreshold computes Otsu's threshold over a 256-bin histogram: the bin
// that minimizes intra-class variance (equivalently maximizes between-class
// variance). Returns 0 for a degenerate (constant) channel.
func otsuThreshold(hist [256]int64) int {
	var total int64
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var sumBg, wBg float64
	var best float64
	threshold := 0
	for i, c := range hist {
		wBg += float64(c)
		if wBg == 0 {
			continue
		}
		wFg := float64(total) - wBg
		if wFg == 0 {
			break
		}
		sumBg += float64(i) * float64(c)

		meanBg := sumBg / wBg
		meanFg := (sumAll - sumBg) / wFg
		between := wBg * wFg * (meanBg - meanFg) * (meanBg - meanFg)
		if between > best {
			best = between
			threshold = i
		}
	}
	return threshold
}

// rgbToSatVal converts an 8-bit RGB pixel to HSV saturation and value,
// both in [0,1]. Hue is not needed by the tissue heuristic.
func rgbToSatVal(r, g, b uint8) (sat, val float64) {
	maxC := r
	if g > maxC {
		maxC = g
	}
	if b > maxC {
		maxC = b
	}
	minC := r
	if g < minC {
		minC = g
	}
	if b < minC {
		minC = b
	}

	val = float64(maxC) / 255.0
	if maxC == 0 {
		return 0, 0
	}
	sat = float64(maxC-minC) / float64(maxC)
	return sat, val
}
