package converter

// validReuseFactor reports whether a dense layer of nIn inputs and nOut
// outputs can be folded by rf: the multipliers must divide evenly between
// the outputs and the weights between the reuse cycles.
func validReuseFactor(nIn, nOut, rf int) bool {
	if rf < 1 {
		return false
	}
	multfactor := rf
	if nIn < multfactor {
		multfactor = nIn
	}
	multiplierLimit := (nIn*nOut + multfactor - 1) / multfactor
	return (multiplierLimit%nOut == 0 || rf >= nIn) &&
		(rf%nIn == 0 || rf < nIn) &&
		(nIn*nOut)%rf == 0
}

// closestReuseFactor returns rf if it is valid, else the nearest valid reuse
// factor, preferring the smaller on a tie.
func closestReuseFactor(nIn, nOut, rf int) int {
	if validReuseFactor(nIn, nOut, rf) {
		return rf
	}
	best := 1
	for cand := 1; cand <= nIn*nOut; cand++ {
		if !validReuseFactor(nIn, nOut, cand) {
			continue
		}
		if abs(cand-rf) < abs(best-rf) {
			best = cand
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
