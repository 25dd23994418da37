package solve

import "github.com/alaraproject/alara/internal/problem"

// ContainingFlux is one spatial interval's flux spectrum and volume, the
// Volume constructor's inputs to building a root's reference flux from
// every interval that contains it.
type ContainingFlux struct {
	Groups []float64
	Volume float64
}

// ReduceReferenceFlux folds a root's containing-interval fluxes into the
// single reference spectrum ChainBuilder truncates against, per mode:
// FluxMax takes the group-wise maximum across intervals (Volume is
// ignored); FluxVolumeAverage takes the volume-weighted average. When
// groupWeights is non-nil (the library's optional per-group weighting
// block), the volume-averaged result is additionally scaled group-by-group
// by it. intervals must be non-empty.
func ReduceReferenceFlux(mode problem.FluxMode, intervals []ContainingFlux, groupWeights []float64) Flux {
	nGroups := len(intervals[0].Groups)
	out := make([]float64, nGroups)

	switch mode {
	case problem.FluxVolumeAverage:
		var totalVolume float64
		for _, iv := range intervals {
			totalVolume += iv.Volume
			for g := 0; g < nGroups && g < len(iv.Groups); g++ {
				out[g] += iv.Volume * iv.Groups[g]
			}
		}
		if totalVolume > 0 {
			for g := range out {
				out[g] /= totalVolume
			}
		}
		if groupWeights != nil {
			for g := 0; g < nGroups && g < len(groupWeights); g++ {
				out[g] *= groupWeights[g]
			}
		}
	default: // FluxMax
		for _, iv := range intervals {
			for g := 0; g < nGroups && g < len(iv.Groups); g++ {
				if iv.Groups[g] > out[g] {
					out[g] = iv.Groups[g]
				}
			}
		}
	}

	return Flux{Groups: out}
}
