package randx

import (
	"fmt"
	"math/rand/v2"

	omwrandx "github.com/sw965/omw/mathx/randx"
	"gonum.org/v1/gonum/stat/distuv"
)

// New はseedから決定的なPCGを作る。seedが0ならグローバルシードを使う。
func New(seed uint64) *rand.Rand {
	if seed == 0 {
		return omwrandx.NewPCGFromGlobalSeed()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Split はrngから独立したn個のPCGを派生させる。
func Split(n int, rng *rand.Rand) []*rand.Rand {
	rngs := make([]*rand.Rand, n)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
	}
	return rngs
}

func Gaussian(dst []float32, mu, sigma float64, rng *rand.Rand) error {
	if sigma <= 0 {
		return fmt.Errorf("randx: gaussian sigma must be positive, got %v", sigma)
	}
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: rng}
	for i := range dst {
		dst[i] = float32(dist.Rand())
	}
	return nil
}

func Uniform(dst []float32, min, max float64, rng *rand.Rand) error {
	if min > max {
		return fmt.Errorf("randx: uniform min (%v) > max (%v)", min, max)
	}
	if min == max {
		for i := range dst {
			dst[i] = float32(min)
		}
		return nil
	}
	dist := distuv.Uniform{Min: min, Max: max, Src: rng}
	for i := range dst {
		dst[i] = float32(dist.Rand())
	}
	return nil
}

// Bernoulli はdstに確率pで1、それ以外で0を書き込む。
func Bernoulli(dst []float32, p float64, rng *rand.Rand) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("randx: bernoulli p must be in [0, 1], got %v", p)
	}
	dist := distuv.Bernoulli{P: p, Src: rng}
	for i := range dst {
		dst[i] = float32(dist.Rand())
	}
	return nil
}

// IntRange は[lo, hi]の整数を返す。
func IntRange(lo, hi int, rng *rand.Rand) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// Float64Range は[lo, hi]の実数を返す。
func Float64Range(lo, hi float64, rng *rand.Rand) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
